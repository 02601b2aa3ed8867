package server

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmp3/internal/tasks"
	"github.com/gorilla/websocket"
)

// Hub streams reporter events to websocket clients.
//
// A single goroutine ([Hub.Run]) owns the client set; registration and broadcast go through it.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	clients    map[*Client]struct{}
	connected  atomic.Int32
	upgrader   websocket.Upgrader
	logger     *log.Logger
}

// NewHub creates a hub. Call [Hub.Run] before serving connections.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Routes returns the event stream route.
func (h *Hub) Routes() []string {
	return []string{"GET /api/events"}
}

// ServeHTTP upgrades the request and attaches a client.
//
// The optional ?task= query parameter limits the stream to one task plus queue size updates.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(h, conn, r.URL.Query().Get("task"))
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	client.startPumps()
}

// Clients returns the number of attached clients.
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

// Run broadcasts events until ctx is done or events is closed, then disconnects every client.
func (h *Hub) Run(ctx context.Context, events <-chan tasks.Event) {
	defer func() {
		close(h.done)
		for c := range h.clients {
			h.drop(c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.connected.Add(1)
			h.logger.Debug("websocket client connected", "task", c.taskID)
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.logger.Debug("websocket client disconnected", "task", c.taskID)
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(ev)
		}
	}
}

// broadcast skips clients whose buffer is full for progress and queue size events.
// A client that cannot take a terminal event is disconnected.
func (h *Hub) broadcast(ev tasks.Event) {
	for c := range h.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.send <- ev:
		default:
			if ev.Kind.Terminal() {
				h.logger.Warn("websocket client too slow, disconnecting", "task", ev.TaskID)
				h.drop(c)
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.connected.Add(-1)
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
