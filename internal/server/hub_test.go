package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/tasks"
	"github.com/gorilla/websocket"
)

func startHub(t *testing.T) (*Hub, chan tasks.Event, *httptest.Server, context.CancelFunc) {
	t.Helper()

	hub := NewHub(nil)
	events := make(chan tasks.Event, 16)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx, events)

	router := NewBasicRouter()
	router.Handler(hub)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, events, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, hub.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev map[string]any
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	return ev
}

func TestHub(t *testing.T) {
	t.Run("Broadcast", func(t *testing.T) {
		hub, events, srv, _ := startHub(t)
		all := dial(t, srv, "")
		one := dial(t, srv, "?task=t2")
		waitClients(t, hub, 2)

		events <- tasks.Event{Kind: tasks.EventQueueSize, QueueSize: 2}
		events <- tasks.Event{Kind: tasks.EventFinished, TaskID: "t1", Result: &models.TaskResult{TaskID: "t1", Title: "Song"}}
		events <- tasks.Event{Kind: tasks.EventError, TaskID: "t2", Stage: models.StageResolve, Error: "resolve t2: unavailable"}

		for _, want := range []string{"queueSize", "finished", "error"} {
			if ev := readEvent(t, all); ev["kind"] != want {
				t.Errorf("expected %s, got %v", want, ev["kind"])
			}
		}

		if ev := readEvent(t, one); ev["kind"] != "queueSize" || ev["queueSize"] != float64(2) {
			t.Errorf("expected queue size 2, got %v", ev)
		}
		ev := readEvent(t, one)
		if ev["kind"] != "error" || ev["taskId"] != "t2" || ev["stage"] != "resolve" {
			t.Errorf("expected filtered error event for t2, got %v", ev)
		}
	})

	t.Run("Disconnect", func(t *testing.T) {
		hub, _, srv, _ := startHub(t)
		conn := dial(t, srv, "")
		waitClients(t, hub, 1)

		conn.Close()
		waitClients(t, hub, 0)
	})

	t.Run("Shutdown", func(t *testing.T) {
		hub, _, srv, cancel := startHub(t)
		conn := dial(t, srv, "")
		waitClients(t, hub, 1)

		cancel()
		waitClients(t, hub, 0)

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, _, err := conn.ReadMessage()
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			t.Errorf("expected normal close, got %v", err)
		}
	})
}

func TestStreamEvents(t *testing.T) {
	hub, events, srv, _ := startHub(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := StreamEvents(ctx, srv.URL, "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitClients(t, hub, 1)

	events <- tasks.Event{Kind: tasks.EventFinished, TaskID: "t0"}
	events <- tasks.Event{Kind: tasks.EventFinished, TaskID: "t1", Result: &models.TaskResult{TaskID: "t1", Title: "Song"}}

	select {
	case ev := <-stream:
		if ev.TaskID != "t1" || ev.Result == nil || ev.Result.Title != "Song" {
			t.Errorf("expected finished event for t1, got %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	select {
	case _, ok := <-stream:
		for ok {
			_, ok = <-stream
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expected stream to close after cancel")
	}

	if _, err := StreamEvents(context.Background(), "http://127.0.0.1:1", ""); err == nil {
		t.Error("expected dial error")
	}
}
