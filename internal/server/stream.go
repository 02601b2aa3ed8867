package server

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/ytmp3/internal/tasks"
	"github.com/gorilla/websocket"
)

// StreamEvents dials the event stream of the server at baseURL.
//
// The returned channel closes when the connection drops or ctx is done.
// A non-empty taskID narrows the stream to that task.
func StreamEvents(ctx context.Context, baseURL, taskID string) (<-chan tasks.Event, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/events"
	if taskID != "" {
		u.RawQuery = url.Values{"task": {taskID}}.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to event stream: %w", err)
	}

	events := make(chan tasks.Event, sendBuffer)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var ev tasks.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
