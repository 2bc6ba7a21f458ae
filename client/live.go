package client

import (
	"context"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// frame mirrors the fan-out layer's envelope.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Live is one websocket session receiving the user's notifications as
// they are persisted. Missed pushes are not replayed; the feed reconciles
// against the store instead.
type Live struct {
	conn          *websocket.Conn
	notifications chan Notification
	done          chan struct{}
}

// Dial connects to the fan-out endpoint and joins the user's room. The
// identifier travels both as a query parameter and as a join frame, so
// either handshake style works.
func Dial(ctx context.Context, baseURL, userID string) (*Live, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"userId": {userID}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	join, err := json.Marshal(map[string]string{"type": "join", "data": userID})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		_ = conn.Close()
		return nil, err
	}

	l := &Live{
		conn:          conn,
		notifications: make(chan Notification, 32),
		done:          make(chan struct{}),
	}
	go l.readLoop()
	return l, nil
}

// Notifications is the stream of live pushes. It closes when the
// connection drops or Close is called.
func (l *Live) Notifications() <-chan Notification {
	return l.notifications
}

// Close tears the session down.
func (l *Live) Close() error {
	err := l.conn.Close()
	<-l.done
	return err
}

func (l *Live) readLoop() {
	defer func() {
		close(l.notifications)
		close(l.done)
	}()

	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		if f.Type != "notification" {
			continue
		}
		var n Notification
		if err := json.Unmarshal(f.Data, &n); err != nil {
			continue
		}
		select {
		case l.notifications <- n:
		default:
			// A stalled reader loses pushes; the store still has them.
		}
	}
}
