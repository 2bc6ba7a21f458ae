package ws

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// ServeWS upgrades the connection and registers the session with the hub.
// The userId query parameter is an advisory identity: it is trusted
// without verification, same as the join frame. A real auth handshake is
// still an open item here.
func ServeWS(hub *Hub, allowedOrigin string, logger *slog.Logger) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || strings.EqualFold(origin, allowedOrigin)
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("ws upgrade failed", "err", err)
			return
		}

		userID := r.URL.Query().Get("userId")
		client := NewClient(hub, conn, userID, logger)
		select {
		case hub.register <- client:
			client.Start()
		case <-hub.done:
			_ = conn.Close()
		}
	})
}
