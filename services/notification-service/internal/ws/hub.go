package ws

import (
	"context"
	"log/slog"
	"sync"

	"github.com/medibook/medibook/services/notification-service/internal/storage"
)

// Frame is the envelope for every message on the real-time channel.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	FrameTypeJoin         = "join"
	FrameTypeNotification = "notification"
	FrameTypePing         = "ping"
	FrameTypePong         = "pong"
)

type joinRequest struct {
	client *Client
	userID string
}

type delivery struct {
	userID string
	frame  Frame
}

// Hub owns the live sessions, grouped into rooms keyed by user ID. Room
// membership is mutated only inside Run, so connect, join and disconnect
// are atomic with respect to deliveries. The hub is also the sole closer
// of a client's send channel: once a session is dropped it stays dropped,
// even if a join frame from its still-running read pump arrives later.
// Sessions are process-local and lost on restart; clients reconnect and
// rejoin.
type Hub struct {
	logger *slog.Logger

	register   chan *Client
	unregister chan *Client
	join       chan joinRequest
	deliver    chan delivery
	done       chan struct{}

	rooms map[string]map[*Client]bool
	mu    sync.RWMutex
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan joinRequest),
		deliver:    make(chan delivery, 256),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Client]bool),
	}
}

// Run processes lifecycle and delivery events until ctx is canceled, then
// closes every live session. Closing done releases any pump blocked on a
// lifecycle channel after the loop has stopped receiving.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return ctx.Err()

		case client := <-h.register:
			h.add(client)

		case client := <-h.unregister:
			h.remove(client)

		case req := <-h.join:
			h.rekey(req.client, req.userID)

		case d := <-h.deliver:
			h.push(d)
		}
	}
}

// NotifyUser pushes a notification to every session in the recipient's
// room. Zero sessions is a silent no-op: the store already holds the
// record, and the push path carries no acknowledgment or retry.
func (h *Hub) NotifyUser(userID string, n storage.Notification) {
	if userID == "" {
		return
	}
	d := delivery{userID: userID, frame: Frame{Type: FrameTypeNotification, Data: n}}
	select {
	case h.deliver <- d:
	default:
		h.logger.Warn("delivery queue full, dropping live push", "user_id", userID)
	}
}

// SessionCount reports live sessions in one user's room.
func (h *Hub) SessionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	if client.userID != "" {
		room := h.rooms[client.userID]
		if room == nil {
			room = make(map[*Client]bool)
			h.rooms[client.userID] = room
		}
		room[client] = true
	}
	h.mu.Unlock()
	h.logger.Info("ws session connected", "user_id", client.userID)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	room := h.rooms[client.userID]
	if room != nil && room[client] {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, client.userID)
		}
	}
	if !client.closed {
		client.closed = true
		close(client.send)
	}
	h.mu.Unlock()
	h.logger.Info("ws session disconnected", "user_id", client.userID)
}

// rekey moves a session into a new room when the client self-identifies
// via a join frame. The identifier is client-supplied and unverified.
// A session the hub already dropped never rejoins: its send channel is
// closed and delivering to it would panic the loop.
func (h *Hub) rekey(client *Client, userID string) {
	if userID == "" || userID == client.userID {
		return
	}
	h.mu.Lock()
	if client.closed {
		h.mu.Unlock()
		return
	}
	if old := h.rooms[client.userID]; old != nil {
		delete(old, client)
		if len(old) == 0 {
			delete(h.rooms, client.userID)
		}
	}
	client.userID = userID
	room := h.rooms[userID]
	if room == nil {
		room = make(map[*Client]bool)
		h.rooms[userID] = room
	}
	room[client] = true
	h.mu.Unlock()
	h.logger.Info("ws session joined room", "user_id", userID)
}

func (h *Hub) push(d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[d.userID]
	if len(room) == 0 {
		return
	}

	var stale []*Client
	for client := range room {
		select {
		case client.send <- d.frame:
		default:
			// Slow consumer; drop the session rather than block the hub.
			stale = append(stale, client)
		}
	}
	for _, client := range stale {
		delete(room, client)
		client.closed = true
		close(client.send)
	}
	if len(room) == 0 {
		delete(h.rooms, d.userID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	closed := 0
	for userID, room := range h.rooms {
		for client := range room {
			if !client.closed {
				client.closed = true
				close(client.send)
				closed++
			}
		}
		delete(h.rooms, userID)
	}
	h.logger.Info("ws hub stopped", "sessions_closed", closed)
}
