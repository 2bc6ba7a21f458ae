package dispatch

import (
	"context"
	"log/slog"

	"github.com/medibook/medibook/services/notification-service/internal/storage"
)

// Fanout pushes a notification to every live session of its recipient. A
// recipient with no connected session is a normal no-op.
type Fanout interface {
	NotifyUser(userID string, n storage.Notification)
}

// Dispatcher is the convergence point for both ingress paths: the Kafka
// consumer and the HTTP fallback endpoint feed the same mapping, persist
// and push steps. Persist and push are deliberately not transactional;
// the store is the durability backstop for anything the push misses.
type Dispatcher struct {
	store  storage.Store
	fanout Fanout
	logger *slog.Logger
}

func New(store storage.Store, fanout Fanout, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, fanout: fanout, logger: logger}
}

// HandleEvent maps, persists and fans out one domain event. A nil
// notification with a nil error means the event was dropped (malformed or
// unrecognized). Broker redelivery of the same event creates a duplicate
// record; there is no dedup key.
func (d *Dispatcher) HandleEvent(ctx context.Context, topic string, event []byte) (*storage.Notification, error) {
	n, ok := MapEvent(topic, event)
	if !ok {
		d.logger.Warn("event dropped", "topic", topic)
		return nil, nil
	}

	saved, err := d.store.Insert(ctx, n)
	if err != nil {
		return nil, err
	}

	d.fanout.NotifyUser(saved.UserID, saved)
	d.logger.Info("notification created",
		"notification_id", saved.ID,
		"user_id", saved.UserID,
		"type", saved.Type,
	)
	return &saved, nil
}
