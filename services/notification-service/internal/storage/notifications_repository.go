package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/medibook/medibook/libs/db"
)

var ErrNotFound = errors.New("notification not found")

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Notification is the durable per-user record created by the event
// consumer. UserID is always the recipient: the doctor for new
// appointment requests, the patient for status changes, the user
// themselves for welcome notices. Records are never deleted; the only
// mutation is the read transition.
type Notification struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	AppointmentID string    `json:"appointmentId,omitempty"`
	Read          bool      `json:"read"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Store is the persistence surface the HTTP handlers and the event
// dispatcher depend on.
type Store interface {
	Insert(ctx context.Context, n Notification) (Notification, error)
	ListByUser(ctx context.Context, userID string) ([]Notification, error)
	Get(ctx context.Context, id string) (Notification, error)
	MarkRead(ctx context.Context, id string) (Notification, error)
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Insert(ctx context.Context, n Notification) (Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, appointment_id, read)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, n.ID, n.UserID, n.Type, n.Title, n.Message, nullable(n.AppointmentID), n.Read).Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return Notification{}, err
	}
	return n, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, type, title, message, COALESCE(appointment_id, ''), read, created_at, updated_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.AppointmentID, &n.Read, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return list, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Notification, error) {
	var n Notification
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, type, title, message, COALESCE(appointment_id, ''), read, created_at, updated_at
		FROM notifications
		WHERE id = $1
	`, id).Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.AppointmentID, &n.Read, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, err
	}
	return n, nil
}

// MarkRead flips read to true. Marking an already-read notification is a
// no-op that still succeeds.
func (r *Repository) MarkRead(ctx context.Context, id string) (Notification, error) {
	var n Notification
	err := r.pool.QueryRow(ctx, `
		UPDATE notifications
		SET read = TRUE, updated_at = now()
		WHERE id = $1
		RETURNING id, user_id, type, title, message, COALESCE(appointment_id, ''), read, created_at, updated_at
	`, id).Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.AppointmentID, &n.Read, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, err
	}
	return n, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
