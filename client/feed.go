package client

import (
	"context"
	"sort"
	"sync"
)

// Store is the slice of Client the feed needs.
type Store interface {
	ListMyNotifications(ctx context.Context) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (Notification, error)
}

// Feed is the merged notification view a frontend renders: the persisted
// set fetched from the store unioned with live pushes, keyed by id. When
// both sides carry a record the live copy wins; it reflects the freshest
// state at push time.
type Feed struct {
	userID string
	store  Store

	mu   sync.Mutex
	byID map[string]Notification
	live map[string]bool
}

func NewFeed(userID string, store Store) *Feed {
	return &Feed{
		userID: userID,
		store:  store,
		byID:   make(map[string]Notification),
		live:   make(map[string]bool),
	}
}

// Refresh reloads the persisted set and merges it under the live copies.
func (f *Feed) Refresh(ctx context.Context) error {
	fetched, err := f.store.ListMyNotifications(ctx)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range fetched {
		if n.UserID != f.userID {
			continue
		}
		if f.live[n.ID] {
			continue
		}
		f.byID[n.ID] = n
	}
	return nil
}

// ApplyLive merges one pushed notification, displacing any fetched copy.
func (f *Feed) ApplyLive(n Notification) {
	if n.UserID != f.userID {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[n.ID] = n
	f.live[n.ID] = true
}

// Notifications returns the merged view, newest first.
func (f *Feed) Notifications() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	merged := make([]Notification, 0, len(f.byID))
	for _, n := range f.byID {
		merged = append(merged, n)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].ID > merged[j].ID
		}
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged
}

// Unread counts the notifications still marked unread.
func (f *Feed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.byID {
		if !n.Read {
			count++
		}
	}
	return count
}

// MarkRead flips the local copy immediately, then tells the store. A
// store failure leaves the optimistic local state in place; the next
// Refresh converges on whatever the store holds.
func (f *Feed) MarkRead(ctx context.Context, id string) error {
	f.mu.Lock()
	if n, ok := f.byID[id]; ok {
		n.Read = true
		f.byID[id] = n
	}
	f.mu.Unlock()

	updated, err := f.store.MarkNotificationRead(ctx, id)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if updated.UserID == f.userID {
		f.byID[updated.ID] = updated
	}
	f.mu.Unlock()
	return nil
}
