package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/medibook/medibook/libs/auth"
	"github.com/medibook/medibook/libs/events"
	"github.com/medibook/medibook/services/notification-service/internal/dispatch"
	"github.com/medibook/medibook/services/notification-service/internal/storage"
)

type NotificationHandler struct {
	store      storage.Store
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	jwtSecret  string
}

func NewNotificationHandler(store storage.Store, dispatcher *dispatch.Dispatcher, logger *slog.Logger, jwtSecret string) *NotificationHandler {
	return &NotificationHandler{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		jwtSecret:  jwtSecret,
	}
}

type eventResponse struct {
	Success      bool                  `json:"success"`
	Notification *storage.Notification `json:"notification"`
}

// HandleEvent is the synchronous ingress twin of the Kafka consumer, used
// when producers run with the direct HTTP transport. It performs the
// identical mapping, persist and fan-out steps.
func (h *NotificationHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var envelope events.Envelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(envelope.Event) == 0 || string(envelope.Event) == "null" {
		writeError(w, http.StatusBadRequest, "no event")
		return
	}

	notification, err := h.dispatcher.HandleEvent(r.Context(), envelope.Topic, envelope.Event)
	if err != nil {
		h.logger.Error("ingress event failed", "err", err, "topic", envelope.Topic)
		writeError(w, http.StatusInternalServerError, "failed to process event")
		return
	}

	writeJSON(w, http.StatusOK, eventResponse{Success: true, Notification: notification})
}

// My lists the caller's notifications, newest first.
func (h *NotificationHandler) My(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ClaimsFromRequest(r, h.jwtSecret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	list, err := h.store.ListByUser(r.Context(), claims.Sub)
	if err != nil {
		h.logger.Error("list notifications failed", "err", err, "user_id", claims.Sub)
		writeError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// MarkRead flips one notification to read. Only the owning user may do
// this; repeating it is a harmless no-op.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ClaimsFromRequest(r, h.jwtSecret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id := r.PathValue("id")
	notification, err := h.store.Get(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("load notification failed", "err", err, "notification_id", id)
		writeError(w, http.StatusInternalServerError, "failed to load notification")
		return
	}
	if notification.UserID != claims.Sub {
		writeError(w, http.StatusForbidden, "not authorized")
		return
	}

	updated, err := h.store.MarkRead(r.Context(), id)
	if err != nil {
		h.logger.Error("mark read failed", "err", err, "notification_id", id)
		writeError(w, http.StatusInternalServerError, "failed to update notification")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
