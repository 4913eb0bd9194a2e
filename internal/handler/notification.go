package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/forgo/craftlink/internal/model"
	"github.com/forgo/craftlink/internal/service"
)

// Inbox reads and acknowledges notifications
type Inbox interface {
	ListInbox(ctx context.Context, actor model.Actor, unreadOnly bool, limit int) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id string, actor model.Actor) (*model.Notification, error)
}

// EventStream hands out live inbox subscriptions
type EventStream interface {
	Subscribe(userID, subscriberID string) *service.Subscriber
	Unsubscribe(userID, subscriberID string)
}

// NotificationHandler handles inbox endpoints
type NotificationHandler struct {
	inbox  Inbox
	stream EventStream
}

// NewNotificationHandler creates a new notification handler. stream may be nil,
// in which case the stream endpoint answers 404.
func NewNotificationHandler(inbox Inbox, stream EventStream) *NotificationHandler {
	return &NotificationHandler{inbox: inbox, stream: stream}
}

// List handles GET /v1/notifications?unread=true&limit=
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	unread := r.URL.Query().Get("unread") == "true"
	limit := queryInt(r, "limit", model.DefaultNotificationPageSize, 1, 200)

	items, err := h.inbox.ListInbox(r.Context(), actor, unread, limit)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "list notifications"))
		return
	}
	if items == nil {
		items = []*model.Notification{}
	}

	WriteCollection(w, http.StatusOK, items, &PaginationInfo{
		Limit:   limit,
		HasMore: len(items) == limit,
	}, map[string]string{
		"self": "/v1/notifications",
	})
}

// MarkRead handles POST /v1/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	n, err := h.inbox.MarkRead(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "mark notification read"))
		return
	}

	WriteData(w, http.StatusOK, n, nil)
}

// Stream handles GET /v1/notifications/stream as server-sent events.
// Only notifications stored after the stream opens are sent.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if h.stream == nil {
		WriteError(w, model.NewNotFoundError("notification stream"))
		return
	}

	subscriberID := uuid.NewString()
	sub := h.stream.Subscribe(actor.ID, subscriberID)
	defer h.stream.Unsubscribe(actor.ID, subscriberID)

	rc := http.NewResponseController(w)
	// The server write timeout would otherwise end the stream
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if _, err := io.WriteString(w, event.Format()); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
