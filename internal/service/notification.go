package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgo/craftlink/internal/clock"
	"github.com/forgo/craftlink/internal/database"
	"github.com/forgo/craftlink/internal/metrics"
	"github.com/forgo/craftlink/internal/model"
	"github.com/forgo/craftlink/internal/render"
)

// NotificationStore persists inbox entries
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, filter model.NotificationFilter) ([]*model.Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipientID string, at time.Time) (*model.Notification, error)
}

// Notifier sends a notification to one recipient. Implementations treat a
// redelivery of the same (kind, engagement) as a no-op.
type Notifier interface {
	Notify(ctx context.Context, recipientID string, kind model.NotificationKind, payload map[string]string) error
}

// EventPublisher pushes stored notifications to open streams
type EventPublisher interface {
	SendToUser(userID string, event *Event)
}

// NotificationService writes rendered notifications to the inbox store.
// Outbound delivery (SMS, email, push) reads from the inbox and lives elsewhere.
type NotificationService struct {
	store   NotificationStore
	events  EventPublisher
	clock   clock.Clock
	locale  string
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NotificationServiceConfig holds configuration for the notification service
type NotificationServiceConfig struct {
	Store         NotificationStore
	Events        EventPublisher
	Clock         clock.Clock
	DefaultLocale string
	Metrics       *metrics.Collector
	Logger        *slog.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(cfg NotificationServiceConfig) *NotificationService {
	s := &NotificationService{
		store:   cfg.Store,
		events:  cfg.Events,
		clock:   cfg.Clock,
		locale:  cfg.DefaultLocale,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.locale == "" {
		s.locale = "en"
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Notify renders and stores a notification. A duplicate is counted and ignored.
func (s *NotificationService) Notify(ctx context.Context, recipientID string, kind model.NotificationKind, payload map[string]string) error {
	if recipientID == "" {
		return ErrRecipientRequired
	}

	engagementID := payload[render.PayloadEngagementID]
	out := render.Render(render.Printer(s.locale), kind, payload)
	n := &model.Notification{
		RecipientID:  recipientID,
		Kind:         kind,
		EngagementID: engagementID,
		Title:        out.Title,
		Body:         out.Body,
		Payload:      payload,
		DedupeKey:    dedupeKey(kind, engagementID),
		CreatedOn:    s.clock.Now(),
	}

	err := s.store.CreateNotification(ctx, n)
	switch {
	case errors.Is(err, database.ErrDuplicate):
		s.metrics.RecordNotification(string(kind), "duplicate")
		s.logger.Debug("duplicate notification ignored",
			slog.String("recipient_id", recipientID),
			slog.String("kind", string(kind)),
			slog.String("engagement_id", engagementID),
		)
		return nil
	case err != nil:
		s.metrics.RecordNotification(string(kind), "failed")
		return fmt.Errorf("failed to store notification: %w", err)
	}

	s.metrics.RecordNotification(string(kind), "sent")
	if s.events != nil {
		s.events.SendToUser(recipientID, &Event{Type: EventNotification, Data: n})
	}
	return nil
}

// ListInbox returns the actor's notifications, newest first
func (s *NotificationService) ListInbox(ctx context.Context, actor model.Actor, unreadOnly bool, limit int) ([]*model.Notification, error) {
	if limit <= 0 || limit > model.DefaultNotificationPageSize {
		limit = model.DefaultNotificationPageSize
	}
	items, err := s.store.ListNotifications(ctx, model.NotificationFilter{
		RecipientID: actor.ID,
		UnreadOnly:  unreadOnly,
		Limit:       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return items, nil
}

// MarkRead marks one of the actor's notifications read. Marking twice keeps the first read time.
func (s *NotificationService) MarkRead(ctx context.Context, id string, actor model.Actor) (*model.Notification, error) {
	n, err := s.store.MarkNotificationRead(ctx, id, actor.ID, s.clock.Now())
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return n, nil
}

func dedupeKey(kind model.NotificationKind, engagementID string) string {
	return string(kind) + ":" + engagementID
}
