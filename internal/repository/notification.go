package repository

import (
	"context"
	"errors"
	"time"

	"github.com/forgo/craftlink/internal/database"
	"github.com/forgo/craftlink/internal/model"
)

// NotificationRepository handles inbox entries
type NotificationRepository struct {
	db database.Database
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db database.Database) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateNotification stores a notification. Returns database.ErrDuplicate when the
// recipient already has an entry with the same dedupe key.
func (r *NotificationRepository) CreateNotification(ctx context.Context, n *model.Notification) error {
	query := `
		CREATE notification CONTENT {
			recipient_id: $recipient_id,
			kind: $kind,
			engagement_id: $engagement_id,
			title: $title,
			body: $body,
			payload: $payload,
			dedupe_key: $dedupe_key,
			created_on: <datetime>$created_on
		}
	`
	payload := n.Payload
	if payload == nil {
		payload = map[string]string{}
	}
	vars := map[string]interface{}{
		"recipient_id":  n.RecipientID,
		"kind":          string(n.Kind),
		"engagement_id": n.EngagementID,
		"title":         n.Title,
		"body":          n.Body,
		"payload":       payload,
		"dedupe_key":    n.DedupeKey,
		"created_on":    n.CreatedOn.UTC().Format(time.RFC3339Nano),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}
	n.ID = created.ID
	return nil
}

// ListNotifications returns a recipient's notifications, newest first
func (r *NotificationRepository) ListNotifications(ctx context.Context, filter model.NotificationFilter) ([]*model.Notification, error) {
	query := `SELECT * FROM notification WHERE recipient_id = $recipient_id`
	if filter.UnreadOnly {
		query += ` AND read_on = NONE`
	}
	query += ` ORDER BY created_on DESC LIMIT $limit`

	limit := filter.Limit
	if limit <= 0 {
		limit = model.DefaultNotificationPageSize
	}
	vars := map[string]interface{}{
		"recipient_id": filter.RecipientID,
		"limit":        limit,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	notifications := make([]*model.Notification, 0)
	for _, item := range extractQueryResults(result) {
		n, err := parseNotification(item)
		if err != nil {
			continue
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// MarkNotificationRead sets read_on for a recipient's notification.
// Returns database.ErrNotFound if it does not exist or belongs to someone else.
func (r *NotificationRepository) MarkNotificationRead(ctx context.Context, id, recipientID string, at time.Time) (*model.Notification, error) {
	query := `
		UPDATE type::record($id) SET read_on = <datetime>$at
		WHERE recipient_id = $recipient_id AND read_on = NONE
		RETURN AFTER
	`
	vars := map[string]interface{}{
		"id":           id,
		"recipient_id": recipientID,
		"at":           at.UTC().Format(time.RFC3339Nano),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	if records := extractQueryResults(result); len(records) > 0 {
		return parseNotification(records[0])
	}

	// Already read, or not ours
	existing, err := r.db.QueryOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": id})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	n, err := parseNotification(existing)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != recipientID {
		return nil, database.ErrNotFound
	}
	return n, nil
}

func parseNotification(result interface{}) (*model.Notification, error) {
	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}

	n := &model.Notification{
		ID:           convertSurrealID(data["id"]),
		RecipientID:  getString(data, "recipient_id"),
		Kind:         model.NotificationKind(getString(data, "kind")),
		EngagementID: getString(data, "engagement_id"),
		Title:        getString(data, "title"),
		Body:         getString(data, "body"),
		Payload:      getStringMap(data, "payload"),
		DedupeKey:    getString(data, "dedupe_key"),
		ReadOn:       getTime(data, "read_on"),
	}
	if t := getTime(data, "created_on"); t != nil {
		n.CreatedOn = *t
	}
	return n, nil
}
