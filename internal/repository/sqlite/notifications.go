package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/forgo/craftlink/internal/database"
	"github.com/forgo/craftlink/internal/model"
)

const notificationColumns = `id, recipient_id, kind, engagement_id, title, body, payload_json, dedupe_key, created_at, read_at`

// CreateNotification stores an inbox entry. Returns database.ErrDuplicate
// when the recipient already has one with the same dedupe key.
func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) error {
	payload := n.Payload
	if payload == nil {
		payload = map[string]string{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	id := newID("notification")
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		id, n.RecipientID, string(n.Kind), n.EngagementID, n.Title, n.Body, string(payloadJSON), n.DedupeKey, toMillis(n.CreatedOn),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return database.ErrDuplicate
		}
		return queryErr("create notification", err)
	}
	n.ID = id
	return nil
}

// ListNotifications returns a recipient's inbox, newest first.
func (s *Store) ListNotifications(ctx context.Context, filter model.NotificationFilter) ([]*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = ?`
	if filter.UnreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = model.DefaultNotificationPageSize
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, filter.RecipientID, limit)
	if err != nil {
		return nil, queryErr("list notifications", err)
	}
	defer rows.Close()

	out := make([]*model.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, queryErr("scan notification", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("list notifications", err)
	}
	return out, nil
}

// MarkNotificationRead sets read_at once. Returns database.ErrNotFound when the
// notification does not exist or belongs to another recipient.
func (s *Store) MarkNotificationRead(ctx context.Context, id, recipientID string, at time.Time) (*model.Notification, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE id = ? AND recipient_id = ? RETURNING `+notificationColumns,
		toMillis(at), id, recipientID,
	)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, queryErr("mark notification read", err)
	}
	return n, nil
}

func scanNotification(row rowScanner) (*model.Notification, error) {
	var (
		n           model.Notification
		kind        string
		payloadJSON string
		createdAt   int64
		readAt      sql.NullInt64
	)
	if err := row.Scan(&n.ID, &n.RecipientID, &kind, &n.EngagementID, &n.Title, &n.Body,
		&payloadJSON, &n.DedupeKey, &createdAt, &readAt); err != nil {
		return nil, err
	}
	n.Kind = model.NotificationKind(kind)
	n.CreatedOn = fromMillis(createdAt)
	if readAt.Valid {
		t := fromMillis(readAt.Int64)
		n.ReadOn = &t
	}
	if err := json.Unmarshal([]byte(payloadJSON), &n.Payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &n, nil
}
