package model

import "time"

// NotificationKind identifies the event a notification reports
type NotificationKind string

const (
	// NotificationEngagementRequested tells a craftsman a new request is visible
	NotificationEngagementRequested NotificationKind = "engagement.requested"
	NotificationEngagementAccepted  NotificationKind = "engagement.accepted"
	NotificationEngagementRejected  NotificationKind = "engagement.rejected"
	NotificationEngagementCompleted NotificationKind = "engagement.completed"
	NotificationEngagementCancelled NotificationKind = "engagement.cancelled"
	NotificationEngagementRated     NotificationKind = "engagement.rated"
)

// NotificationKindForStatus returns the kind emitted when an engagement enters status
func NotificationKindForStatus(s EngagementStatus) (NotificationKind, bool) {
	switch s {
	case EngagementStatusAccepted:
		return NotificationEngagementAccepted, true
	case EngagementStatusRejected:
		return NotificationEngagementRejected, true
	case EngagementStatusCompleted:
		return NotificationEngagementCompleted, true
	case EngagementStatusCancelled:
		return NotificationEngagementCancelled, true
	}
	return "", false
}

// Notification is an inbox entry for a user
type Notification struct {
	ID           string            `json:"id"`
	RecipientID  string            `json:"recipient_id"`
	Kind         NotificationKind  `json:"kind"`
	EngagementID string            `json:"engagement_id,omitempty"`
	Title        string            `json:"title,omitempty"`
	Body         string            `json:"body,omitempty"`
	Payload      map[string]string `json:"payload,omitempty"`
	DedupeKey    string            `json:"-"`
	CreatedOn    time.Time         `json:"created_on"`
	ReadOn       *time.Time        `json:"read_on,omitempty"`
}

// IsRead returns true once the recipient has marked it read
func (n *Notification) IsRead() bool {
	return n.ReadOn != nil
}

// NotificationFilter selects inbox entries
type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
	Limit       int
}

// DefaultNotificationPageSize caps inbox listings when no limit is given
const DefaultNotificationPageSize = 50
