package service

import (
	"context"
	"sync"
	"time"

	"github.com/forgo/craftlink/internal/model"
)

// ============================================================================
// Mock Repositories
// ============================================================================

type mockEngagementStore struct {
	createFunc                func(ctx context.Context, e *model.Engagement) error
	getByIDFunc               func(ctx context.Context, id string) (*model.Engagement, error)
	listFunc                  func(ctx context.Context, filter model.EngagementFilter) ([]*model.Engagement, error)
	conditionalUpdateFunc     func(ctx context.Context, id string, pre model.EngagementPrecondition, patch model.EngagementPatch) (*model.Engagement, error)
	conditionalDeleteFunc     func(ctx context.Context, id string, pre model.EngagementPrecondition) error
	listVisibilityExpiredFunc func(ctx context.Context, cutoff time.Time, limit int) ([]*model.Engagement, error)
}

func (m *mockEngagementStore) Create(ctx context.Context, e *model.Engagement) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, e)
	}
	e.ID = "engagement:new"
	return nil
}

func (m *mockEngagementStore) GetByID(ctx context.Context, id string) (*model.Engagement, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockEngagementStore) List(ctx context.Context, filter model.EngagementFilter) ([]*model.Engagement, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return nil, nil
}

func (m *mockEngagementStore) ConditionalUpdate(ctx context.Context, id string, pre model.EngagementPrecondition, patch model.EngagementPatch) (*model.Engagement, error) {
	if m.conditionalUpdateFunc != nil {
		return m.conditionalUpdateFunc(ctx, id, pre, patch)
	}
	return nil, nil
}

func (m *mockEngagementStore) ConditionalDelete(ctx context.Context, id string, pre model.EngagementPrecondition) error {
	if m.conditionalDeleteFunc != nil {
		return m.conditionalDeleteFunc(ctx, id, pre)
	}
	return nil
}

func (m *mockEngagementStore) ListVisibilityExpired(ctx context.Context, cutoff time.Time, limit int) ([]*model.Engagement, error) {
	if m.listVisibilityExpiredFunc != nil {
		return m.listVisibilityExpiredFunc(ctx, cutoff, limit)
	}
	return nil, nil
}

type mockCraftsmanStore struct {
	saveCraftsmanFunc         func(ctx context.Context, c *model.Craftsman) error
	getCraftsmanFunc          func(ctx context.Context, id string) (*model.Craftsman, error)
	updateCraftsmanRatingFunc func(ctx context.Context, id string, rating float64, reviewCount int, at time.Time) error
}

func (m *mockCraftsmanStore) SaveCraftsman(ctx context.Context, c *model.Craftsman) error {
	if m.saveCraftsmanFunc != nil {
		return m.saveCraftsmanFunc(ctx, c)
	}
	return nil
}

func (m *mockCraftsmanStore) GetCraftsman(ctx context.Context, id string) (*model.Craftsman, error) {
	if m.getCraftsmanFunc != nil {
		return m.getCraftsmanFunc(ctx, id)
	}
	return &model.Craftsman{ID: id, Available: true}, nil
}

func (m *mockCraftsmanStore) UpdateCraftsmanRating(ctx context.Context, id string, rating float64, reviewCount int, at time.Time) error {
	if m.updateCraftsmanRatingFunc != nil {
		return m.updateCraftsmanRatingFunc(ctx, id, rating, reviewCount, at)
	}
	return nil
}

type mockRatedStore struct {
	listRatedByCraftsmanFunc        func(ctx context.Context, craftsmanID string) ([]*model.Engagement, error)
	listCraftsmanIDsWithRatingsFunc func(ctx context.Context) ([]string, error)
}

func (m *mockRatedStore) ListRatedByCraftsman(ctx context.Context, craftsmanID string) ([]*model.Engagement, error) {
	if m.listRatedByCraftsmanFunc != nil {
		return m.listRatedByCraftsmanFunc(ctx, craftsmanID)
	}
	return nil, nil
}

func (m *mockRatedStore) ListCraftsmanIDsWithRatings(ctx context.Context) ([]string, error) {
	if m.listCraftsmanIDsWithRatingsFunc != nil {
		return m.listCraftsmanIDsWithRatingsFunc(ctx)
	}
	return nil, nil
}

type mockNotificationStore struct {
	createNotificationFunc   func(ctx context.Context, n *model.Notification) error
	listNotificationsFunc    func(ctx context.Context, filter model.NotificationFilter) ([]*model.Notification, error)
	markNotificationReadFunc func(ctx context.Context, id, recipientID string, at time.Time) (*model.Notification, error)
}

func (m *mockNotificationStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	if m.createNotificationFunc != nil {
		return m.createNotificationFunc(ctx, n)
	}
	return nil
}

func (m *mockNotificationStore) ListNotifications(ctx context.Context, filter model.NotificationFilter) ([]*model.Notification, error) {
	if m.listNotificationsFunc != nil {
		return m.listNotificationsFunc(ctx, filter)
	}
	return nil, nil
}

func (m *mockNotificationStore) MarkNotificationRead(ctx context.Context, id, recipientID string, at time.Time) (*model.Notification, error) {
	if m.markNotificationReadFunc != nil {
		return m.markNotificationReadFunc(ctx, id, recipientID, at)
	}
	return nil, nil
}

// ============================================================================
// Recording collaborators
// ============================================================================

type sentNotification struct {
	RecipientID string
	Kind        model.NotificationKind
	Payload     map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, recipientID string, kind model.NotificationKind, payload map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{RecipientID: recipientID, Kind: kind, Payload: payload})
	return r.err
}

func (r *recordingNotifier) Sent() []sentNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentNotification, len(r.sent))
	copy(out, r.sent)
	return out
}

type recordingRatingTrigger struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingRatingTrigger) OnEngagementRated(_ context.Context, craftsmanID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, craftsmanID)
	return r.err
}
