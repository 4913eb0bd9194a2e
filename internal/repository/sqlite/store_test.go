package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/forgo/craftlink/internal/database"
	"github.com/forgo/craftlink/internal/model"
	"github.com/forgo/craftlink/internal/testing/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "craftlink.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newPending(clientID, craftsmanID string, createdOn time.Time) *model.Engagement {
	return &model.Engagement{
		Kind:        model.EngagementKindBooking,
		ClientID:    clientID,
		CraftsmanID: craftsmanID,
		Schedule:    model.Schedule{Date: "2026-03-05", Time: "10:00"},
		Location:    "Berlin",
		Description: "Replace bathroom tiles",
		Images:      []string{"https://img.example/1.jpg"},
		Status:      model.EngagementStatusPending,
		CanEdit:     true,
		CreatedOn:   createdOn,
		UpdatedOn:   createdOn,
	}
}

func boolPtr(b bool) *bool { return &b }

func statusPtr(s model.EngagementStatus) *model.EngagementStatus { return &s }

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "")
	require.Error(t, err)
}

func TestOpen_ReappliesMigrationsIdempotently(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "craftlink.db")
	first, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestCreateGetEngagementRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	e := newPending("user:client", "user:craft", t0)
	require.NoError(t, store.Create(ctx, e))
	require.NotEmpty(t, e.ID)

	got, err := store.GetByID(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e.ClientID, got.ClientID)
	assert.Equal(t, e.Schedule, got.Schedule)
	assert.Equal(t, e.Images, got.Images)
	assert.Equal(t, model.EngagementStatusPending, got.Status)
	assert.True(t, got.CanEdit)
	assert.False(t, got.VisibleToCraftsman)
	assert.Nil(t, got.Price)
	assert.Nil(t, got.Rating)
	assert.True(t, t0.Equal(got.CreatedOn))
}

func TestGetByID_MissingReturnsNil(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	got, err := store.GetByID(context.Background(), "engagement:missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestConditionalUpdate(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	e := newPending("user:client", "user:craft", t0)
	require.NoError(t, store.Create(ctx, e))

	price := 150.0
	updated, err := store.ConditionalUpdate(ctx, e.ID,
		model.EngagementPrecondition{Status: model.EngagementStatusPending},
		model.EngagementPatch{
			Status:    statusPtr(model.EngagementStatusAccepted),
			CanEdit:   boolPtr(false),
			Price:     &price,
			UpdatedOn: t0.Add(time.Minute),
		})
	require.NoError(t, err)
	assert.Equal(t, model.EngagementStatusAccepted, updated.Status)
	assert.False(t, updated.CanEdit)
	require.NotNil(t, updated.Price)
	assert.Equal(t, 150.0, *updated.Price)
	assert.True(t, t0.Add(time.Minute).Equal(updated.UpdatedOn))

	// Same precondition again no longer holds
	_, err = store.ConditionalUpdate(ctx, e.ID,
		model.EngagementPrecondition{Status: model.EngagementStatusPending},
		model.EngagementPatch{Status: statusPtr(model.EngagementStatusRejected)})
	assert.ErrorIs(t, err, database.ErrPreconditionFailed)

	_, err = store.ConditionalUpdate(ctx, "engagement:missing",
		model.EngagementPrecondition{Status: model.EngagementStatusPending},
		model.EngagementPatch{Status: statusPtr(model.EngagementStatusRejected)})
	assert.ErrorIs(t, err, database.ErrNotFound)

	got, err := store.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EngagementStatusAccepted, got.Status)
}

func TestConditionalUpdate_RatingOnce(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	e := newPending("user:client", "user:craft", t0)
	e.Status = model.EngagementStatusCompleted
	e.CanEdit = false
	require.NoError(t, store.Create(ctx, e))

	pre := model.EngagementPrecondition{Status: model.EngagementStatusCompleted, Unrated: true}
	text := "Great work"
	rated, err := store.ConditionalUpdate(ctx, e.ID, pre, model.EngagementPatch{
		Rating: &model.EngagementRating{Overall: 5, ReviewText: &text, RatedOn: t0},
	})
	require.NoError(t, err)
	require.NotNil(t, rated.Rating)
	assert.Equal(t, 5, rated.Rating.Overall)
	assert.Equal(t, "Great work", *rated.Rating.ReviewText)

	_, err = store.ConditionalUpdate(ctx, e.ID, pre, model.EngagementPatch{
		Rating: &model.EngagementRating{Overall: 1, RatedOn: t0},
	})
	assert.ErrorIs(t, err, database.ErrPreconditionFailed)
}

func TestConditionalUpdate_ConcurrentFlipHasOneWinner(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	e := newPending("user:client", "user:craft", t0)
	require.NoError(t, store.Create(ctx, e))

	pre := model.EngagementPrecondition{
		Status:             model.EngagementStatusPending,
		CanEdit:            boolPtr(true),
		VisibleToCraftsman: boolPtr(false),
	}
	patch := model.EngagementPatch{CanEdit: boolPtr(false), VisibleToCraftsman: boolPtr(true), UpdatedOn: t0}

	var wins, losses atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ConditionalUpdate(ctx, e.ID, pre, patch)
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, database.ErrPreconditionFailed):
				losses.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(7), losses.Load())
}

func TestConditionalDelete(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	e := newPending("user:client", "user:craft", t0)
	require.NoError(t, store.Create(ctx, e))

	err := store.ConditionalDelete(ctx, e.ID, model.EngagementPrecondition{Status: model.EngagementStatusAccepted})
	assert.ErrorIs(t, err, database.ErrPreconditionFailed)

	require.NoError(t, store.ConditionalDelete(ctx, e.ID, model.EngagementPrecondition{Status: model.EngagementStatusPending}))

	err = store.ConditionalDelete(ctx, e.ID, model.EngagementPrecondition{Status: model.EngagementStatusPending})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestListVisibilityExpired(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	old := newPending("user:a", "user:craft", t0)
	require.NoError(t, store.Create(ctx, old))
	older := newPending("user:b", "user:craft", t0.Add(-time.Minute))
	require.NoError(t, store.Create(ctx, older))
	fresh := newPending("user:c", "user:craft", t0.Add(9*time.Minute))
	require.NoError(t, store.Create(ctx, fresh))
	visible := newPending("user:d", "user:craft", t0)
	visible.VisibleToCraftsman = true
	visible.CanEdit = false
	require.NoError(t, store.Create(ctx, visible))
	accepted := newPending("user:e", "user:craft", t0)
	accepted.Status = model.EngagementStatusAccepted
	require.NoError(t, store.Create(ctx, accepted))

	cutoff := t0.Add(time.Minute)
	got, err := store.ListVisibilityExpired(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, older.ID, got[0].ID)
	assert.Equal(t, old.ID, got[1].ID)

	limited, err := store.ListVisibilityExpired(ctx, cutoff, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestList_Filters(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	hidden := newPending("user:client", "user:craft", t0)
	require.NoError(t, store.Create(ctx, hidden))
	shown := newPending("user:client", "user:craft", t0.Add(time.Minute))
	shown.VisibleToCraftsman = true
	require.NoError(t, store.Create(ctx, shown))
	accepted := newPending("user:client", "user:craft", t0.Add(-time.Minute))
	accepted.Status = model.EngagementStatusAccepted
	accepted.CanEdit = false
	require.NoError(t, store.Create(ctx, accepted))
	other := newPending("user:other", "user:craft2", t0)
	require.NoError(t, store.Create(ctx, other))

	byClient, err := store.List(ctx, model.EngagementFilter{ClientID: "user:client"})
	require.NoError(t, err)
	require.Len(t, byClient, 3)
	assert.Equal(t, shown.ID, byClient[0].ID, "newest first")

	byCraftsman, err := store.List(ctx, model.EngagementFilter{CraftsmanID: "user:craft", VisibleOnly: true})
	require.NoError(t, err)
	require.Len(t, byCraftsman, 2, "hidden pending is excluded, accepted is listed")
	assert.Equal(t, shown.ID, byCraftsman[0].ID)
	assert.Equal(t, accepted.ID, byCraftsman[1].ID)

	byStatus, err := store.List(ctx, model.EngagementFilter{
		ClientID: "user:client",
		Statuses: []model.EngagementStatus{model.EngagementStatusAccepted, model.EngagementStatusCompleted},
	})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, accepted.ID, byStatus[0].ID)
}

func TestRatedListings(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	for i, overall := range []int{4, 5} {
		e := newPending("user:client", "user:craft", t0.Add(time.Duration(i)*time.Minute))
		e.Status = model.EngagementStatusCompleted
		require.NoError(t, store.Create(ctx, e))
		_, err := store.ConditionalUpdate(ctx, e.ID,
			model.EngagementPrecondition{Status: model.EngagementStatusCompleted, Unrated: true},
			model.EngagementPatch{Rating: &model.EngagementRating{Overall: overall, RatedOn: t0}})
		require.NoError(t, err)
	}
	unrated := newPending("user:client", "user:craft", t0)
	require.NoError(t, store.Create(ctx, unrated))

	rated, err := store.ListRatedByCraftsman(ctx, "user:craft")
	require.NoError(t, err)
	assert.Len(t, rated, 2)

	ids, err := store.ListCraftsmanIDsWithRatings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"user:craft"}, ids)
}

func TestCraftsmen(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	missing, err := store.GetCraftsman(ctx, "user:craft")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.ErrorIs(t, store.UpdateCraftsmanRating(ctx, "user:craft", 4.5, 2, t0), database.ErrNotFound)

	require.NoError(t, store.SaveCraftsman(ctx, &model.Craftsman{ID: "user:craft", DisplayName: "Ada", Available: true}))
	require.NoError(t, store.UpdateCraftsmanRating(ctx, "user:craft", 4.5, 2, t0))
	require.NoError(t, store.SaveCraftsman(ctx, &model.Craftsman{ID: "user:craft", DisplayName: "Ada", Available: false}))

	c, err := store.GetCraftsman(ctx, "user:craft")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.False(t, c.Available)
	assert.Equal(t, 4.5, c.Rating, "save keeps the roll-up")
	assert.Equal(t, 2, c.ReviewCount)
	require.NotNil(t, c.RatingUpdatedOn)
	assert.True(t, t0.Equal(*c.RatingUpdatedOn))
}

func TestNotifications(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	n := &model.Notification{
		RecipientID:  "user:craft",
		Kind:         model.NotificationEngagementRequested,
		EngagementID: "engagement:1",
		Payload:      map[string]string{"engagement_id": "engagement:1"},
		DedupeKey:    "engagement.requested:engagement:1",
		CreatedOn:    t0,
	}
	require.NoError(t, store.CreateNotification(ctx, n))
	require.NotEmpty(t, n.ID)

	dup := *n
	dup.ID = ""
	assert.ErrorIs(t, store.CreateNotification(ctx, &dup), database.ErrDuplicate)

	inbox, err := store.ListNotifications(ctx, model.NotificationFilter{RecipientID: "user:craft"})
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "engagement:1", inbox[0].Payload["engagement_id"])

	_, err = store.MarkNotificationRead(ctx, n.ID, "user:someone-else", t0)
	assert.ErrorIs(t, err, database.ErrNotFound)

	read, err := store.MarkNotificationRead(ctx, n.ID, "user:craft", t0.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, read.ReadOn)

	again, err := store.MarkNotificationRead(ctx, n.ID, "user:craft", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, read.ReadOn.Equal(*again.ReadOn), "first read time is kept")

	unread, err := store.ListNotifications(ctx, model.NotificationFilter{RecipientID: "user:craft", UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestListVisibilityExpired_SkipsConfirmedAndClosed(t *testing.T) {
	store := openTempStore(t)
	f := fixtures.New(store, t0)

	craftsman := f.CreateCraftsman(t)
	stale := f.CreateEngagement(t, craftsman.ID, fixtures.CreatedAgo(20*time.Minute))
	f.CreateEngagement(t, craftsman.ID, fixtures.CreatedAgo(20*time.Minute), fixtures.Confirmed())
	f.CreateEngagement(t, craftsman.ID, fixtures.CreatedAgo(20*time.Minute), fixtures.WithStatus(model.EngagementStatusAccepted))
	f.CreateEngagement(t, craftsman.ID, fixtures.CreatedAgo(time.Minute))

	expired, err := store.ListVisibilityExpired(context.Background(), t0.Add(-10*time.Minute), 50)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)
}
