package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/forgo/craftlink/internal/clock"
	"github.com/forgo/craftlink/internal/database"
	"github.com/forgo/craftlink/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

const (
	clientID    = "user:client"
	craftsmanID = "user:craft"
)

var (
	asClient    = model.Actor{ID: clientID, Role: model.RoleClient}
	asCraftsman = model.Actor{ID: craftsmanID, Role: model.RoleCraftsman}
	asStranger  = model.Actor{ID: "user:other", Role: model.RoleClient}
	asAdmin     = model.Actor{ID: "user:admin", Role: model.RoleAdmin}
)

func pendingEngagement() *model.Engagement {
	return &model.Engagement{
		ID:          "engagement:1",
		Kind:        model.EngagementKindBooking,
		ClientID:    clientID,
		CraftsmanID: craftsmanID,
		Schedule:    model.Schedule{Date: "2026-03-05", Time: "10:00"},
		Description: "Fix the tap",
		Status:      model.EngagementStatusPending,
		CanEdit:     true,
		CreatedOn:   t0,
		UpdatedOn:   t0,
	}
}

func withStatus(e *model.Engagement, s model.EngagementStatus) *model.Engagement {
	e.Status = s
	e.CanEdit = false
	e.VisibleToCraftsman = true
	return e
}

type engagementFixture struct {
	store    *mockEngagementStore
	crafts   *mockCraftsmanStore
	notifier *recordingNotifier
	ratings  *recordingRatingTrigger
	clock    *clock.Fake
	svc      *EngagementService
}

// newEngagementFixture serves current from GetByID and applies patches to it
func newEngagementFixture(current *model.Engagement) *engagementFixture {
	f := &engagementFixture{
		store:    &mockEngagementStore{},
		crafts:   &mockCraftsmanStore{},
		notifier: &recordingNotifier{},
		ratings:  &recordingRatingTrigger{},
		clock:    clock.NewFake(t0),
	}
	f.store.getByIDFunc = func(_ context.Context, id string) (*model.Engagement, error) {
		if current == nil || current.ID != id {
			return nil, nil
		}
		cp := *current
		return &cp, nil
	}
	f.store.conditionalUpdateFunc = func(_ context.Context, id string, pre model.EngagementPrecondition, patch model.EngagementPatch) (*model.Engagement, error) {
		if current == nil || current.ID != id {
			return nil, database.ErrNotFound
		}
		if !pre.Matches(current) {
			return nil, database.ErrPreconditionFailed
		}
		patch.Apply(current)
		cp := *current
		return &cp, nil
	}
	f.store.conditionalDeleteFunc = func(_ context.Context, id string, pre model.EngagementPrecondition) error {
		if current == nil || current.ID != id {
			return database.ErrNotFound
		}
		if !pre.Matches(current) {
			return database.ErrPreconditionFailed
		}
		return nil
	}
	f.svc = NewEngagementService(EngagementServiceConfig{
		Store:     f.store,
		Craftsmen: f.crafts,
		Notifier:  f.notifier,
		Ratings:   f.ratings,
		Clock:     f.clock,
		Policy:    DefaultWindowPolicy(),
	})
	return f
}

// ============================================================================
// Create
// ============================================================================

func TestEngagementService_Create_Pending(t *testing.T) {
	t.Parallel()

	f := newEngagementFixture(nil)
	var stored *model.Engagement
	f.store.createFunc = func(_ context.Context, e *model.Engagement) error {
		e.ID = "engagement:new"
		stored = e
		return nil
	}

	e, err := f.svc.Create(context.Background(), asClient, &model.CreateEngagementRequest{
		CraftsmanID: craftsmanID,
		Schedule:    model.Schedule{Date: "2026-03-05", Time: "10:00"},
		Description: "  Fix the tap  ",
	})

	require.NoError(t, err)
	assert.Same(t, stored, e)
	assert.Equal(t, model.EngagementStatusPending, e.Status)
	assert.True(t, e.CanEdit)
	assert.False(t, e.VisibleToCraftsman)
	assert.Equal(t, clientID, e.ClientID)
	assert.Equal(t, "Fix the tap", e.Description)
	assert.Equal(t, t0, e.CreatedOn)
	assert.Empty(t, f.notifier.Sent())
}

func TestEngagementService_Create_Validation(t *testing.T) {
	t.Parallel()

	f := newEngagementFixture(nil)
	_, err := f.svc.Create(context.Background(), asClient, &model.CreateEngagementRequest{CraftsmanID: craftsmanID})

	var pd *model.ProblemDetails
	require.ErrorAs(t, err, &pd)
	assert.Equal(t, model.ErrCodeValidation, pd.Code)
}

func TestEngagementService_Create_CraftsmanChecks(t *testing.T) {
	t.Parallel()

	req := &model.CreateEngagementRequest{
		CraftsmanID: craftsmanID,
		Schedule:    model.Schedule{Date: "2026-03-05", Time: "10:00"},
		Description: "Fix the tap",
	}

	t.Run("unknown craftsman", func(t *testing.T) {
		t.Parallel()
		f := newEngagementFixture(nil)
		f.crafts.getCraftsmanFunc = func(context.Context, string) (*model.Craftsman, error) { return nil, nil }
		_, err := f.svc.Create(context.Background(), asClient, req)
		assert.ErrorIs(t, err, ErrCraftsmanNotFound)
	})

	t.Run("unavailable craftsman", func(t *testing.T) {
		t.Parallel()
		f := newEngagementFixture(nil)
		f.crafts.getCraftsmanFunc = func(_ context.Context, id string) (*model.Craftsman, error) {
			return &model.Craftsman{ID: id, Available: false}, nil
		}
		_, err := f.svc.Create(context.Background(), asClient, req)
		assert.ErrorIs(t, err, ErrCraftsmanUnavailable)
	})

	t.Run("self booking", func(t *testing.T) {
		t.Parallel()
		f := newEngagementFixture(nil)
		_, err := f.svc.Create(context.Background(), model.Actor{ID: craftsmanID, Role: model.RoleClient}, req)
		assert.ErrorIs(t, err, ErrSelfEngagement)
	})

	t.Run("admin", func(t *testing.T) {
		t.Parallel()
		f := newEngagementFixture(nil)
		_, err := f.svc.Create(context.Background(), asAdmin, req)
		assert.ErrorIs(t, err, ErrActionNotPermitted)
	})
}

// ============================================================================
// GetByID / ListForActor
// ============================================================================

func TestEngagementService_GetByID_Access(t *testing.T) {
	t.Parallel()

	visible := withStatus(pendingEngagement(), model.EngagementStatusAccepted)
	f := newEngagementFixture(visible)

	for _, actor := range []model.Actor{asClient, asCraftsman, asAdmin} {
		e, err := f.svc.GetByID(context.Background(), "engagement:1", actor)
		require.NoError(t, err, actor.ID)
		assert.Equal(t, "engagement:1", e.ID)
	}

	_, err := f.svc.GetByID(context.Background(), "engagement:1", asStranger)
	assert.ErrorIs(t, err, ErrNotEngagementParty)

	_, err = f.svc.GetByID(context.Background(), "engagement:missing", asClient)
	assert.ErrorIs(t, err, ErrEngagementNotFound)
}

func TestEngagementService_ListForActor_Filters(t *testing.T) {
	t.Parallel()

	f := newEngagementFixture(nil)
	var got model.EngagementFilter
	f.store.listFunc = func(_ context.Context, filter model.EngagementFilter) ([]*model.Engagement, error) {
		got = filter
		return nil, nil
	}

	_, err := f.svc.ListForActor(context.Background(), asCraftsman, ListEngagementsQuery{
		Statuses: []model.EngagementStatus{model.EngagementStatusAccepted},
		Limit:    500,
	})
	require.NoError(t, err)
	assert.Equal(t, craftsmanID, got.CraftsmanID)
	assert.True(t, got.VisibleOnly)
	assert.Equal(t, MaxEngagementPageSize, got.Limit)

	_, err = f.svc.ListForActor(context.Background(), asCraftsman, ListEngagementsQuery{Role: model.RoleClient})
	require.NoError(t, err)
	assert.Equal(t, craftsmanID, got.ClientID)
	assert.False(t, got.VisibleOnly)
	assert.Equal(t, DefaultEngagementPageSize, got.Limit)

	_, err = f.svc.ListForActor(context.Background(), asAdmin, ListEngagementsQuery{})
	assert.ErrorIs(t, err, ErrInvalidListRole)

	_, err = f.svc.ListForActor(context.Background(), asClient, ListEngagementsQuery{Statuses: []model.EngagementStatus{"archived"}})
	var pd *model.ProblemDetails
	assert.ErrorAs(t, err, &pd)
}

// ============================================================================
// SetStatus
// ============================================================================

func TestEngagementService_SetStatus_AcceptNotifiesClient(t *testing.T) {
	t.Parallel()

	e := pendingEngagement()
	e.VisibleToCraftsman = true
	f := newEngagementFixture(e)
	price := 120.0

	updated, err := f.svc.SetStatus(context.Background(), "engagement:1", asCraftsman, &model.SetStatusRequest{
		Status: "accepted",
		Price:  &price,
	})

	require.NoError(t, err)
	assert.Equal(t, model.EngagementStatusAccepted, updated.Status)
	assert.False(t, updated.CanEdit)
	require.NotNil(t, updated.Price)
	assert.Equal(t, 120.0, *updated.Price)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, clientID, sent[0].RecipientID)
	assert.Equal(t, model.NotificationEngagementAccepted, sent[0].Kind)
	assert.Equal(t, "engagement:1", sent[0].Payload["engagement_id"])
}

func TestEngagementService_SetStatus_CancelNotifiesCraftsman(t *testing.T) {
	t.Parallel()

	f := newEngagementFixture(withStatus(pendingEngagement(), model.EngagementStatusAccepted))

	updated, err := f.svc.SetStatus(context.Background(), "engagement:1", asClient, &model.SetStatusRequest{Status: "cancelled"})

	require.NoError(t, err)
	assert.Equal(t, model.EngagementStatusCancelled, updated.Status)
	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, craftsmanID, sent[0].RecipientID)
	assert.Equal(t, model.NotificationEngagementCancelled, sent[0].Kind)
}

func TestEngagementService_SetStatus_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		current *model.Engagement
		actor   model.Actor
		status  string
		wantErr error
	}{
		{"client accepts", withStatus(pendingEngagement(), model.EngagementStatusPending), asClient, "accepted", ErrActionNotPermitted},
		{"stranger cancels", pendingEngagement(), asStranger, "cancelled", ErrNotEngagementParty},
		{"admin completes", withStatus(pendingEngagement(), model.EngagementStatusAccepted), asAdmin, "completed", ErrNotEngagementParty},
		{"complete pending", withStatus(pendingEngagement(), model.EngagementStatusPending), asCraftsman, "completed", ErrInvalidTransition},
		{"accept after cancel", withStatus(pendingEngagement(), model.EngagementStatusCancelled), asCraftsman, "accepted", ErrInvalidTransition},
		{"cancel completed", withStatus(pendingEngagement(), model.EngagementStatusCompleted), asClient, "cancelled", ErrInvalidTransition},
		{"back to pending", withStatus(pendingEngagement(), model.EngagementStatusAccepted), asCraftsman, "pending", ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newEngagementFixture(tt.current)
			before := *tt.current

			_, err := f.svc.SetStatus(context.Background(), tt.current.ID, tt.actor, &model.SetStatusRequest{Status: tt.status})

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before.Status, tt.current.Status)
			assert.Empty(t, f.notifier.Sent())
		})
	}
}

func TestEngagementService_SetStatus_LostRaceIsConcurrentModification(t *testing.T) {
	t.Parallel()

	e := withStatus(pendingEngagement(), model.EngagementStatusPending)
	f := newEngagementFixture(e)
	f.store.conditionalUpdateFunc = func(context.Context, string, model.EngagementPrecondition, model.EngagementPatch) (*model.Engagement, error) {
		return nil, database.ErrPreconditionFailed
	}

	_, err := f.svc.SetStatus(context.Background(), "engagement:1", asCraftsman, &model.SetStatusRequest{Status: "accepted"})

	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Empty(t, f.notifier.Sent())
}

func TestEngagementService_SetStatus_NotificationFailureKeepsTransition(t *testing.T) {
	t.Parallel()

	f := newEngagementFixture(withStatus(pendingEngagement(), model.EngagementStatusPending))
	f.notifier.err = errors.New("inbox down")

	updated, err := f.svc.SetStatus(context.Background(), "engagement:1", asCraftsman, &model.SetStatusRequest{Status: "rejected"})

	require.NoError(t, err)
	assert.Equal(t, model.EngagementStatusRejected, updated.Status)
}

// ============================================================================
// Edit / Delete
// ============================================================================

func TestEngagementService_Edit_InsideWindow(t *testing.T) {
	t.Parallel()

	f := newEngagementFixture(pendingEngagement())
	f.clock.Advance(4 * time.Minute)
	desc := "Fix the tap and the shower"

	updated, err := f.svc.Edit(context.Background(), "engagement:1", asClient, &model.EditEngagementRequest{Description: &desc})

	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)
	assert.Equal(t, model.EngagementStatusPending, updated.Status)
	assert.Equal(t, t0.Add(4*time.Minute), updated.UpdatedOn)
}

func TestEngagementService_Edit_WindowExpiredForEitherParty(t *testing.T) {
	t.Parallel()

	desc := "Too late"
	for _, actor := range []model.Actor{asClient, asCraftsman} {
		e := pendingEngagement()
		e.VisibleToCraftsman = true
		f := newEngagementFixture(e)
		f.clock.Advance(6 * time.Minute)

		_, err := f.svc.Edit(context.Background(), "engagement:1", actor, &model.EditEngagementRequest{Description: &desc})
		assert.ErrorIs(t, err, ErrEditWindowExpired, actor.ID)
		assert.Equal(t, "Fix the tap", e.Description)
	}
}

func TestEngagementService_Edit_CraftsmanForbiddenInsideWindow(t *testing.T) {
	t.Parallel()

	e := pendingEngagement()
	e.VisibleToCraftsman = true
	e.CanEdit = true
	f := newEngagementFixture(e)
	desc := "Mine now"

	_, err := f.svc.Edit(context.Background(), "engagement:1", asCraftsman, &model.EditEngagementRequest{Description: &desc})
	assert.ErrorIs(t, err, ErrActionNotPermitted)
}

func TestEngagementService_Edit_AfterAcceptIsExpired(t *testing.T) {
	t.Parallel()

	f := newEngagementFixture(withStatus(pendingEngagement(), model.EngagementStatusAccepted))
	f.clock.Advance(3 * time.Minute)
	desc := "Change"

	_, err := f.svc.Edit(context.Background(), "engagement:1", asClient, &model.EditEngagementRequest{Description: &desc})
	assert.ErrorIs(t, err, ErrEditWindowExpired)
}

func TestEngagementService_Edit_RaceWithConfirmIsExpired(t *testing.T) {
	t.Parallel()

	e := pendingEngagement()
	f := newEngagementFixture(e)
	f.store.conditionalUpdateFunc = func(context.Context, string, model.EngagementPrecondition, model.EngagementPatch) (*model.Engagement, error) {
		// another request confirmed between read and write
		e.CanEdit = false
		e.VisibleToCraftsman = true
		return nil, database.ErrPreconditionFailed
	}
	desc := "Change"

	_, err := f.svc.Edit(context.Background(), "engagement:1", asClient, &model.EditEngagementRequest{Description: &desc})
	assert.ErrorIs(t, err, ErrEditWindowExpired)
}

func TestEngagementService_Edit_ValidatesAgainstKind(t *testing.T) {
	t.Parallel()

	f := newEngagementFixture(pendingEngagement())

	_, err := f.svc.Edit(context.Background(), "engagement:1", asClient, &model.EditEngagementRequest{
		Schedule: &model.Schedule{PreferredSlots: []model.TimeSlot{{Date: "2026-03-05", From: "10:00"}}},
	})
	var pd *model.ProblemDetails
	require.ErrorAs(t, err, &pd)
	assert.Equal(t, model.ErrCodeValidation, pd.Code)
}

func TestEngagementService_Edit_ExpiredWinsOverInvalidBody(t *testing.T) {
	t.Parallel()

	blank := "   "
	for name, req := range map[string]*model.EditEngagementRequest{
		"empty":       {},
		"blank field": {Description: &blank},
	} {
		f := newEngagementFixture(pendingEngagement())
		f.clock.Advance(6 * time.Minute)

		_, err := f.svc.Edit(context.Background(), "engagement:1", asClient, req)
		assert.ErrorIs(t, err, ErrEditWindowExpired, name)
	}
}

func TestEngagementService_Delete(t *testing.T) {
	t.Parallel()

	t.Run("inside window", func(t *testing.T) {
		t.Parallel()
		f := newEngagementFixture(pendingEngagement())
		f.clock.Advance(5 * time.Minute)
		assert.NoError(t, f.svc.Delete(context.Background(), "engagement:1", asClient))
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()
		f := newEngagementFixture(pendingEngagement())
		f.clock.Advance(5*time.Minute + time.Second)
		assert.ErrorIs(t, f.svc.Delete(context.Background(), "engagement:1", asClient), ErrEditWindowExpired)
	})

	t.Run("accepted", func(t *testing.T) {
		t.Parallel()
		f := newEngagementFixture(withStatus(pendingEngagement(), model.EngagementStatusAccepted))
		assert.ErrorIs(t, f.svc.Delete(context.Background(), "engagement:1", asClient), ErrEditWindowExpired)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		f := newEngagementFixture(nil)
		assert.ErrorIs(t, f.svc.Delete(context.Background(), "engagement:1", asClient), ErrEngagementNotFound)
	})
}

// ============================================================================
// Confirm
// ============================================================================

func TestEngagementService_Confirm_RevealsOnce(t *testing.T) {
	t.Parallel()

	e := pendingEngagement()
	f := newEngagementFixture(e)
	f.clock.Advance(time.Minute)

	updated, err := f.svc.Confirm(context.Background(), "engagement:1", asClient)
	require.NoError(t, err)
	assert.True(t, updated.VisibleToCraftsman)
	assert.False(t, updated.CanEdit)
	assert.Equal(t, model.EngagementStatusPending, updated.Status)

	again, err := f.svc.Confirm(context.Background(), "engagement:1", asClient)
	require.NoError(t, err)
	assert.True(t, again.VisibleToCraftsman)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, craftsmanID, sent[0].RecipientID)
	assert.Equal(t, model.NotificationEngagementRequested, sent[0].Kind)
}

func TestEngagementService_Confirm_LostRaceToReconcilerIsNoop(t *testing.T) {
	t.Parallel()

	e := pendingEngagement()
	f := newEngagementFixture(e)
	f.store.conditionalUpdateFunc = func(context.Context, string, model.EngagementPrecondition, model.EngagementPatch) (*model.Engagement, error) {
		e.CanEdit = false
		e.VisibleToCraftsman = true
		return nil, database.ErrPreconditionFailed
	}

	updated, err := f.svc.Confirm(context.Background(), "engagement:1", asClient)

	require.NoError(t, err)
	assert.True(t, updated.VisibleToCraftsman)
	assert.Empty(t, f.notifier.Sent())
}

func TestEngagementService_Confirm_Rejections(t *testing.T) {
	t.Parallel()

	f := newEngagementFixture(withStatus(pendingEngagement(), model.EngagementStatusAccepted))
	_, err := f.svc.Confirm(context.Background(), "engagement:1", asClient)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	f = newEngagementFixture(withStatus(pendingEngagement(), model.EngagementStatusPending))
	_, err = f.svc.Confirm(context.Background(), "engagement:1", asCraftsman)
	assert.ErrorIs(t, err, ErrActionNotPermitted)
}

// ============================================================================
// AttachRating
// ============================================================================

func TestEngagementService_AttachRating(t *testing.T) {
	t.Parallel()

	f := newEngagementFixture(withStatus(pendingEngagement(), model.EngagementStatusCompleted))
	review := " Great work "

	updated, err := f.svc.AttachRating(context.Background(), "engagement:1", asClient, &model.AttachRatingRequest{Overall: 5, ReviewText: &review})

	require.NoError(t, err)
	require.NotNil(t, updated.Rating)
	assert.Equal(t, 5, updated.Rating.Overall)
	assert.Equal(t, "Great work", *updated.Rating.ReviewText)
	assert.Equal(t, t0, updated.Rating.RatedOn)
	assert.Equal(t, []string{craftsmanID}, f.ratings.calls)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, craftsmanID, sent[0].RecipientID)
	assert.Equal(t, model.NotificationEngagementRated, sent[0].Kind)
	assert.Equal(t, "5", sent[0].Payload["overall"])

	_, err = f.svc.AttachRating(context.Background(), "engagement:1", asClient, &model.AttachRatingRequest{Overall: 1})
	assert.ErrorIs(t, err, ErrAlreadyRated)
}

func TestEngagementService_AttachRating_Rejections(t *testing.T) {
	t.Parallel()

	f := newEngagementFixture(withStatus(pendingEngagement(), model.EngagementStatusAccepted))
	_, err := f.svc.AttachRating(context.Background(), "engagement:1", asClient, &model.AttachRatingRequest{Overall: 4})
	assert.ErrorIs(t, err, ErrNotCompleted)

	f = newEngagementFixture(withStatus(pendingEngagement(), model.EngagementStatusCompleted))
	_, err = f.svc.AttachRating(context.Background(), "engagement:1", asCraftsman, &model.AttachRatingRequest{Overall: 4})
	assert.ErrorIs(t, err, ErrActionNotPermitted)

	_, err = f.svc.AttachRating(context.Background(), "engagement:1", asClient, &model.AttachRatingRequest{Overall: 9})
	var pd *model.ProblemDetails
	assert.ErrorAs(t, err, &pd)
}

func TestEngagementService_AttachRating_AggregatorFailureStillSucceeds(t *testing.T) {
	t.Parallel()

	f := newEngagementFixture(withStatus(pendingEngagement(), model.EngagementStatusCompleted))
	f.ratings.err = errors.New("craftsman store down")

	updated, err := f.svc.AttachRating(context.Background(), "engagement:1", asClient, &model.AttachRatingRequest{Overall: 3})

	require.NoError(t, err)
	assert.True(t, updated.IsRated())
}

func TestEngagementService_AttachRating_LostRaceToOtherRating(t *testing.T) {
	t.Parallel()

	e := withStatus(pendingEngagement(), model.EngagementStatusCompleted)
	f := newEngagementFixture(e)
	f.store.conditionalUpdateFunc = func(context.Context, string, model.EngagementPrecondition, model.EngagementPatch) (*model.Engagement, error) {
		e.Rating = &model.EngagementRating{Overall: 2}
		return nil, database.ErrPreconditionFailed
	}

	_, err := f.svc.AttachRating(context.Background(), "engagement:1", asClient, &model.AttachRatingRequest{Overall: 5})

	assert.ErrorIs(t, err, ErrAlreadyRated)
	assert.Empty(t, f.ratings.calls)
}

func TestOutcomeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ok", outcomeOf(nil))
	assert.Equal(t, "forbidden", outcomeOf(ErrNotEngagementParty))
	assert.Equal(t, "invalid_transition", outcomeOf(ErrAlreadyRated))
	assert.Equal(t, "window_expired", outcomeOf(ErrEditWindowExpired))
	assert.Equal(t, "conflict", outcomeOf(ErrConcurrentModification))
	assert.Equal(t, "invalid", outcomeOf(model.NewValidationError(nil)))
	assert.Equal(t, "error", outcomeOf(errors.New("boom")))
}
