// Package fixtures provides engagement and craftsman factories for store tests.
//
// Each factory method creates a record with sensible defaults while allowing
// customization via option functions, writes it through the store and returns
// the stored model.
//
//	f := fixtures.New(store, start)
//	craftsman := f.CreateCraftsman(t)
//	e := f.CreateEngagement(t, craftsman.ID, fixtures.CreatedAgo(15*time.Minute))
package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/forgo/craftlink/internal/model"
)

// Store is the write surface the factories need
type Store interface {
	Create(ctx context.Context, e *model.Engagement) error
	SaveCraftsman(ctx context.Context, c *model.Craftsman) error
}

// Factory creates test records in a store
type Factory struct {
	store Store
	now   time.Time
}

// New creates a fixture factory whose records are stamped relative to now
func New(store Store, now time.Time) *Factory {
	return &Factory{store: store, now: now}
}

// randomID generates a random hex ID
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// ============================================================================
// Craftsman Fixtures
// ============================================================================

// CreateCraftsman saves an available craftsman
func (f *Factory) CreateCraftsman(t *testing.T, opts ...func(*model.Craftsman)) *model.Craftsman {
	t.Helper()

	c := &model.Craftsman{
		ID:          "user:craft_" + randomID(),
		DisplayName: "Craftsman " + randomID()[:4],
		Available:   true,
	}
	for _, fn := range opts {
		fn(c)
	}
	if err := f.store.SaveCraftsman(context.Background(), c); err != nil {
		t.Fatalf("fixtures: failed to save craftsman: %v", err)
	}
	return c
}

// ============================================================================
// Engagement Fixtures
// ============================================================================

// EngagementOpt customizes engagement creation
type EngagementOpt func(*model.Engagement)

// CreatedAgo backdates the engagement by d
func CreatedAgo(d time.Duration) EngagementOpt {
	return func(e *model.Engagement) {
		e.CreatedOn = e.CreatedOn.Add(-d)
		e.UpdatedOn = e.CreatedOn
	}
}

// WithClient sets the requesting client
func WithClient(id string) EngagementOpt {
	return func(e *model.Engagement) { e.ClientID = id }
}

// WithStatus sets the status; anything past pending is locked and visible
func WithStatus(s model.EngagementStatus) EngagementOpt {
	return func(e *model.Engagement) {
		e.Status = s
		if s != model.EngagementStatusPending {
			e.CanEdit = false
			e.VisibleToCraftsman = true
		}
	}
}

// Confirmed marks the engagement as confirmed by the client
func Confirmed() EngagementOpt {
	return func(e *model.Engagement) {
		e.CanEdit = false
		e.VisibleToCraftsman = true
	}
}

// CreateEngagement creates a pending booking for craftsmanID
func (f *Factory) CreateEngagement(t *testing.T, craftsmanID string, opts ...EngagementOpt) *model.Engagement {
	t.Helper()

	e := &model.Engagement{
		Kind:        model.EngagementKindBooking,
		ClientID:    "user:client_" + randomID(),
		CraftsmanID: craftsmanID,
		Schedule:    model.Schedule{Date: "2026-03-05", Time: "10:00"},
		Location:    "Hauptstr. 1",
		Description: "Fixture engagement",
		Status:      model.EngagementStatusPending,
		CanEdit:     true,
		CreatedOn:   f.now,
		UpdatedOn:   f.now,
	}
	for _, fn := range opts {
		fn(e)
	}
	if err := f.store.Create(context.Background(), e); err != nil {
		t.Fatalf("fixtures: failed to create engagement: %v", err)
	}
	return e
}
