package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/forgo/craftlink/internal/clock"
	"github.com/forgo/craftlink/internal/database"
	"github.com/forgo/craftlink/internal/metrics"
	"github.com/forgo/craftlink/internal/model"
	"github.com/forgo/craftlink/internal/tracing"
)

// Reconciler defaults
const (
	DefaultReconcileBatchSize     = 200
	DefaultReconcileRecordTimeout = 5 * time.Second
)

// ExpiryStore is the slice of the engagement store the reconciler uses
type ExpiryStore interface {
	GetByID(ctx context.Context, id string) (*model.Engagement, error)
	ListVisibilityExpired(ctx context.Context, cutoff time.Time, limit int) ([]*model.Engagement, error)
	ConditionalUpdate(ctx context.Context, id string, pre model.EngagementPrecondition, patch model.EngagementPatch) (*model.Engagement, error)
}

// ReconcileResult counts what one pass did
type ReconcileResult struct {
	Scanned int `json:"scanned" yaml:"scanned"`
	Flipped int `json:"flipped" yaml:"flipped"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Failed  int `json:"failed" yaml:"failed"`
}

// ExpiryReconciler reveals pending engagements whose visibility window has
// run out without a client confirmation. It never changes status.
type ExpiryReconciler struct {
	store         ExpiryStore
	notifier      Notifier
	clock         clock.Clock
	policy        WindowPolicy
	batchSize     int
	recordTimeout time.Duration
	metrics       *metrics.Collector
	logger        *slog.Logger
}

// ExpiryReconcilerConfig holds configuration for the reconciler
type ExpiryReconcilerConfig struct {
	Store         ExpiryStore
	Notifier      Notifier
	Clock         clock.Clock
	Policy        WindowPolicy
	BatchSize     int
	RecordTimeout time.Duration
	Metrics       *metrics.Collector
	Logger        *slog.Logger
}

// NewExpiryReconciler creates a new expiry reconciler
func NewExpiryReconciler(cfg ExpiryReconcilerConfig) *ExpiryReconciler {
	r := &ExpiryReconciler{
		store:         cfg.Store,
		notifier:      cfg.Notifier,
		clock:         cfg.Clock,
		policy:        cfg.Policy.withDefaults(),
		batchSize:     cfg.BatchSize,
		recordTimeout: cfg.RecordTimeout,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
	if r.clock == nil {
		r.clock = clock.Real()
	}
	if r.batchSize <= 0 {
		r.batchSize = DefaultReconcileBatchSize
	}
	if r.recordTimeout <= 0 {
		r.recordTimeout = DefaultReconcileRecordTimeout
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// ReconcileOnce runs one pass. Per-record failures are logged and counted;
// an error is returned only when the pass itself could not run or was cut short.
func (r *ExpiryReconciler) ReconcileOnce(ctx context.Context) (result ReconcileResult, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "ExpiryReconciler.ReconcileOnce")
	started := time.Now()
	defer func() {
		span.SetAttributes(
			attribute.Int("reconcile.scanned", result.Scanned),
			attribute.Int("reconcile.flipped", result.Flipped),
			attribute.Int("reconcile.failed", result.Failed),
		)
		r.metrics.RecordReconcileTick(time.Since(started), result.Flipped, result.Skipped, result.Failed, err)
		tracing.End(span, err)
	}()

	now := r.clock.Now()
	candidates, err := r.store.ListVisibilityExpired(ctx, r.policy.VisibilityCutoff(now), r.batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list expired engagements: %w", err)
	}

	for _, e := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Scanned++

		flipped, ferr := r.reconcileRecord(ctx, e, now)
		switch {
		case ferr != nil:
			result.Failed++
			r.logger.Warn("reconcile record failed",
				slog.String("engagement_id", e.ID),
				slog.String("error", ferr.Error()),
			)
		case flipped == nil:
			result.Skipped++
		default:
			result.Flipped++
			r.announce(ctx, flipped)
		}
	}
	return result, nil
}

// reconcileRecord flips one engagement. A nil engagement with a nil error
// means the record no longer needed flipping.
func (r *ExpiryReconciler) reconcileRecord(ctx context.Context, e *model.Engagement, now time.Time) (*model.Engagement, error) {
	ctx, cancel := context.WithTimeout(ctx, r.recordTimeout)
	defer cancel()

	yes, no := true, false
	pre := model.EngagementPrecondition{
		Status:             model.EngagementStatusPending,
		CanEdit:            &yes,
		VisibleToCraftsman: &no,
	}
	patch := model.EngagementPatch{CanEdit: &no, VisibleToCraftsman: &yes, UpdatedOn: now}

	for attempt := 0; attempt < 2; attempt++ {
		updated, err := r.store.ConditionalUpdate(ctx, e.ID, pre, patch)
		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, database.ErrNotFound):
			return nil, nil
		case !errors.Is(err, database.ErrPreconditionFailed):
			return nil, err
		}

		fresh, gerr := r.store.GetByID(ctx, e.ID)
		if gerr != nil {
			return nil, gerr
		}
		if !r.policy.VisibilityExpired(fresh, now) {
			return nil, nil
		}
	}
	return nil, ErrConcurrentModification
}

func (r *ExpiryReconciler) announce(ctx context.Context, e *model.Engagement) {
	if r.notifier == nil {
		return
	}
	err := r.notifier.Notify(ctx, e.CraftsmanID, model.NotificationEngagementRequested, engagementPayload(e, nil))
	if err != nil {
		r.logger.Warn("visibility notification failed",
			slog.String("engagement_id", e.ID),
			slog.String("craftsman_id", e.CraftsmanID),
			slog.String("error", err.Error()),
		)
	}
}
