package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/forgo/craftlink/internal/clock"
	"github.com/forgo/craftlink/internal/service"
)

// DefaultReconcileInterval is the expiry reconciler tick period
const DefaultReconcileInterval = time.Minute

// Reconciler performs one expiry pass
type Reconciler interface {
	ReconcileOnce(ctx context.Context) (service.ReconcileResult, error)
}

// ExpiryReconcilerJob reveals engagements whose visibility window has expired.
// Each tick is bounded by Timeout; a failed tick is logged and the next one
// starts from scratch.
type ExpiryReconcilerJob struct {
	*task
	reconciler Reconciler
}

// ExpiryReconcilerJobConfig holds configuration for the reconciler job
type ExpiryReconcilerJobConfig struct {
	Reconciler Reconciler
	Clock      clock.Clock
	Interval   time.Duration
	Timeout    time.Duration
	Logger     *slog.Logger
}

// NewExpiryReconcilerJob creates a new expiry reconciler job
func NewExpiryReconcilerJob(cfg ExpiryReconcilerJobConfig) *ExpiryReconcilerJob {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultReconcileInterval
	}
	j := &ExpiryReconcilerJob{reconciler: cfg.Reconciler}
	j.task = newTask("expiry_reconciler", cfg.Clock, cfg.Interval, cfg.Timeout, cfg.Logger, func(ctx context.Context) error {
		_, err := j.reconcile(ctx)
		return err
	})
	return j
}

// RunOnce runs a single pass (for the CLI or manual trigger).
// Returns ErrBusy if a tick is running.
func (j *ExpiryReconcilerJob) RunOnce(ctx context.Context) (service.ReconcileResult, error) {
	var result service.ReconcileResult
	err := j.guarded(ctx, func(ctx context.Context) error {
		var err error
		result, err = j.reconcile(ctx)
		return err
	})
	return result, err
}

func (j *ExpiryReconcilerJob) reconcile(ctx context.Context) (service.ReconcileResult, error) {
	result, err := j.reconciler.ReconcileOnce(ctx)
	if err == nil && (result.Flipped > 0 || result.Failed > 0) {
		j.logger.Info("reconcile pass",
			slog.Int("scanned", result.Scanned),
			slog.Int("flipped", result.Flipped),
			slog.Int("skipped", result.Skipped),
			slog.Int("failed", result.Failed),
		)
	}
	return result, err
}
