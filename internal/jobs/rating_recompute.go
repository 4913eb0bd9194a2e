package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/forgo/craftlink/internal/clock"
	"github.com/forgo/craftlink/internal/service"
)

// DefaultRatingRecomputeInterval is how often every roll-up is rebuilt
const DefaultRatingRecomputeInterval = 6 * time.Hour

// RatingRecomputer rebuilds every craftsman roll-up
type RatingRecomputer interface {
	RecomputeAll(ctx context.Context) (service.RecomputeAllResult, error)
}

// RatingRecomputeJob periodically rebuilds craftsman ratings so a roll-up
// left stale by a failed attach is repaired without manual action.
type RatingRecomputeJob struct {
	*task
	recomputer RatingRecomputer
}

// RatingRecomputeJobConfig holds configuration for the recompute job
type RatingRecomputeJobConfig struct {
	Recomputer RatingRecomputer
	Clock      clock.Clock
	Interval   time.Duration
	Timeout    time.Duration
	Logger     *slog.Logger
}

// NewRatingRecomputeJob creates a new rating recompute job
func NewRatingRecomputeJob(cfg RatingRecomputeJobConfig) *RatingRecomputeJob {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRatingRecomputeInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	j := &RatingRecomputeJob{recomputer: cfg.Recomputer}
	j.task = newTask("rating_recompute", cfg.Clock, cfg.Interval, cfg.Timeout, cfg.Logger, func(ctx context.Context) error {
		_, err := j.recompute(ctx)
		return err
	})
	return j
}

// RunOnce runs a single recompute pass. Returns ErrBusy if a tick is running.
func (j *RatingRecomputeJob) RunOnce(ctx context.Context) (service.RecomputeAllResult, error) {
	var result service.RecomputeAllResult
	err := j.guarded(ctx, func(ctx context.Context) error {
		var err error
		result, err = j.recompute(ctx)
		return err
	})
	return result, err
}

func (j *RatingRecomputeJob) recompute(ctx context.Context) (service.RecomputeAllResult, error) {
	result, err := j.recomputer.RecomputeAll(ctx)
	if err == nil {
		j.logger.Info("rating recompute pass",
			slog.Int("recomputed", result.Recomputed),
			slog.Int("failed", result.Failed),
		)
	}
	return result, err
}
