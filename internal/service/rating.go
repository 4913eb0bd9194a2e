package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/forgo/craftlink/internal/clock"
	"github.com/forgo/craftlink/internal/database"
	"github.com/forgo/craftlink/internal/metrics"
	"github.com/forgo/craftlink/internal/model"
)

// RatedEngagementStore reads the rated engagements a roll-up is computed from
type RatedEngagementStore interface {
	ListRatedByCraftsman(ctx context.Context, craftsmanID string) ([]*model.Engagement, error)
	ListCraftsmanIDsWithRatings(ctx context.Context) ([]string, error)
}

// CraftsmanStore persists craftsman availability and rating roll-ups
type CraftsmanStore interface {
	SaveCraftsman(ctx context.Context, c *model.Craftsman) error
	GetCraftsman(ctx context.Context, id string) (*model.Craftsman, error)
	UpdateCraftsmanRating(ctx context.Context, id string, rating float64, reviewCount int, at time.Time) error
}

// RatingSummary is the result of one recompute
type RatingSummary struct {
	CraftsmanID string  `json:"craftsman_id" yaml:"craftsman_id"`
	Rating      float64 `json:"rating" yaml:"rating"`
	ReviewCount int     `json:"review_count" yaml:"review_count"`
}

// RecomputeAllResult summarises a recovery pass
type RecomputeAllResult struct {
	Recomputed int `json:"recomputed" yaml:"recomputed"`
	Failed     int `json:"failed" yaml:"failed"`
}

// RatingAggregator rebuilds craftsman ratings from the rated engagements.
// Recomputes for the same craftsman are serialised in-process so the last
// write always reflects a read that saw every earlier attach.
type RatingAggregator struct {
	engagements RatedEngagementStore
	craftsmen   CraftsmanStore
	clock       clock.Clock
	metrics     *metrics.Collector
	logger      *slog.Logger
	locks       keyedMutex
}

// RatingAggregatorConfig holds configuration for the rating aggregator
type RatingAggregatorConfig struct {
	Engagements RatedEngagementStore
	Craftsmen   CraftsmanStore
	Clock       clock.Clock
	Metrics     *metrics.Collector
	Logger      *slog.Logger
}

// NewRatingAggregator creates a new rating aggregator
func NewRatingAggregator(cfg RatingAggregatorConfig) *RatingAggregator {
	a := &RatingAggregator{
		engagements: cfg.Engagements,
		craftsmen:   cfg.Craftsmen,
		clock:       cfg.Clock,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
	if a.clock == nil {
		a.clock = clock.Real()
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// OnEngagementRated is called after a rating is attached to one of the craftsman's engagements
func (a *RatingAggregator) OnEngagementRated(ctx context.Context, craftsmanID string) error {
	_, err := a.Recompute(ctx, craftsmanID)
	return err
}

// Recompute sets the craftsman's rating to the mean overall rating of all
// rated engagements and the review count to their number.
func (a *RatingAggregator) Recompute(ctx context.Context, craftsmanID string) (*RatingSummary, error) {
	unlock := a.locks.Lock(craftsmanID)
	defer unlock()

	rated, err := a.engagements.ListRatedByCraftsman(ctx, craftsmanID)
	if err != nil {
		a.metrics.RecordRatingRecompute("failed")
		return nil, fmt.Errorf("failed to read rated engagements: %w", err)
	}

	summary := &RatingSummary{CraftsmanID: craftsmanID}
	total := 0
	for _, e := range rated {
		if e.Rating == nil {
			continue
		}
		total += e.Rating.Overall
		summary.ReviewCount++
	}
	if summary.ReviewCount > 0 {
		summary.Rating = float64(total) / float64(summary.ReviewCount)
	}

	err = a.craftsmen.UpdateCraftsmanRating(ctx, craftsmanID, summary.Rating, summary.ReviewCount, a.clock.Now())
	if errors.Is(err, database.ErrNotFound) {
		a.metrics.RecordRatingRecompute("failed")
		return nil, ErrCraftsmanNotFound
	}
	if err != nil {
		a.metrics.RecordRatingRecompute("failed")
		return nil, fmt.Errorf("failed to update craftsman rating: %w", err)
	}

	a.metrics.RecordRatingRecompute("ok")
	return summary, nil
}

// RecomputeAll recomputes every craftsman with at least one rating.
// Individual failures are logged and counted; the pass continues.
func (a *RatingAggregator) RecomputeAll(ctx context.Context) (RecomputeAllResult, error) {
	var result RecomputeAllResult

	ids, err := a.engagements.ListCraftsmanIDsWithRatings(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list rated craftsmen: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, err := a.Recompute(ctx, id); err != nil {
			result.Failed++
			a.logger.Warn("rating recompute failed",
				slog.String("craftsman_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.Recomputed++
	}
	return result, nil
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the matching unlock
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
