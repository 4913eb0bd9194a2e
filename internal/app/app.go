// Package app assembles the stores, services and jobs from configuration.
// The HTTP server and the operator CLI share it so both run the same wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/forgo/craftlink/internal/clock"
	"github.com/forgo/craftlink/internal/config"
	"github.com/forgo/craftlink/internal/database"
	"github.com/forgo/craftlink/internal/jobs"
	"github.com/forgo/craftlink/internal/metrics"
	"github.com/forgo/craftlink/internal/repository"
	"github.com/forgo/craftlink/internal/repository/sqlite"
	"github.com/forgo/craftlink/internal/service"
)

// Stores is the persistence surface the services run against
type Stores struct {
	Engagements interface {
		service.EngagementStore
		service.ExpiryStore
		service.RatedEngagementStore
	}
	Craftsmen     service.CraftsmanStore
	Notifications service.NotificationStore
	Pinger        interface{ Ping(ctx context.Context) error }

	close func() error
}

// Close releases the underlying connection
func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStores connects to the configured store driver
func OpenStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	switch cfg.Store.Driver {
	case config.StoreSQLite:
		if dir := filepath.Dir(cfg.Store.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		store, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("opened sqlite store", slog.String("path", cfg.Store.SQLitePath))
		return &Stores{
			Engagements:   store,
			Craftsmen:     store,
			Notifications: store,
			Pinger:        store,
			close:         store.Close,
		}, nil

	case config.StoreSurreal:
		db := database.NewSurrealDB(database.Config{
			Host:      cfg.Database.Host,
			Port:      cfg.Database.Port,
			User:      cfg.Database.User,
			Password:  cfg.Database.Password,
			Namespace: cfg.Database.Namespace,
			Database:  cfg.Database.Database,
		})
		if err := db.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect surrealdb: %w", err)
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate surrealdb: %w", err)
		}
		logger.Info("connected to database",
			slog.String("host", cfg.Database.Host),
			slog.String("database", cfg.Database.Database),
		)
		return &Stores{
			Engagements:   repository.NewEngagementRepository(db),
			Craftsmen:     repository.NewCraftsmanRepository(db),
			Notifications: repository.NewNotificationRepository(db),
			Pinger:        db,
			close:         db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// App holds the wired services and background jobs
type App struct {
	Stores        *Stores
	Metrics       *metrics.Collector
	Events        *service.EventHub
	Engagements   *service.EngagementService
	Notifications *service.NotificationService
	Ratings       *service.RatingAggregator
	Craftsmen     *service.CraftsmanService
	Reconciler    *service.ExpiryReconciler

	ReconcileJob *jobs.ExpiryReconcilerJob
	RecomputeJob *jobs.RatingRecomputeJob

	logger *slog.Logger
}

// Options overrides process-level collaborators
type Options struct {
	Clock   clock.Clock
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// New opens the stores and builds every service on top of them
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	stores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	policy := service.WindowPolicy{
		EditWindow:       cfg.Lifecycle.EditWindow,
		VisibilityWindow: cfg.Lifecycle.VisibilityWindow,
	}

	a := &App{
		Stores:  stores,
		Metrics: opts.Metrics,
		Events:  service.NewEventHub(clk, service.DefaultHeartbeatInterval),
		logger:  logger,
	}

	a.Notifications = service.NewNotificationService(service.NotificationServiceConfig{
		Store:         stores.Notifications,
		Events:        a.Events,
		Clock:         clk,
		DefaultLocale: cfg.Notifications.DefaultLocale,
		Metrics:       opts.Metrics,
		Logger:        logger,
	})
	a.Ratings = service.NewRatingAggregator(service.RatingAggregatorConfig{
		Engagements: stores.Engagements,
		Craftsmen:   stores.Craftsmen,
		Clock:       clk,
		Metrics:     opts.Metrics,
		Logger:      logger,
	})
	a.Engagements = service.NewEngagementService(service.EngagementServiceConfig{
		Store:     stores.Engagements,
		Craftsmen: stores.Craftsmen,
		Notifier:  a.Notifications,
		Ratings:   a.Ratings,
		Clock:     clk,
		Policy:    policy,
		Metrics:   opts.Metrics,
		Logger:    logger,
	})
	a.Craftsmen = service.NewCraftsmanService(service.CraftsmanServiceConfig{Store: stores.Craftsmen})
	a.Reconciler = service.NewExpiryReconciler(service.ExpiryReconcilerConfig{
		Store:         stores.Engagements,
		Notifier:      a.Notifications,
		Clock:         clk,
		Policy:        policy,
		BatchSize:     cfg.Lifecycle.ReconcileBatchSize,
		RecordTimeout: cfg.Lifecycle.ReconcileRecordTimeout,
		Metrics:       opts.Metrics,
		Logger:        logger,
	})

	a.ReconcileJob = jobs.NewExpiryReconcilerJob(jobs.ExpiryReconcilerJobConfig{
		Reconciler: a.Reconciler,
		Clock:      clk,
		Interval:   cfg.Lifecycle.ReconcileInterval,
		Logger:     logger,
	})
	a.RecomputeJob = jobs.NewRatingRecomputeJob(jobs.RatingRecomputeJobConfig{
		Recomputer: a.Ratings,
		Clock:      clk,
		Interval:   cfg.Lifecycle.RatingRecomputeInterval,
		Logger:     logger,
	})

	return a, nil
}

// StartJobs starts the background jobs enabled in cfg
func (a *App) StartJobs(cfg *config.Config) {
	if cfg.Lifecycle.ReconcileEnabled {
		a.ReconcileJob.Start()
	}
	if cfg.Lifecycle.RatingRecomputeEnabled {
		a.RecomputeJob.Start()
	}
}

// Close stops the jobs, ends open streams and closes the stores
func (a *App) Close() error {
	a.ReconcileJob.Stop()
	a.RecomputeJob.Stop()
	a.Events.Close()
	if err := a.Stores.Close(); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("closing stores", slog.String("error", err.Error()))
		return err
	}
	return nil
}
