package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forgo/craftlink/internal/app"
	"github.com/forgo/craftlink/internal/config"
	"github.com/forgo/craftlink/internal/handler"
	"github.com/forgo/craftlink/internal/metrics"
	"github.com/forgo/craftlink/internal/middleware"
	"github.com/forgo/craftlink/internal/tracing"
	"github.com/forgo/craftlink/pkg/jwt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := app.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:     cfg.Telemetry.TracingEnabled,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		slog.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var collector *metrics.Collector
	if cfg.Telemetry.MetricsEnabled {
		collector = metrics.NewCollector()
	}

	application, err := app.New(ctx, cfg, app.Options{Metrics: collector, Logger: logger})
	if err != nil {
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Tokens are minted by the identity provider; the API only validates them
	jwtService, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: optionalFile(cfg.JWT.PrivateKeyPath),
		PublicKeyPath:  cfg.JWT.PublicKeyPath,
		Issuer:         cfg.JWT.Issuer,
		ExpirationMins: cfg.JWT.ExpirationMins,
	})
	if err != nil {
		slog.Error("failed to initialize JWT service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	idempotencyStore := middleware.NewIdempotencyStore(middleware.IdempotencyConfig{TTL: cfg.Idempotency.TTL})
	defer idempotencyStore.Stop()

	routes := handler.Routes{
		Engagements:   handler.NewEngagementHandler(application.Engagements),
		Craftsmen:     handler.NewCraftsmanHandler(application.Craftsmen),
		Notifications: handler.NewNotificationHandler(application.Notifications, application.Events),
		Admin:         handler.NewAdminHandler(application.Ratings, application.Reconciler),
		Health:        handler.NewHealthHandler(application.Stores.Pinger),
		Auth:          middleware.Auth(jwtService),
		Idempotency:   middleware.Idempotency(idempotencyStore),
	}
	if collector != nil {
		routes.Metrics = collector.Handler()
	}

	mux := http.NewServeMux()
	handler.Register(mux, routes)

	// Apply global middleware
	wrapped := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recovery,
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.Compress,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Open event streams never end on their own; close them when shutdown starts
	server.RegisterOnShutdown(application.Events.Close)

	application.StartJobs(cfg)

	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
			slog.String("store", cfg.Store.Driver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}
	if err := application.Close(); err != nil {
		slog.Error("failed to close application", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("failed to flush traces", slog.String("error", err.Error()))
	}

	slog.Info("server exited")
}

// optionalFile returns path when it exists so a validation-only deployment
// can run with just the public key
func optionalFile(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
