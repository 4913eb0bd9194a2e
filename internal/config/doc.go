// Package config loads application configuration from the environment.
//
// Values come from struct tags parsed by caarlos0/env; a .env file in the
// working directory is loaded first when present. Every setting has a
// development default, and Validate reports all problems at once:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//
// # Groups
//
//   - Server: SERVER_PORT, SERVER_ENV, timeouts, CORS_ALLOWED_ORIGINS
//   - Log: LOG_LEVEL, LOG_FORMAT
//   - Store: STORE_DRIVER (surreal or sqlite), SQLITE_PATH
//   - Database: DB_HOST, DB_PORT, DB_NAMESPACE, DB_DATABASE, DB_USER, DB_PASSWORD
//   - JWT: JWT_PRIVATE_KEY_PATH, JWT_PUBLIC_KEY_PATH, JWT_EXPIRATION_MINS, JWT_ISSUER
//   - Lifecycle: EDIT_WINDOW, VISIBILITY_WINDOW, RECONCILE_*, RATING_RECOMPUTE_*
//   - Idempotency: IDEMPOTENCY_TTL
//   - Telemetry: TRACING_ENABLED, OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_SERVICE_NAME, METRICS_ENABLED
//   - Notifications: NOTIFICATIONS_DEFAULT_LOCALE
package config
