// Package middleware provides the HTTP middleware for the engagement API.
//
//   - RequestID, Logger, Recovery, CORS and Compress wrap every request
//   - Auth validates bearer tokens and stores the acting user and role
//   - RequireRole gates admin endpoints
//   - Idempotency replays successful creating POSTs keyed by Idempotency-Key
//
// Handlers read the caller with GetActor(r.Context()).
package middleware
