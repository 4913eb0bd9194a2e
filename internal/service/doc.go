// Package service implements the engagement lifecycle of the Craftlink API.
//
// The service package owns the state machine, the edit and visibility
// windows, the expiry reconciler, rating aggregation and the notification
// inbox. Handlers and jobs call into it; stores sit behind interfaces.
//
// # Service Pattern
//
// All services follow a consistent pattern:
//
//   - Constructor function (NewXxxService) accepts a config struct with store dependencies
//   - Every write is a conditional update against the state that was read
//   - Errors are returned as sentinel errors or wrapped errors for context
//   - Time comes from an injected clock.Clock
//
// # Store Interfaces
//
// Services define the narrow store interfaces they need. The SurrealDB
// repositories and the SQLite store both satisfy them, and the unit tests
// use hand-written mocks.
//
// # Error Handling
//
// Services return domain-specific errors defined in errors.go:
//
//	var (
//	    ErrEngagementNotFound = errors.New("engagement not found")
//	    ErrEditWindowExpired  = errors.New("edit window has expired")
//	)
//
// A lost race is explained from a fresh read: an engagement that has left
// the edit window reports ErrEditWindowExpired, anything else surfaces as
// ErrConcurrentModification.
//
// # Example Usage
//
//	svc := NewEngagementService(EngagementServiceConfig{
//	    Store:     store,
//	    Craftsmen: store,
//	    Notifier:  notifications,
//	    Ratings:   aggregator,
//	})
//	e, err := svc.Create(ctx, actor, &model.CreateEngagementRequest{
//	    CraftsmanID: "user:hanna",
//	    Description: "Fix the leaking tap",
//	})
package service
