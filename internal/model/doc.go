// Package model defines domain entities and data structures for the Craftlink API.
//
// The model package contains the struct definitions for domain objects, request
// types, and error definitions. Models are used across all layers of the application.
//
// # Domain Entities
//
//   - Engagement: the unified booking/request record between a client and a craftsman
//   - Craftsman: availability and the rolled-up rating of a service provider
//   - Notification: inbox entry emitted by lifecycle transitions
//   - Actor: the authenticated caller and the role it acts in
//
// # Conditional Writes
//
// Every write to an engagement carries an EngagementPrecondition describing the
// state the caller observed, and an EngagementPatch with the fields to set:
//
//	pre := model.EngagementPrecondition{Status: model.EngagementStatusPending}
//	patch := model.EngagementPatch{Status: &accepted, UpdatedOn: now}
//
// # Error Types
//
// RFC 9457 Problem Details errors are defined in errors.go:
//
//	type ProblemDetails struct {
//	    Type    string    `json:"type"`
//	    Title   string    `json:"title"`
//	    Status  int       `json:"status"`
//	    Detail  string    `json:"detail"`
//	}
package model
