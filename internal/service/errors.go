package service

import "errors"

// Centralized service layer errors.
// All errors returned by service methods are defined here for consistency
// and to make error handling in handlers predictable.

// ===== Engagement Errors =====
var (
	ErrEngagementNotFound     = errors.New("engagement not found")
	ErrNotEngagementParty     = errors.New("not a party to this engagement")
	ErrActionNotPermitted     = errors.New("action not permitted for this role")
	ErrInvalidTransition      = errors.New("transition not allowed from current status")
	ErrEditWindowExpired      = errors.New("edit window has expired")
	ErrConcurrentModification = errors.New("engagement was modified concurrently")
	ErrSelfEngagement         = errors.New("cannot book yourself")
	ErrInvalidListRole        = errors.New("role must be 'client' or 'craftsman'")
)

// ===== Rating Errors =====
var (
	ErrAlreadyRated = errors.New("engagement already rated")
	ErrNotCompleted = errors.New("engagement is not completed")
)

// ===== Craftsman Errors =====
var (
	ErrCraftsmanNotFound    = errors.New("craftsman not found")
	ErrCraftsmanUnavailable = errors.New("craftsman is unavailable")
)

// ===== Notification Errors =====
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrRecipientRequired    = errors.New("notification recipient is required")
)
