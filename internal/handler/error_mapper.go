package handler

import (
	"errors"

	"github.com/forgo/craftlink/internal/model"
	"github.com/forgo/craftlink/internal/service"
)

// MapServiceError converts a service error to a ProblemDetails response.
// Every handler goes through here so a given failure always has the same
// status and problem type.
func MapServiceError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	// Services return validation failures as ready-made problems
	var problem *model.ProblemDetails
	if errors.As(err, &problem) {
		return problem
	}

	switch {
	// ===== Authorization Errors → 403 =====
	case errors.Is(err, service.ErrNotEngagementParty):
		pd := model.NewForbiddenError(err.Error())
		pd.Code = model.ErrCodeNotParty
		return pd
	case errors.Is(err, service.ErrActionNotPermitted):
		return model.NewForbiddenError(err.Error())

	// ===== Not Found Errors → 404 =====
	case errors.Is(err, service.ErrEngagementNotFound):
		return model.NewNotFoundError("engagement")
	case errors.Is(err, service.ErrCraftsmanNotFound):
		return model.NewNotFoundError("craftsman")
	case errors.Is(err, service.ErrNotificationNotFound):
		return model.NewNotFoundError("notification")

	// ===== State Errors → 409 =====
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrNotCompleted):
		return model.NewInvalidTransitionError(err.Error())
	case errors.Is(err, service.ErrEditWindowExpired):
		return model.NewEditWindowExpiredError(err.Error())
	case errors.Is(err, service.ErrAlreadyRated):
		return model.NewConflictError(err.Error())
	case errors.Is(err, service.ErrConcurrentModification):
		return model.NewConcurrentModificationError(err.Error())

	// ===== Validation Errors → 422 =====
	case errors.Is(err, service.ErrCraftsmanUnavailable):
		return model.NewUnavailableError(err.Error())
	case errors.Is(err, service.ErrSelfEngagement):
		return model.NewValidationError([]model.FieldError{{Field: "craftsman_id", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidListRole):
		return model.NewValidationError([]model.FieldError{{Field: "role", Message: err.Error()}})
	case errors.Is(err, service.ErrRecipientRequired):
		return model.NewValidationError([]model.FieldError{{Field: "recipient_id", Message: err.Error()}})

	// ===== Default → 500 =====
	default:
		return model.NewInternalError("")
	}
}

// MapServiceErrorWithContext converts a service error to a ProblemDetails response
// with additional context about the operation that failed.
func MapServiceErrorWithContext(err error, operation string) *model.ProblemDetails {
	pd := MapServiceError(err)
	if pd != nil && pd.Status == 500 {
		pd.Detail = operation + ": an unexpected error occurred"
	}
	return pd
}
