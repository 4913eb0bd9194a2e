package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgo/craftlink/internal/model"
)

// CraftsmanService exposes craftsman availability and rating roll-ups
type CraftsmanService struct {
	store CraftsmanStore
}

// CraftsmanServiceConfig holds configuration for the craftsman service
type CraftsmanServiceConfig struct {
	Store CraftsmanStore
}

// NewCraftsmanService creates a new craftsman service
func NewCraftsmanService(cfg CraftsmanServiceConfig) *CraftsmanService {
	return &CraftsmanService{store: cfg.Store}
}

// SaveCraftsmanRequest registers a craftsman or changes availability
type SaveCraftsmanRequest struct {
	DisplayName string `json:"display_name,omitempty"`
	Available   *bool  `json:"available"`
}

// Validate checks if the save request is valid
func (r *SaveCraftsmanRequest) Validate() []model.FieldError {
	var errs []model.FieldError
	if r.Available == nil {
		errs = append(errs, model.FieldError{Field: "available", Message: "available is required"})
	}
	if len(r.DisplayName) > 100 {
		errs = append(errs, model.FieldError{Field: "display_name", Message: "display_name must be 100 characters or less"})
	}
	return errs
}

// Save creates or updates a craftsman. The rating roll-up is left untouched.
func (s *CraftsmanService) Save(ctx context.Context, id string, req *SaveCraftsmanRequest) (*model.Craftsman, error) {
	if strings.TrimSpace(id) == "" {
		return nil, model.NewValidationError([]model.FieldError{{Field: "id", Message: "id is required"}})
	}
	if errs := req.Validate(); len(errs) > 0 {
		return nil, model.NewValidationError(errs)
	}

	c := &model.Craftsman{ID: id, DisplayName: req.DisplayName, Available: *req.Available}
	if err := s.store.SaveCraftsman(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save craftsman: %w", err)
	}

	saved, err := s.store.GetCraftsman(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get craftsman: %w", err)
	}
	if saved == nil {
		return nil, ErrCraftsmanNotFound
	}
	return saved, nil
}

// GetRating returns the current roll-up for a craftsman
func (s *CraftsmanService) GetRating(ctx context.Context, id string) (*model.CraftsmanRatingResponse, error) {
	c, err := s.store.GetCraftsman(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get craftsman: %w", err)
	}
	if c == nil {
		return nil, ErrCraftsmanNotFound
	}
	resp := c.RatingResponse()
	return &resp, nil
}
