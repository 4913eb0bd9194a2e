package repository

import (
	"context"
	"errors"
	"time"

	"github.com/forgo/craftlink/internal/database"
	"github.com/forgo/craftlink/internal/model"
)

// CraftsmanRepository handles craftsman availability and rating roll-ups.
// Craftsmen are keyed by the user id of the provider.
type CraftsmanRepository struct {
	db database.Database
}

// NewCraftsmanRepository creates a new craftsman repository
func NewCraftsmanRepository(db database.Database) *CraftsmanRepository {
	return &CraftsmanRepository{db: db}
}

// SaveCraftsman creates or updates a craftsman's display name and availability.
// The rating roll-up is left untouched.
func (r *CraftsmanRepository) SaveCraftsman(ctx context.Context, c *model.Craftsman) error {
	query := `
		UPSERT craftsman SET
			user_id = $user_id,
			display_name = $display_name,
			available = $available
		WHERE user_id = $user_id
	`
	vars := map[string]interface{}{
		"user_id":      c.ID,
		"display_name": c.DisplayName,
		"available":    c.Available,
	}
	return r.db.Execute(ctx, query, vars)
}

// GetCraftsman retrieves a craftsman by user id
func (r *CraftsmanRepository) GetCraftsman(ctx context.Context, id string) (*model.Craftsman, error) {
	query := `SELECT * FROM craftsman WHERE user_id = $user_id LIMIT 1`
	vars := map[string]interface{}{"user_id": id}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseCraftsman(result)
}

// UpdateCraftsmanRating overwrites the roll-up with a freshly computed value
func (r *CraftsmanRepository) UpdateCraftsmanRating(ctx context.Context, id string, rating float64, reviewCount int, at time.Time) error {
	query := `
		UPDATE craftsman SET
			rating = $rating,
			review_count = $review_count,
			rating_updated_on = <datetime>$at
		WHERE user_id = $user_id
		RETURN AFTER
	`
	vars := map[string]interface{}{
		"user_id":      id,
		"rating":       rating,
		"review_count": reviewCount,
		"at":           at.UTC().Format(time.RFC3339Nano),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}
	if len(extractQueryResults(result)) == 0 {
		return database.ErrNotFound
	}
	return nil
}

func parseCraftsman(result interface{}) (*model.Craftsman, error) {
	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}

	return &model.Craftsman{
		ID:              getString(data, "user_id"),
		DisplayName:     getString(data, "display_name"),
		Available:       getBool(data, "available"),
		Rating:          getFloat(data, "rating"),
		ReviewCount:     getInt(data, "review_count"),
		RatingUpdatedOn: getTime(data, "rating_updated_on"),
	}, nil
}
