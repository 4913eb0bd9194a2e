package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/forgo/craftlink/internal/database"
	"github.com/forgo/craftlink/internal/model"
)

// SaveCraftsman creates or updates a craftsman's display name and availability.
func (s *Store) SaveCraftsman(ctx context.Context, c *model.Craftsman) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO craftsmen (id, display_name, available) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name, available = excluded.available`,
		c.ID, c.DisplayName, boolToInt(c.Available),
	)
	if err != nil {
		return queryErr("save craftsman", err)
	}
	return nil
}

// GetCraftsman returns nil, nil when the craftsman does not exist.
func (s *Store) GetCraftsman(ctx context.Context, id string) (*model.Craftsman, error) {
	var (
		c         model.Craftsman
		available int
		updatedAt sql.NullInt64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, display_name, available, rating, review_count, rating_updated_at FROM craftsmen WHERE id = ?`, id,
	).Scan(&c.ID, &c.DisplayName, &available, &c.Rating, &c.ReviewCount, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, queryErr("get craftsman", err)
	}
	c.Available = available != 0
	if updatedAt.Valid {
		t := fromMillis(updatedAt.Int64)
		c.RatingUpdatedOn = &t
	}
	return &c, nil
}

// UpdateCraftsmanRating overwrites the roll-up with a freshly computed value.
func (s *Store) UpdateCraftsmanRating(ctx context.Context, id string, rating float64, reviewCount int, at time.Time) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE craftsmen SET rating = ?, review_count = ?, rating_updated_at = ? WHERE id = ?`,
		rating, reviewCount, toMillis(at), id,
	)
	if err != nil {
		return queryErr("update craftsman rating", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return queryErr("update craftsman rating", err)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}
