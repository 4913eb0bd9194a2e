package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/forgo/craftlink/internal/database"
	"github.com/forgo/craftlink/internal/model"
)

const engagementColumns = `id, kind, client_id, craftsman_id, schedule_json, location, description,
	images_json, status, can_edit, visible_to_craftsman, price, notes, rating_json, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts an engagement and assigns its id.
func (s *Store) Create(ctx context.Context, e *model.Engagement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	schedule, err := json.Marshal(e.Schedule)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	images := e.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}

	id := newID("engagement")
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO engagements (`+engagementColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, NULL, ?, ?)`,
		id,
		string(e.Kind),
		e.ClientID,
		e.CraftsmanID,
		string(schedule),
		e.Location,
		e.Description,
		string(imagesJSON),
		string(e.Status),
		boolToInt(e.CanEdit),
		boolToInt(e.VisibleToCraftsman),
		toMillis(e.CreatedOn),
		toMillis(e.UpdatedOn),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return database.ErrDuplicate
		}
		return queryErr("create engagement", err)
	}
	e.ID = id
	return nil
}

// GetByID returns nil, nil when the engagement does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (*model.Engagement, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+engagementColumns+` FROM engagements WHERE id = ?`, id)
	e, err := scanEngagement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, queryErr("get engagement", err)
	}
	return e, nil
}

// List returns engagements matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter model.EngagementFilter) ([]*model.Engagement, error) {
	conditions := []string{}
	args := []any{}

	if filter.ClientID != "" {
		conditions = append(conditions, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.CraftsmanID != "" {
		conditions = append(conditions, "craftsman_id = ?")
		args = append(args, filter.CraftsmanID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.VisibleOnly {
		conditions = append(conditions, "(visible_to_craftsman = 1 OR status != 'pending')")
	}

	query := `SELECT ` + engagementColumns + ` FROM engagements`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	return s.queryEngagements(ctx, "list engagements", query, args...)
}

// ConditionalUpdate applies patch in one statement guarded by pre.
func (s *Store) ConditionalUpdate(ctx context.Context, id string, pre model.EngagementPrecondition, patch model.EngagementPatch) (*model.Engagement, error) {
	sets, args, err := patchClauses(patch)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: empty patch", database.ErrQuery)
	}
	where, whereArgs := preconditionClauses(id, pre)
	args = append(args, whereArgs...)

	row := s.sqlDB.QueryRowContext(ctx,
		`UPDATE engagements SET `+strings.Join(sets, ", ")+` WHERE `+strings.Join(where, " AND ")+` RETURNING `+engagementColumns,
		args...,
	)
	e, err := scanEngagement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.missOrConflict(ctx, id)
	}
	if err != nil {
		return nil, queryErr("update engagement", err)
	}
	return e, nil
}

// ConditionalDelete removes the engagement only if it still matches pre.
func (s *Store) ConditionalDelete(ctx context.Context, id string, pre model.EngagementPrecondition) error {
	where, args := preconditionClauses(id, pre)
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM engagements WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return queryErr("delete engagement", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return queryErr("delete engagement", err)
	}
	if n == 0 {
		return s.missOrConflict(ctx, id)
	}
	return nil
}

// ListVisibilityExpired returns pending, editable, hidden engagements created before cutoff, oldest first.
func (s *Store) ListVisibilityExpired(ctx context.Context, cutoff time.Time, limit int) ([]*model.Engagement, error) {
	return s.queryEngagements(ctx, "list visibility expired",
		`SELECT `+engagementColumns+` FROM engagements
		 WHERE status = ? AND can_edit = 1 AND visible_to_craftsman = 0 AND created_at < ?
		 ORDER BY created_at ASC, id
		 LIMIT ?`,
		string(model.EngagementStatusPending), toMillis(cutoff), limit,
	)
}

// ListRatedByCraftsman returns every rated engagement of a craftsman.
func (s *Store) ListRatedByCraftsman(ctx context.Context, craftsmanID string) ([]*model.Engagement, error) {
	return s.queryEngagements(ctx, "list rated",
		`SELECT `+engagementColumns+` FROM engagements WHERE craftsman_id = ? AND rating_json IS NOT NULL`,
		craftsmanID,
	)
}

// ListCraftsmanIDsWithRatings returns craftsmen with at least one rated engagement.
func (s *Store) ListCraftsmanIDsWithRatings(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT DISTINCT craftsman_id FROM engagements WHERE rating_json IS NOT NULL ORDER BY craftsman_id`)
	if err != nil {
		return nil, queryErr("list rated craftsmen", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, queryErr("scan craftsman id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("list rated craftsmen", err)
	}
	return ids, nil
}

func (s *Store) missOrConflict(ctx context.Context, id string) error {
	var found int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM engagements WHERE id = ?`, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return database.ErrNotFound
	}
	if err != nil {
		return queryErr("check engagement", err)
	}
	return database.ErrPreconditionFailed
}

func (s *Store) queryEngagements(ctx context.Context, op, query string, args ...any) ([]*model.Engagement, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryErr(op, err)
	}
	defer rows.Close()

	engagements := make([]*model.Engagement, 0)
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, queryErr(op, err)
		}
		engagements = append(engagements, e)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr(op, err)
	}
	return engagements, nil
}

func preconditionClauses(id string, pre model.EngagementPrecondition) ([]string, []any) {
	where := []string{"id = ?"}
	args := []any{id}
	if pre.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(pre.Status))
	}
	if pre.CanEdit != nil {
		where = append(where, "can_edit = ?")
		args = append(args, boolToInt(*pre.CanEdit))
	}
	if pre.VisibleToCraftsman != nil {
		where = append(where, "visible_to_craftsman = ?")
		args = append(args, boolToInt(*pre.VisibleToCraftsman))
	}
	if pre.Unrated {
		where = append(where, "rating_json IS NULL")
	}
	return where, args
}

func patchClauses(p model.EngagementPatch) ([]string, []any, error) {
	sets := []string{}
	args := []any{}

	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*p.Status))
	}
	if p.CanEdit != nil {
		sets = append(sets, "can_edit = ?")
		args = append(args, boolToInt(*p.CanEdit))
	}
	if p.VisibleToCraftsman != nil {
		sets = append(sets, "visible_to_craftsman = ?")
		args = append(args, boolToInt(*p.VisibleToCraftsman))
	}
	if p.Schedule != nil {
		data, err := json.Marshal(p.Schedule)
		if err != nil {
			return nil, nil, fmt.Errorf("encode schedule: %w", err)
		}
		sets = append(sets, "schedule_json = ?")
		args = append(args, string(data))
	}
	if p.Location != nil {
		sets = append(sets, "location = ?")
		args = append(args, *p.Location)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.Images != nil {
		data, err := json.Marshal(*p.Images)
		if err != nil {
			return nil, nil, fmt.Errorf("encode images: %w", err)
		}
		sets = append(sets, "images_json = ?")
		args = append(args, string(data))
	}
	if p.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *p.Price)
	}
	if p.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *p.Notes)
	}
	if p.Rating != nil {
		data, err := json.Marshal(p.Rating)
		if err != nil {
			return nil, nil, fmt.Errorf("encode rating: %w", err)
		}
		sets = append(sets, "rating_json = ?")
		args = append(args, string(data))
	}
	if !p.UpdatedOn.IsZero() {
		sets = append(sets, "updated_at = ?")
		args = append(args, toMillis(p.UpdatedOn))
	}
	return sets, args, nil
}

func scanEngagement(row rowScanner) (*model.Engagement, error) {
	var (
		e            model.Engagement
		kind, status string
		scheduleJSON string
		imagesJSON   string
		canEdit      int
		visible      int
		price        sql.NullFloat64
		notes        sql.NullString
		ratingJSON   sql.NullString
		createdAt    int64
		updatedAt    int64
	)
	if err := row.Scan(
		&e.ID, &kind, &e.ClientID, &e.CraftsmanID, &scheduleJSON, &e.Location, &e.Description,
		&imagesJSON, &status, &canEdit, &visible, &price, &notes, &ratingJSON, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	e.Kind = model.EngagementKind(kind)
	e.Status = model.EngagementStatus(status)
	e.CanEdit = canEdit != 0
	e.VisibleToCraftsman = visible != 0
	e.CreatedOn = fromMillis(createdAt)
	e.UpdatedOn = fromMillis(updatedAt)

	if err := json.Unmarshal([]byte(scheduleJSON), &e.Schedule); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	if err := json.Unmarshal([]byte(imagesJSON), &e.Images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	if len(e.Images) == 0 {
		e.Images = nil
	}
	if price.Valid {
		v := price.Float64
		e.Price = &v
	}
	if notes.Valid {
		v := notes.String
		e.Notes = &v
	}
	if ratingJSON.Valid {
		var rating model.EngagementRating
		if err := json.Unmarshal([]byte(ratingJSON.String), &rating); err != nil {
			return nil, fmt.Errorf("decode rating: %w", err)
		}
		e.Rating = &rating
	}
	return &e, nil
}
