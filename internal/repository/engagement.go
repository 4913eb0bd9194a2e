package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/forgo/craftlink/internal/database"
	"github.com/forgo/craftlink/internal/model"
)

// EngagementRepository handles engagement data access
type EngagementRepository struct {
	db database.Database
}

// NewEngagementRepository creates a new engagement repository
func NewEngagementRepository(db database.Database) *EngagementRepository {
	return &EngagementRepository{db: db}
}

// Create creates a new engagement. CreatedOn and UpdatedOn must already be set.
func (r *EngagementRepository) Create(ctx context.Context, e *model.Engagement) error {
	query := `
		CREATE engagement CONTENT {
			kind: $kind,
			client_id: $client_id,
			craftsman_id: $craftsman_id,
			schedule: $schedule,
			location: $location,
			description: $description,
			images: $images,
			status: $status,
			can_edit: $can_edit,
			visible_to_craftsman: $visible_to_craftsman,
			created_on: <datetime>$created_on,
			updated_on: <datetime>$updated_on
		}
	`
	images := e.Images
	if images == nil {
		images = []string{}
	}

	vars := map[string]interface{}{
		"kind":                 string(e.Kind),
		"client_id":            e.ClientID,
		"craftsman_id":         e.CraftsmanID,
		"schedule":             scheduleToMap(e.Schedule),
		"location":             e.Location,
		"description":          e.Description,
		"images":               images,
		"status":               string(e.Status),
		"can_edit":             e.CanEdit,
		"visible_to_craftsman": e.VisibleToCraftsman,
		"created_on":           e.CreatedOn.UTC().Format(time.RFC3339Nano),
		"updated_on":           e.UpdatedOn.UTC().Format(time.RFC3339Nano),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	e.ID = created.ID
	return nil
}

// GetByID retrieves an engagement by ID
func (r *EngagementRepository) GetByID(ctx context.Context, id string) (*model.Engagement, error) {
	query := `SELECT * FROM type::record($id)`
	vars := map[string]interface{}{"id": id}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseEngagement(result)
}

// List retrieves engagements matching the filter, newest first
func (r *EngagementRepository) List(ctx context.Context, filter model.EngagementFilter) ([]*model.Engagement, error) {
	conditions := []string{}
	vars := map[string]interface{}{}

	if filter.ClientID != "" {
		conditions = append(conditions, "client_id = $client_id")
		vars["client_id"] = filter.ClientID
	}
	if filter.CraftsmanID != "" {
		conditions = append(conditions, "craftsman_id = $craftsman_id")
		vars["craftsman_id"] = filter.CraftsmanID
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, "status IN $statuses")
		vars["statuses"] = statuses
	}
	if filter.VisibleOnly {
		conditions = append(conditions, "(visible_to_craftsman = true OR status != 'pending')")
	}

	query := "SELECT * FROM engagement"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_on DESC"
	if filter.Limit > 0 {
		query += " LIMIT $limit START $offset"
		vars["limit"] = filter.Limit
		vars["offset"] = filter.Offset
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseEngagements(result), nil
}

// ConditionalUpdate applies the patch only if the record still matches pre.
// Returns database.ErrNotFound when the record is absent and
// database.ErrPreconditionFailed when it exists but has moved on.
func (r *EngagementRepository) ConditionalUpdate(ctx context.Context, id string, pre model.EngagementPrecondition, patch model.EngagementPatch) (*model.Engagement, error) {
	sets, vars := patchClauses(patch)
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: empty patch", database.ErrQuery)
	}
	where := preconditionClauses(pre, vars)
	vars["id"] = id

	query := "UPDATE type::record($id) SET " + strings.Join(sets, ", ") +
		" WHERE " + strings.Join(where, " AND ") + " RETURN AFTER"

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	records := extractQueryResults(result)
	if len(records) == 0 {
		return nil, r.missOrConflict(ctx, id)
	}
	return parseEngagement(records[0])
}

// ConditionalDelete removes the record only if it still matches pre
func (r *EngagementRepository) ConditionalDelete(ctx context.Context, id string, pre model.EngagementPrecondition) error {
	vars := map[string]interface{}{"id": id}
	where := preconditionClauses(pre, vars)

	query := "DELETE type::record($id) WHERE " + strings.Join(where, " AND ") + " RETURN BEFORE"

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}
	if len(extractQueryResults(result)) == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// ListVisibilityExpired returns pending, editable, hidden engagements created before cutoff, oldest first
func (r *EngagementRepository) ListVisibilityExpired(ctx context.Context, cutoff time.Time, limit int) ([]*model.Engagement, error) {
	query := `
		SELECT * FROM engagement
		WHERE status = 'pending'
		AND can_edit = true
		AND visible_to_craftsman = false
		AND created_on < <datetime>$cutoff
		ORDER BY created_on ASC
		LIMIT $limit
	`
	vars := map[string]interface{}{
		"cutoff": cutoff.UTC().Format(time.RFC3339Nano),
		"limit":  limit,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseEngagements(result), nil
}

// ListRatedByCraftsman returns every rated engagement of a craftsman
func (r *EngagementRepository) ListRatedByCraftsman(ctx context.Context, craftsmanID string) ([]*model.Engagement, error) {
	query := `
		SELECT * FROM engagement
		WHERE craftsman_id = $craftsman_id
		AND rating != NONE
	`
	vars := map[string]interface{}{"craftsman_id": craftsmanID}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseEngagements(result), nil
}

// ListCraftsmanIDsWithRatings returns the craftsmen that have at least one rated engagement
func (r *EngagementRepository) ListCraftsmanIDsWithRatings(ctx context.Context) ([]string, error) {
	query := `SELECT craftsman_id FROM engagement WHERE rating != NONE GROUP BY craftsman_id`

	result, err := r.db.Query(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0)
	for _, rec := range extractQueryResults(result) {
		if data, ok := rec.(map[string]interface{}); ok {
			if id := getString(data, "craftsman_id"); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func (r *EngagementRepository) missOrConflict(ctx context.Context, id string) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return database.ErrNotFound
	}
	return database.ErrPreconditionFailed
}

// Helper functions

func preconditionClauses(pre model.EngagementPrecondition, vars map[string]interface{}) []string {
	// The id clause keeps the statement from ever matching a record that does not exist
	where := []string{"id != NONE"}
	if pre.Status != "" {
		where = append(where, "status = $pre_status")
		vars["pre_status"] = string(pre.Status)
	}
	if pre.CanEdit != nil {
		where = append(where, "can_edit = $pre_can_edit")
		vars["pre_can_edit"] = *pre.CanEdit
	}
	if pre.VisibleToCraftsman != nil {
		where = append(where, "visible_to_craftsman = $pre_visible")
		vars["pre_visible"] = *pre.VisibleToCraftsman
	}
	if pre.Unrated {
		where = append(where, "rating = NONE")
	}
	return where
}

func patchClauses(p model.EngagementPatch) ([]string, map[string]interface{}) {
	sets := []string{}
	vars := map[string]interface{}{}

	if p.Status != nil {
		sets = append(sets, "status = $status")
		vars["status"] = string(*p.Status)
	}
	if p.CanEdit != nil {
		sets = append(sets, "can_edit = $can_edit")
		vars["can_edit"] = *p.CanEdit
	}
	if p.VisibleToCraftsman != nil {
		sets = append(sets, "visible_to_craftsman = $visible_to_craftsman")
		vars["visible_to_craftsman"] = *p.VisibleToCraftsman
	}
	if p.Schedule != nil {
		sets = append(sets, "schedule = $schedule")
		vars["schedule"] = scheduleToMap(*p.Schedule)
	}
	if p.Location != nil {
		sets = append(sets, "location = $location")
		vars["location"] = *p.Location
	}
	if p.Description != nil {
		sets = append(sets, "description = $description")
		vars["description"] = *p.Description
	}
	if p.Images != nil {
		sets = append(sets, "images = $images")
		vars["images"] = *p.Images
	}
	if p.Price != nil {
		sets = append(sets, "price = $price")
		vars["price"] = *p.Price
	}
	if p.Notes != nil {
		sets = append(sets, "notes = $notes")
		vars["notes"] = *p.Notes
	}
	if p.Rating != nil {
		sets = append(sets, "rating = $rating")
		vars["rating"] = ratingToMap(p.Rating)
	}
	if !p.UpdatedOn.IsZero() {
		sets = append(sets, "updated_on = <datetime>$updated_on")
		vars["updated_on"] = p.UpdatedOn.UTC().Format(time.RFC3339Nano)
	}
	return sets, vars
}

func scheduleToMap(s model.Schedule) map[string]interface{} {
	slots := make([]map[string]interface{}, 0, len(s.PreferredSlots))
	for _, slot := range s.PreferredSlots {
		slots = append(slots, map[string]interface{}{
			"date": slot.Date,
			"from": slot.From,
			"to":   slot.To,
		})
	}
	return map[string]interface{}{
		"date":            s.Date,
		"time":            s.Time,
		"preferred_slots": slots,
	}
}

func ratingToMap(rt *model.EngagementRating) map[string]interface{} {
	m := map[string]interface{}{
		"overall":  rt.Overall,
		"rated_on": rt.RatedOn.UTC().Format(time.RFC3339Nano),
	}
	if rt.Quality != nil {
		m["quality"] = *rt.Quality
	}
	if rt.Punctuality != nil {
		m["punctuality"] = *rt.Punctuality
	}
	if rt.Communication != nil {
		m["communication"] = *rt.Communication
	}
	if rt.ReviewText != nil {
		m["review_text"] = *rt.ReviewText
	}
	return m
}

func parseEngagements(result []interface{}) []*model.Engagement {
	engagements := make([]*model.Engagement, 0)
	for _, item := range extractQueryResults(result) {
		e, err := parseEngagement(item)
		if err != nil {
			continue
		}
		engagements = append(engagements, e)
	}
	return engagements
}

func parseEngagement(result interface{}) (*model.Engagement, error) {
	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}

	e := &model.Engagement{
		ID:                 convertSurrealID(data["id"]),
		Kind:               model.EngagementKind(getString(data, "kind")),
		ClientID:           getString(data, "client_id"),
		CraftsmanID:        getString(data, "craftsman_id"),
		Location:           getString(data, "location"),
		Description:        getString(data, "description"),
		Images:             getStringSlice(data, "images"),
		Status:             model.EngagementStatus(getString(data, "status")),
		CanEdit:            getBool(data, "can_edit"),
		VisibleToCraftsman: getBool(data, "visible_to_craftsman"),
		Price:              getFloatPtr(data, "price"),
		Notes:              getStringPtr(data, "notes"),
	}

	if s := getMap(data, "schedule"); s != nil {
		e.Schedule.Date = getString(s, "date")
		e.Schedule.Time = getString(s, "time")
		if slots, ok := s["preferred_slots"].([]interface{}); ok {
			for _, raw := range slots {
				if slot, ok := raw.(map[string]interface{}); ok {
					e.Schedule.PreferredSlots = append(e.Schedule.PreferredSlots, model.TimeSlot{
						Date: getString(slot, "date"),
						From: getString(slot, "from"),
						To:   getString(slot, "to"),
					})
				}
			}
		}
	}

	if rt := getMap(data, "rating"); rt != nil {
		rating := &model.EngagementRating{
			Overall:       getInt(rt, "overall"),
			Quality:       getIntPtr(rt, "quality"),
			Punctuality:   getIntPtr(rt, "punctuality"),
			Communication: getIntPtr(rt, "communication"),
			ReviewText:    getStringPtr(rt, "review_text"),
		}
		if t := getTime(rt, "rated_on"); t != nil {
			rating.RatedOn = *t
		}
		e.Rating = rating
	}

	if t := getTime(data, "created_on"); t != nil {
		e.CreatedOn = *t
	}
	if t := getTime(data, "updated_on"); t != nil {
		e.UpdatedOn = *t
	}

	return e, nil
}
