package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/forgo/craftlink/internal/clock"
	"github.com/forgo/craftlink/internal/database"
	"github.com/forgo/craftlink/internal/metrics"
	"github.com/forgo/craftlink/internal/model"
	"github.com/forgo/craftlink/internal/render"
	"github.com/forgo/craftlink/internal/tracing"
)

// EngagementStore defines the interface for engagement storage.
// ConditionalUpdate and ConditionalDelete return database.ErrNotFound when the
// record is absent and database.ErrPreconditionFailed when it no longer matches.
type EngagementStore interface {
	Create(ctx context.Context, e *model.Engagement) error
	GetByID(ctx context.Context, id string) (*model.Engagement, error)
	List(ctx context.Context, filter model.EngagementFilter) ([]*model.Engagement, error)
	ConditionalUpdate(ctx context.Context, id string, pre model.EngagementPrecondition, patch model.EngagementPatch) (*model.Engagement, error)
	ConditionalDelete(ctx context.Context, id string, pre model.EngagementPrecondition) error
}

// CraftsmanLookup resolves the craftsman named in a new engagement
type CraftsmanLookup interface {
	GetCraftsman(ctx context.Context, id string) (*model.Craftsman, error)
}

// RatingTrigger is told when an engagement of a craftsman has been rated
type RatingTrigger interface {
	OnEngagementRated(ctx context.Context, craftsmanID string) error
}

// Listing limits
const (
	DefaultEngagementPageSize = 20
	MaxEngagementPageSize     = 100
)

// ListEngagementsQuery selects the engagements an actor sees in one role
type ListEngagementsQuery struct {
	Role     model.Role
	Statuses []model.EngagementStatus
	Limit    int
	Offset   int
}

// EngagementService drives the engagement lifecycle. Every mutation resolves
// against the transition table and persists with a conditional write whose
// precondition is the state that was read.
type EngagementService struct {
	store     EngagementStore
	craftsmen CraftsmanLookup
	notifier  Notifier
	ratings   RatingTrigger
	clock     clock.Clock
	policy    WindowPolicy
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// EngagementServiceConfig holds configuration for the engagement service
type EngagementServiceConfig struct {
	Store     EngagementStore
	Craftsmen CraftsmanLookup
	Notifier  Notifier
	Ratings   RatingTrigger
	Clock     clock.Clock
	Policy    WindowPolicy
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

// NewEngagementService creates a new engagement service
func NewEngagementService(cfg EngagementServiceConfig) *EngagementService {
	s := &EngagementService{
		store:     cfg.Store,
		craftsmen: cfg.Craftsmen,
		notifier:  cfg.Notifier,
		ratings:   cfg.Ratings,
		clock:     cfg.Clock,
		policy:    cfg.Policy.withDefaults(),
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Policy returns the window policy in effect
func (s *EngagementService) Policy() WindowPolicy {
	return s.policy
}

// Create opens a pending engagement for the client. It stays hidden from the
// craftsman until the client confirms or the visibility window runs out.
func (s *EngagementService) Create(ctx context.Context, actor model.Actor, req *model.CreateEngagementRequest) (e *model.Engagement, err error) {
	ctx, span := s.start(ctx, "EngagementService.Create")
	defer func() { s.finish(span, "create", err) }()

	if errs := req.Validate(); len(errs) > 0 {
		return nil, model.NewValidationError(errs)
	}
	if actor.IsAdmin() {
		return nil, ErrActionNotPermitted
	}
	if actor.ID == req.CraftsmanID {
		return nil, ErrSelfEngagement
	}

	craftsman, err := s.craftsmen.GetCraftsman(ctx, req.CraftsmanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get craftsman: %w", err)
	}
	if craftsman == nil {
		return nil, ErrCraftsmanNotFound
	}
	if !craftsman.Available {
		return nil, ErrCraftsmanUnavailable
	}

	now := s.clock.Now()
	e = &model.Engagement{
		Kind:        req.EngagementKindOrDefault(),
		ClientID:    actor.ID,
		CraftsmanID: req.CraftsmanID,
		Schedule:    req.Schedule,
		Location:    strings.TrimSpace(req.Location),
		Description: strings.TrimSpace(req.Description),
		Images:      req.Images,
		Status:      model.EngagementStatusPending,
		CanEdit:     true,
		CreatedOn:   now,
		UpdatedOn:   now,
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create engagement: %w", err)
	}
	span.SetAttributes(attribute.String("engagement.id", e.ID))
	return e, nil
}

// ListForActor returns the actor's engagements in the given role.
// Craftsmen only see engagements that have been made visible to them.
func (s *EngagementService) ListForActor(ctx context.Context, actor model.Actor, q ListEngagementsQuery) ([]*model.Engagement, error) {
	role := q.Role
	if role == "" {
		role = actor.Role
	}

	filter := model.EngagementFilter{Statuses: q.Statuses, Limit: q.Limit, Offset: q.Offset}
	switch role {
	case model.RoleClient:
		filter.ClientID = actor.ID
	case model.RoleCraftsman:
		filter.CraftsmanID = actor.ID
		filter.VisibleOnly = true
	default:
		return nil, ErrInvalidListRole
	}

	for _, st := range q.Statuses {
		if !st.IsValid() {
			return nil, model.NewValidationError([]model.FieldError{{Field: "status", Message: "unknown status: " + string(st)}})
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultEngagementPageSize
	}
	if filter.Limit > MaxEngagementPageSize {
		filter.Limit = MaxEngagementPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	items, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list engagements: %w", err)
	}
	return items, nil
}

// GetByID returns an engagement to one of its parties or an admin
func (s *EngagementService) GetByID(ctx context.Context, id string, actor model.Actor) (*model.Engagement, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get engagement: %w", err)
	}
	if e == nil {
		return nil, ErrEngagementNotFound
	}
	if actor.IsAdmin() {
		return e, nil
	}
	if _, ok := actor.RoleIn(e); !ok {
		return nil, ErrNotEngagementParty
	}
	return e, nil
}

// SetStatus moves an engagement to req.Status. Price and notes are only
// accepted together with the transition to accepted.
func (s *EngagementService) SetStatus(ctx context.Context, id string, actor model.Actor, req *model.SetStatusRequest) (updated *model.Engagement, err error) {
	ctx, span := s.start(ctx, "EngagementService.SetStatus", attribute.String("engagement.id", id))
	action := "set_status"
	defer func() { s.finish(span, action, err) }()

	if errs := req.Validate(); len(errs) > 0 {
		return nil, model.NewValidationError(errs)
	}
	target := model.EngagementStatus(req.Status)
	a, ok := ActionForStatus(target)
	if !ok {
		return nil, ErrInvalidTransition
	}
	action = string(a)

	e, role, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	t, err := resolveTransition(a, role, e.Status)
	if err != nil {
		return nil, err
	}

	no := false
	patch := model.EngagementPatch{
		Status:    &t.To,
		CanEdit:   &no,
		UpdatedOn: s.clock.Now(),
	}
	if a == ActionAccept {
		patch.Price = req.Price
		patch.Notes = req.Notes
	}

	updated, err = s.update(ctx, id, model.EngagementPrecondition{Status: e.Status}, patch)
	if err != nil {
		return nil, err
	}

	recipient := updated.ClientID
	if a == ActionCancel {
		recipient = updated.CraftsmanID
	}
	if kind, ok := model.NotificationKindForStatus(t.To); ok {
		s.notify(ctx, recipient, kind, updated, nil)
	}
	return updated, nil
}

// Edit changes content fields of a pending engagement inside the edit window
func (s *EngagementService) Edit(ctx context.Context, id string, actor model.Actor, req *model.EditEngagementRequest) (updated *model.Engagement, err error) {
	ctx, span := s.start(ctx, "EngagementService.Edit", attribute.String("engagement.id", id))
	defer func() { s.finish(span, string(ActionEdit), err) }()

	e, role, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if !s.policy.CanEdit(e, now) {
		return nil, ErrEditWindowExpired
	}
	if _, err := resolveTransition(ActionEdit, role, e.Status); err != nil {
		return nil, err
	}
	if errs := req.Validate(e.Kind); len(errs) > 0 {
		return nil, model.NewValidationError(errs)
	}

	patch := model.EngagementPatch{
		Schedule:    req.Schedule,
		Location:    trimmed(req.Location),
		Description: trimmed(req.Description),
		Images:      req.Images,
		UpdatedOn:   now,
	}
	updated, err = s.update(ctx, id, editablePrecondition(), patch)
	if errors.Is(err, ErrConcurrentModification) {
		return nil, s.explainEditConflict(ctx, id, now)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a pending engagement inside the edit window
func (s *EngagementService) Delete(ctx context.Context, id string, actor model.Actor) (err error) {
	ctx, span := s.start(ctx, "EngagementService.Delete", attribute.String("engagement.id", id))
	defer func() { s.finish(span, string(ActionDelete), err) }()

	e, role, err := s.load(ctx, id, actor)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	if !s.policy.CanEdit(e, now) {
		return ErrEditWindowExpired
	}
	if _, err := resolveTransition(ActionDelete, role, e.Status); err != nil {
		return err
	}

	err = s.store.ConditionalDelete(ctx, id, editablePrecondition())
	switch {
	case errors.Is(err, database.ErrNotFound):
		return ErrEngagementNotFound
	case errors.Is(err, database.ErrPreconditionFailed):
		return s.explainEditConflict(ctx, id, now)
	case err != nil:
		return fmt.Errorf("failed to delete engagement: %w", err)
	}
	return nil
}

// Confirm reveals a pending engagement to the craftsman. Confirming an
// engagement that is already visible returns it unchanged and sends nothing.
func (s *EngagementService) Confirm(ctx context.Context, id string, actor model.Actor) (updated *model.Engagement, err error) {
	ctx, span := s.start(ctx, "EngagementService.Confirm", attribute.String("engagement.id", id))
	defer func() { s.finish(span, string(ActionConfirm), err) }()

	e, role, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if _, err := resolveTransition(ActionConfirm, role, e.Status); err != nil {
		return nil, err
	}
	if e.VisibleToCraftsman {
		return e, nil
	}

	yes, no := true, false
	updated, err = s.update(ctx, id,
		model.EngagementPrecondition{Status: model.EngagementStatusPending, VisibleToCraftsman: &no},
		model.EngagementPatch{VisibleToCraftsman: &yes, CanEdit: &no, UpdatedOn: s.clock.Now()},
	)
	if errors.Is(err, ErrConcurrentModification) {
		// the reconciler may have revealed it first
		fresh, ferr := s.store.GetByID(ctx, id)
		if ferr == nil && fresh != nil && fresh.Status == model.EngagementStatusPending && fresh.VisibleToCraftsman {
			return fresh, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.notify(ctx, updated.CraftsmanID, model.NotificationEngagementRequested, updated, nil)
	return updated, nil
}

// AttachRating records the client's rating on a completed engagement and
// refreshes the craftsman's roll-up. A failed roll-up is logged and left for
// the next recompute; the rating itself stays recorded.
func (s *EngagementService) AttachRating(ctx context.Context, id string, actor model.Actor, req *model.AttachRatingRequest) (updated *model.Engagement, err error) {
	ctx, span := s.start(ctx, "EngagementService.AttachRating", attribute.String("engagement.id", id))
	defer func() { s.finish(span, string(ActionRate), err) }()

	if errs := req.Validate(); len(errs) > 0 {
		return nil, model.NewValidationError(errs)
	}

	e, role, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if _, err := resolveTransition(ActionRate, role, e.Status); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil, ErrNotCompleted
		}
		return nil, err
	}
	if e.IsRated() {
		return nil, ErrAlreadyRated
	}

	now := s.clock.Now()
	rating := &model.EngagementRating{
		Overall:       req.Overall,
		Quality:       req.Quality,
		Punctuality:   req.Punctuality,
		Communication: req.Communication,
		ReviewText:    trimmed(req.ReviewText),
		RatedOn:       now,
	}
	updated, err = s.update(ctx, id,
		model.EngagementPrecondition{Status: model.EngagementStatusCompleted, Unrated: true},
		model.EngagementPatch{Rating: rating, UpdatedOn: now},
	)
	if errors.Is(err, ErrConcurrentModification) {
		if fresh, ferr := s.store.GetByID(ctx, id); ferr == nil && fresh != nil && fresh.IsRated() {
			return nil, ErrAlreadyRated
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if s.ratings != nil {
		if rerr := s.ratings.OnEngagementRated(ctx, updated.CraftsmanID); rerr != nil {
			s.logger.Warn("rating roll-up failed; left for recompute",
				slog.String("engagement_id", id),
				slog.String("craftsman_id", updated.CraftsmanID),
				slog.String("error", rerr.Error()),
			)
		}
	}

	s.notify(ctx, updated.CraftsmanID, model.NotificationEngagementRated, updated, map[string]string{
		render.PayloadOverall: strconv.Itoa(req.Overall),
	})
	return updated, nil
}

// load fetches an engagement and the role the actor plays in it.
// Admins are not parties and may only read through GetByID.
func (s *EngagementService) load(ctx context.Context, id string, actor model.Actor) (*model.Engagement, model.Role, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get engagement: %w", err)
	}
	if e == nil {
		return nil, "", ErrEngagementNotFound
	}
	role, ok := actor.RoleIn(e)
	if !ok {
		return nil, "", ErrNotEngagementParty
	}
	return e, role, nil
}

func (s *EngagementService) update(ctx context.Context, id string, pre model.EngagementPrecondition, patch model.EngagementPatch) (*model.Engagement, error) {
	updated, err := s.store.ConditionalUpdate(ctx, id, pre, patch)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, ErrEngagementNotFound
	case errors.Is(err, database.ErrPreconditionFailed):
		return nil, ErrConcurrentModification
	case err != nil:
		return nil, fmt.Errorf("failed to update engagement: %w", err)
	}
	return updated, nil
}

// explainEditConflict turns a lost edit race into EditWindowExpired when the
// record is no longer editable, and ConcurrentModification otherwise.
func (s *EngagementService) explainEditConflict(ctx context.Context, id string, now time.Time) error {
	fresh, err := s.store.GetByID(ctx, id)
	if err != nil {
		return ErrConcurrentModification
	}
	if fresh == nil {
		return ErrEngagementNotFound
	}
	if !s.policy.CanEdit(fresh, now) {
		return ErrEditWindowExpired
	}
	return ErrConcurrentModification
}

// notify is best effort: the transition already happened
func (s *EngagementService) notify(ctx context.Context, recipientID string, kind model.NotificationKind, e *model.Engagement, extra map[string]string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, recipientID, kind, engagementPayload(e, extra)); err != nil {
		s.logger.Warn("notification failed",
			slog.String("engagement_id", e.ID),
			slog.String("recipient_id", recipientID),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *EngagementService) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracing.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *EngagementService) finish(span trace.Span, action string, err error) {
	s.metrics.RecordTransition(action, outcomeOf(err))
	tracing.End(span, err)
}

func engagementPayload(e *model.Engagement, extra map[string]string) map[string]string {
	payload := map[string]string{
		render.PayloadEngagementID: e.ID,
		render.PayloadDescription:  e.Description,
		"status":                   string(e.Status),
	}
	for k, v := range extra {
		payload[k] = v
	}
	return payload
}

func editablePrecondition() model.EngagementPrecondition {
	yes := true
	return model.EngagementPrecondition{Status: model.EngagementStatusPending, CanEdit: &yes}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func outcomeOf(err error) string {
	var pd *model.ProblemDetails
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotEngagementParty), errors.Is(err, ErrActionNotPermitted):
		return "forbidden"
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotCompleted), errors.Is(err, ErrAlreadyRated):
		return "invalid_transition"
	case errors.Is(err, ErrEditWindowExpired):
		return "window_expired"
	case errors.Is(err, ErrConcurrentModification):
		return "conflict"
	case errors.Is(err, ErrEngagementNotFound), errors.Is(err, ErrCraftsmanNotFound):
		return "not_found"
	case errors.Is(err, ErrCraftsmanUnavailable), errors.Is(err, ErrSelfEngagement), errors.As(err, &pd):
		return "invalid"
	}
	return "error"
}
