package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/forgo/craftlink/internal/middleware"
	"github.com/forgo/craftlink/internal/model"
	"github.com/forgo/craftlink/internal/service"
)

// EngagementLifecycle is the engagement service as seen by HTTP
type EngagementLifecycle interface {
	Create(ctx context.Context, actor model.Actor, req *model.CreateEngagementRequest) (*model.Engagement, error)
	ListForActor(ctx context.Context, actor model.Actor, q service.ListEngagementsQuery) ([]*model.Engagement, error)
	GetByID(ctx context.Context, id string, actor model.Actor) (*model.Engagement, error)
	SetStatus(ctx context.Context, id string, actor model.Actor, req *model.SetStatusRequest) (*model.Engagement, error)
	Edit(ctx context.Context, id string, actor model.Actor, req *model.EditEngagementRequest) (*model.Engagement, error)
	Delete(ctx context.Context, id string, actor model.Actor) error
	Confirm(ctx context.Context, id string, actor model.Actor) (*model.Engagement, error)
	AttachRating(ctx context.Context, id string, actor model.Actor, req *model.AttachRatingRequest) (*model.Engagement, error)
}

// EngagementHandler handles the engagement lifecycle endpoints
type EngagementHandler struct {
	engagements EngagementLifecycle
}

// NewEngagementHandler creates a new engagement handler
func NewEngagementHandler(engagements EngagementLifecycle) *EngagementHandler {
	return &EngagementHandler{engagements: engagements}
}

// Create handles POST /v1/engagements - book a craftsman
func (h *EngagementHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.CreateEngagementRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	e, err := h.engagements.Create(r.Context(), actor, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "create engagement"))
		return
	}

	w.Header().Set("Location", engagementPath(e.ID))
	WriteData(w, http.StatusCreated, e, engagementLinks(e.ID))
}

// List handles GET /v1/engagements?role=&status=&limit=&offset=
func (h *EngagementHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	q := service.ListEngagementsQuery{
		Role:   model.Role(r.URL.Query().Get("role")),
		Limit:  queryInt(r, "limit", service.DefaultEngagementPageSize, 1, service.MaxEngagementPageSize),
		Offset: queryInt(r, "offset", 0, 0, 1<<30),
	}
	for _, raw := range r.URL.Query()["status"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				q.Statuses = append(q.Statuses, model.EngagementStatus(s))
			}
		}
	}

	items, err := h.engagements.ListForActor(r.Context(), actor, q)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "list engagements"))
		return
	}
	if items == nil {
		items = []*model.Engagement{}
	}

	WriteCollection(w, http.StatusOK, items, &PaginationInfo{
		Limit:   q.Limit,
		Offset:  q.Offset,
		HasMore: len(items) == q.Limit,
	}, map[string]string{
		"self": "/v1/engagements",
	})
}

// Get handles GET /v1/engagements/{id}
func (h *EngagementHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}

	e, err := h.engagements.GetByID(r.Context(), id, actor)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "get engagement"))
		return
	}

	WriteData(w, http.StatusOK, e, engagementLinks(e.ID))
}

// Edit handles PATCH /v1/engagements/{id} - client edits inside the edit window
func (h *EngagementHandler) Edit(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}

	var req model.EditEngagementRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	e, err := h.engagements.Edit(r.Context(), id, actor, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "edit engagement"))
		return
	}

	WriteData(w, http.StatusOK, e, engagementLinks(e.ID))
}

// Delete handles DELETE /v1/engagements/{id} - client withdraws inside the edit window
func (h *EngagementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}

	if err := h.engagements.Delete(r.Context(), id, actor); err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "delete engagement"))
		return
	}

	WriteNoContent(w)
}

// SetStatus handles POST /v1/engagements/{id}/status
func (h *EngagementHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}

	var req model.SetStatusRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	e, err := h.engagements.SetStatus(r.Context(), id, actor, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "set engagement status"))
		return
	}

	WriteData(w, http.StatusOK, e, engagementLinks(e.ID))
}

// Confirm handles POST /v1/engagements/{id}/confirm - client reveals the request early
func (h *EngagementHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}

	e, err := h.engagements.Confirm(r.Context(), id, actor)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "confirm engagement"))
		return
	}

	WriteData(w, http.StatusOK, e, engagementLinks(e.ID))
}

// Rate handles POST /v1/engagements/{id}/rating
func (h *EngagementHandler) Rate(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}

	var req model.AttachRatingRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	e, err := h.engagements.AttachRating(r.Context(), id, actor, &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "rate engagement"))
		return
	}

	WriteData(w, http.StatusOK, e, engagementLinks(e.ID))
}

func engagementPath(id string) string {
	return "/v1/engagements/" + id
}

func engagementLinks(id string) map[string]string {
	self := engagementPath(id)
	return map[string]string{
		"self":    self,
		"status":  self + "/status",
		"confirm": self + "/confirm",
		"rating":  self + "/rating",
	}
}

// requireActor writes 401 when no authenticated actor is present
func requireActor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return model.Actor{}, false
	}
	return actor, true
}

func actorAndID(w http.ResponseWriter, r *http.Request) (model.Actor, string, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return model.Actor{}, "", false
	}
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, model.NewBadRequestError("engagement ID required"))
		return model.Actor{}, "", false
	}
	return actor, id, true
}
