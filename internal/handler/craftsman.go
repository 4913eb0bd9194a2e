package handler

import (
	"context"
	"net/http"

	"github.com/forgo/craftlink/internal/model"
	"github.com/forgo/craftlink/internal/service"
)

// CraftsmanDirectory reads and registers craftsmen
type CraftsmanDirectory interface {
	Save(ctx context.Context, id string, req *service.SaveCraftsmanRequest) (*model.Craftsman, error)
	GetRating(ctx context.Context, id string) (*model.CraftsmanRatingResponse, error)
}

// CraftsmanHandler handles craftsman endpoints
type CraftsmanHandler struct {
	craftsmen CraftsmanDirectory
}

// NewCraftsmanHandler creates a new craftsman handler
func NewCraftsmanHandler(craftsmen CraftsmanDirectory) *CraftsmanHandler {
	return &CraftsmanHandler{craftsmen: craftsmen}
}

// GetRating handles GET /v1/craftsmen/{id}/rating
func (h *CraftsmanHandler) GetRating(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}

	id := r.PathValue("id")
	rating, err := h.craftsmen.GetRating(r.Context(), id)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "get craftsman rating"))
		return
	}

	WriteData(w, http.StatusOK, rating, map[string]string{
		"self": "/v1/craftsmen/" + id + "/rating",
	})
}

// Save handles PUT /v1/admin/craftsmen/{id} - register or toggle availability
func (h *CraftsmanHandler) Save(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}

	var req service.SaveCraftsmanRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	c, err := h.craftsmen.Save(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "save craftsman"))
		return
	}

	WriteData(w, http.StatusOK, c, map[string]string{
		"rating": "/v1/craftsmen/" + c.ID + "/rating",
	})
}
