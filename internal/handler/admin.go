package handler

import (
	"context"
	"net/http"

	"github.com/forgo/craftlink/internal/service"
)

// RatingRecomputer rebuilds craftsman roll-ups from rated engagements
type RatingRecomputer interface {
	Recompute(ctx context.Context, craftsmanID string) (*service.RatingSummary, error)
	RecomputeAll(ctx context.Context) (service.RecomputeAllResult, error)
}

// VisibilityReconciler runs one expiry pass
type VisibilityReconciler interface {
	ReconcileOnce(ctx context.Context) (service.ReconcileResult, error)
}

// AdminHandler handles operator endpoints. Routes are gated to the admin role.
type AdminHandler struct {
	ratings    RatingRecomputer
	reconciler VisibilityReconciler
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(ratings RatingRecomputer, reconciler VisibilityReconciler) *AdminHandler {
	return &AdminHandler{ratings: ratings, reconciler: reconciler}
}

// RecomputeRating handles POST /v1/admin/craftsmen/{id}/rating/recompute
func (h *AdminHandler) RecomputeRating(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ratings.Recompute(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "recompute rating"))
		return
	}

	WriteData(w, http.StatusOK, summary, map[string]string{
		"rating": "/v1/craftsmen/" + summary.CraftsmanID + "/rating",
	})
}

// RecomputeAllRatings handles POST /v1/admin/ratings/recompute
func (h *AdminHandler) RecomputeAllRatings(w http.ResponseWriter, r *http.Request) {
	result, err := h.ratings.RecomputeAll(r.Context())
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "recompute ratings"))
		return
	}

	WriteData(w, http.StatusOK, result, nil)
}

// Reconcile handles POST /v1/admin/engagements/reconcile
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.ReconcileOnce(r.Context())
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "reconcile engagements"))
		return
	}

	WriteData(w, http.StatusOK, result, nil)
}
