package handler

import (
	"net/http"

	"github.com/forgo/craftlink/internal/middleware"
	"github.com/forgo/craftlink/internal/model"
)

// Routes bundles the handlers mounted on the API mux
type Routes struct {
	Engagements   *EngagementHandler
	Craftsmen     *CraftsmanHandler
	Notifications *NotificationHandler
	Admin         *AdminHandler
	Health        *HealthHandler
	Metrics       http.Handler

	// Auth authenticates every /v1 route
	Auth middleware.Middleware
	// Idempotency wraps engagement creation; optional
	Idempotency middleware.Middleware
}

// Register mounts the API on mux
func Register(mux *http.ServeMux, rt Routes) {
	authed := func(h http.HandlerFunc, extra ...middleware.Middleware) http.Handler {
		return middleware.Chain(h, append([]middleware.Middleware{rt.Auth}, extra...)...)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authed(h, middleware.RequireRole(model.RoleAdmin))
	}

	mux.HandleFunc("GET /health", rt.Health.Health)
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}

	// Engagements
	create := []middleware.Middleware{}
	if rt.Idempotency != nil {
		create = append(create, rt.Idempotency)
	}
	mux.Handle("POST /v1/engagements", authed(rt.Engagements.Create, create...))
	mux.Handle("GET /v1/engagements", authed(rt.Engagements.List))
	mux.Handle("GET /v1/engagements/{id}", authed(rt.Engagements.Get))
	mux.Handle("PATCH /v1/engagements/{id}", authed(rt.Engagements.Edit))
	mux.Handle("DELETE /v1/engagements/{id}", authed(rt.Engagements.Delete))
	mux.Handle("POST /v1/engagements/{id}/status", authed(rt.Engagements.SetStatus))
	mux.Handle("POST /v1/engagements/{id}/confirm", authed(rt.Engagements.Confirm))
	mux.Handle("POST /v1/engagements/{id}/rating", authed(rt.Engagements.Rate))

	// Craftsmen
	mux.Handle("GET /v1/craftsmen/{id}/rating", authed(rt.Craftsmen.GetRating))

	// Notifications
	mux.Handle("GET /v1/notifications", authed(rt.Notifications.List))
	mux.Handle("GET /v1/notifications/stream", authed(rt.Notifications.Stream))
	mux.Handle("POST /v1/notifications/{id}/read", authed(rt.Notifications.MarkRead))

	// Admin
	mux.Handle("PUT /v1/admin/craftsmen/{id}", admin(rt.Craftsmen.Save))
	mux.Handle("POST /v1/admin/craftsmen/{id}/rating/recompute", admin(rt.Admin.RecomputeRating))
	mux.Handle("POST /v1/admin/ratings/recompute", admin(rt.Admin.RecomputeAllRatings))
	mux.Handle("POST /v1/admin/engagements/reconcile", admin(rt.Admin.Reconcile))
}
