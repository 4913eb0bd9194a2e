package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/forgo/craftlink/internal/model"
	"github.com/forgo/craftlink/pkg/jwt"
)

// AuthService defines the interface for token validation
type AuthService interface {
	ValidateAccessToken(token string) (*jwt.Claims, error)
}

const (
	// ActorKey is the context key for the authenticated actor
	ActorKey contextKey = "actor"
	// ClaimsKey is the context key for JWT claims
	ClaimsKey contextKey = "claims"
)

// Auth returns a middleware that validates bearer tokens and puts the
// acting user and role on the request context
func Auth(authService AuthService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r)
			if problem != "" {
				model.NewUnauthorizedError(problem).WriteJSON(w)
				return
			}

			claims, err := authService.ValidateAccessToken(token)
			if err != nil {
				switch {
				case errors.Is(err, jwt.ErrTokenExpired):
					model.NewUnauthorizedError("token expired").WriteJSON(w)
				case errors.Is(err, jwt.ErrInvalidSignature):
					model.NewUnauthorizedError("invalid token signature").WriteJSON(w)
				default:
					model.NewUnauthorizedError("invalid token").WriteJSON(w)
				}
				return
			}

			role := model.Role(claims.Role)
			if !role.IsValid() {
				model.NewForbiddenError("token carries no usable role").WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// RequireRole rejects actors whose role is not listed. Must run after Auth.
func RequireRole(roles ...model.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := GetActor(r.Context())
			if !ok {
				model.NewUnauthorizedError("authentication required").WriteJSON(w)
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			model.NewForbiddenError("role " + string(actor.Role) + " may not use this endpoint").WriteJSON(w)
		})
	}
}

// WithActor returns a context carrying actor
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, actor.ID)
	return context.WithValue(ctx, ActorKey, actor)
}

// GetActor extracts the authenticated actor from context
func GetActor(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(model.Actor)
	if !ok || actor.ID == "" {
		return model.Actor{}, false
	}
	return actor, true
}

// GetUserID extracts the user ID from context
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// GetClaims extracts the JWT claims from context
func GetClaims(ctx context.Context) *jwt.Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*jwt.Claims); ok {
		return claims
	}
	return nil
}

func withClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	actor := model.Actor{ID: claims.UserID, Role: model.Role(claims.Role)}
	reportActor(ctx, actor)
	ctx = WithActor(ctx, actor)
	return context.WithValue(ctx, ClaimsKey, claims)
}

// bearerToken returns the token or a message describing what is wrong with
// the Authorization header
func bearerToken(r *http.Request) (string, string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "missing authorization header"
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", "invalid authorization header format"
	}
	return strings.TrimSpace(parts[1]), ""
}
