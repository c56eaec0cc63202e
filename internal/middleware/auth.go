package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/workspace"
)

type userCtxKey struct{}
type apiKeyCtxKey struct{}

// APIKeyLookup resolves workspace API keys by hash.
type APIKeyLookup interface {
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*workspace.APIKey, error)
}

// RequireUser returns middleware that admits requests carrying a valid user
// access token as "Authorization: Bearer <jwt>".
func RequireUser(v *JWTValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearer(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "authorization required")
				return
			}
			claims, err := v.Validate(token)
			if err != nil {
				slog.Debug("jwt rejected", "error", err)
				writeError(w, http.StatusUnauthorized, "Unauthorized", "invalid access token")
				return
			}
			ctx := context.WithValue(r.Context(), userCtxKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAPIKey returns middleware that admits requests carrying a valid,
// unexpired workspace API key. The key is read from "Authorization: Bearer",
// then X-API-Key, then the api_key query parameter (browsers cannot set
// headers on WebSocket upgrades).
func RequireAPIKey(keys APIKeyLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			plain := apiKeyFrom(r)
			if plain == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "api key required")
				return
			}
			key, err := keys.GetAPIKeyByHash(r.Context(), workspace.HashKey(plain))
			switch {
			case errors.Is(err, domain.ErrNotFound):
				writeError(w, http.StatusUnauthorized, "Unauthorized", "invalid api key")
				return
			case err != nil:
				slog.Error("api key lookup failed", "error", err)
				writeError(w, http.StatusInternalServerError, "InternalError", "internal server error")
				return
			case key.Expired(time.Now()):
				writeError(w, http.StatusUnauthorized, "Unauthorized", "api key expired")
				return
			}
			ctx := context.WithValue(r.Context(), apiKeyCtxKey{}, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

func apiKeyFrom(r *http.Request) string {
	if token, ok := bearer(r); ok {
		return token
	}
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	return r.URL.Query().Get("api_key")
}

// UserFromContext returns the claims of the authenticated user, or nil.
func UserFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(userCtxKey{}).(*Claims)
	return c
}

// APIKeyFromContext returns the API key used for authentication, or nil.
func APIKeyFromContext(ctx context.Context) *workspace.APIKey {
	k, _ := ctx.Value(apiKeyCtxKey{}).(*workspace.APIKey)
	return k
}

// WithUser returns ctx carrying claims. Exported for handler tests.
func WithUser(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, userCtxKey{}, c)
}

// WithAPIKey returns ctx carrying key. Exported for handler tests.
func WithAPIKey(ctx context.Context, k *workspace.APIKey) context.Context {
	return context.WithValue(ctx, apiKeyCtxKey{}, k)
}
