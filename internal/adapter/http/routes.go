package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/agent0/runner/internal/middleware"
)

// Auth groups the authentication middleware of the API.
type Auth struct {
	// Users validates dashboard access tokens.
	Users *middleware.JWTValidator
	// Keys resolves workspace API keys of SDK callers.
	Keys middleware.APIKeyLookup
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, auth Auth) {
	r.Get("/health", h.HandleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		// SDK callers
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAPIKey(auth.Keys))
			r.Post("/run", h.HandleRun)
			r.Get("/run/ws", h.HandleRunWS)
		})

		// Dashboard users
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(auth.Users))
			r.Post("/test", h.HandleTest)
			r.Post("/invite", h.HandleInvite)
			r.Post("/agents/{agentID}/deploy", h.HandleDeploy)
			r.Post("/mcp/{mcpID}/refresh", h.HandleRefreshMCP)
		})
	})
}
