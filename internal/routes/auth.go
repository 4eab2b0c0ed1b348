package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/portal-auth/authpage/internal/middleware"
	"github.com/portal-auth/authpage/internal/session"
	"github.com/portal-auth/authpage/internal/web"
)

// RegisterPageRoutes wires the server-rendered sign-in screen.
func RegisterPageRoutes(r fiber.Router, h *web.Handler, rateLimiter fiber.Handler, tokens *session.Tokens) {
	r.Get("/", h.Index)
	r.Get(web.LoginPath, h.Page)
	if rateLimiter != nil {
		r.Post(web.LoginPath, rateLimiter, h.Submit)
	} else {
		r.Post(web.LoginPath, h.Submit)
	}
	r.Post(web.LoginPath+"/mode", h.ToggleMode)
	r.Get(web.LoginPath+"/google", h.GoogleStart)
	r.Get(web.LoginPath+"/google/callback", h.GoogleCallback)
	r.Post(web.LoginPath+"/logout", h.Logout)

	r.Get("/navigation", middleware.RequireSession(tokens, web.LoginPath), h.Navigation)
}

// RegisterAPIRoutes wires the JSON sign-in endpoints.
func RegisterAPIRoutes(r fiber.Router, h *web.Handler, rateLimiter fiber.Handler, tokens *session.Tokens) {
	group := r.Group("/auth")
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.APILogin)
		group.Post("/register", rateLimiter, h.APIRegister)
	} else {
		group.Post("/login", h.APILogin)
		group.Post("/register", h.APIRegister)
	}

	r.Get("/me", middleware.RequireSession(tokens, ""), h.APIMe)
}
