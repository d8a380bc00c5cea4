package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/syno-oncall/oncall/internal/auth"
)

// RegisterAuthRoutes wires the SSO callback and the session login endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	r.Get("/auth/response", h.Response)
	if rateLimiter != nil {
		r.Post("/login", rateLimiter, h.Login)
	} else {
		r.Post("/login", h.Login)
	}
	r.Post("/logout", h.Logout)
}
