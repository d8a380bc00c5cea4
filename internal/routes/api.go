package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/syno-oncall/oncall/internal/contact"
	"github.com/syno-oncall/oncall/internal/identity"
)

// RegisterAPIRoutes wires the JSON API.
func RegisterAPIRoutes(r fiber.Router, modes *contact.Handler, users *identity.Handler) {
	r.Get("/modes", modes.List)
	r.Get("/users/:name", users.Get)
	r.Put("/users/:name/contacts/:mode", users.SetContact)
	r.All("/*", func(c *fiber.Ctx) error { return fiber.ErrNotFound })
}
