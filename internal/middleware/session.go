package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/syno-oncall/oncall/internal/auth"
	"github.com/syno-oncall/oncall/internal/session"
)

const csrfHeader = "X-CSRF-TOKEN"

// SessionUser records the session's user name on the request. Anonymous
// requests continue without one.
func SessionUser(store *session.Store, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			logger.Warn("session lookup failed", slog.Any("error", err))
			return c.Next()
		}
		if name := sess.Get(session.KeyUser); name != "" {
			session.SetUser(c, name)
		}
		return c.Next()
	}
}

// CSRF rejects unsafe requests that lack a session user or a token signed
// for the current session.
func CSRF(store *session.Store, secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}
		if session.User(c) == "" {
			return fiber.NewError(http.StatusUnauthorized, "login required")
		}
		sess, err := store.Get(c)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "session unavailable")
		}
		if !auth.VerifyCSRF(c.Get(csrfHeader), sess.ID(), secret) {
			return fiber.NewError(http.StatusForbidden, "invalid CSRF token")
		}
		return c.Next()
	}
}
