package middleware

import (
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const nonceLocal = "nonce"

// Nonce issues a per-request script nonce and the matching
// Content-Security-Policy header. Extra script origins (the SSO SDK) are
// allowed alongside the nonce.
func Nonce(scriptOrigins ...string) fiber.Handler {
	extra := strings.TrimSpace(strings.Join(scriptOrigins, " "))
	return func(c *fiber.Ctx) error {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "nonce generation failed")
		}
		nonce := base64.StdEncoding.EncodeToString(buf)
		c.Locals(nonceLocal, nonce)

		scriptSrc := "script-src 'self' 'nonce-" + nonce + "'"
		if extra != "" {
			scriptSrc += " " + extra
		}
		c.Set(fiber.HeaderContentSecurityPolicy, "default-src 'self'; "+scriptSrc+"; style-src 'self' 'unsafe-inline'; img-src 'self' data:; frame-ancestors 'none'")
		return c.Next()
	}
}

// NonceFrom returns the nonce issued by Nonce.
func NonceFrom(c *fiber.Ctx) string {
	nonce, _ := c.Locals(nonceLocal).(string)
	return nonce
}
