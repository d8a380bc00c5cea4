package middleware

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestNonce(t *testing.T) {
	app := fiber.New()
	app.Use(Nonce("https://sso.example"))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(NonceFrom(c)) })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read: %v", err)
	}
	nonce := buf.String()
	if nonce == "" {
		t.Fatal("expected nonce")
	}
	csp := resp.Header.Get(fiber.HeaderContentSecurityPolicy)
	if !strings.Contains(csp, "'nonce-"+nonce+"'") || !strings.Contains(csp, "https://sso.example") {
		t.Fatalf("unexpected policy %q", csp)
	}
}

func TestRequestIDReusesClientValue(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(RequestIDFrom(c)) })

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got := resp.Header.Get(requestIDHeader); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}

	resp, _ = app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	if got := resp.Header.Get(requestIDHeader); len(got) != 36 {
		t.Fatalf("expected generated uuid, got %q", got)
	}
}
