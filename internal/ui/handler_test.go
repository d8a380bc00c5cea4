package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/syno-oncall/oncall/internal/auth"
	"github.com/syno-oncall/oncall/internal/config"
	"github.com/syno-oncall/oncall/internal/contact"
	"github.com/syno-oncall/oncall/internal/identity"
	"github.com/syno-oncall/oncall/internal/logging"
	"github.com/syno-oncall/oncall/internal/middleware"
	"github.com/syno-oncall/oncall/internal/session"
)

const testSessionID = "BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"

type fakeAuthenticator struct {
	name string
	err  error
}

func (f fakeAuthenticator) Authenticate(_ context.Context, sess *session.Session) (string, error) {
	if sess.Get(session.KeyAccessToken) == "" {
		return "", nil
	}
	return f.name, f.err
}

func setupIndex(t *testing.T, authenticator auth.Authenticator) (*fiber.App, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	templates, err := ParseTemplates()
	if err != nil {
		t.Fatalf("ParseTemplates: %v", err)
	}
	cfg := config.Config{SessionSecret: "secret"}
	cfg.Synology.SSOURL = "https://sso.example"
	cfg.Synology.AppID = "app-1"
	cfg.UI.SlackInstance = "acme"

	h := NewHandler(cfg, authenticator, session.NewStore(client, time.Hour, false),
		contact.NewService(contact.NewStaticRepository(), []string{"email", "call"}), templates, logging.Discard())

	app := fiber.New()
	app.Use(middleware.Nonce())
	app.Get("/*", h.Index)
	return app, mr
}

func getIndex(t *testing.T, app *fiber.App, withCookie bool) string {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	if withCookie {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: testSessionID})
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get(fiber.HeaderContentType); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func TestIndexAnonymousRendersSplash(t *testing.T) {
	app, _ := setupIndex(t, nil)

	body := getIndex(t, app, false)
	if !strings.Contains(body, `id="login-form"`) || !strings.Contains(body, "app-1") {
		t.Fatalf("expected login splash, got %s", body)
	}
	if !strings.Contains(body, `nonce="`) {
		t.Fatal("expected nonce on scripts")
	}
}

func TestIndexSessionUser(t *testing.T) {
	app, mr := setupIndex(t, nil)
	mr.HSet("session:v1:"+testSessionID, session.KeyUser, "alice")

	body := getIndex(t, app, true)
	if !strings.Contains(body, `"alice"`) || !strings.Contains(body, "#3a3a3a") {
		t.Fatalf("expected index for alice, got %s", body)
	}
	if !strings.Contains(body, auth.SignCSRF(testSessionID, []byte("secret"))) {
		t.Fatal("expected csrf token bound to the session")
	}
	if !strings.Contains(body, `"Phone Call"`) || strings.Contains(body, `"SMS"`) {
		t.Fatalf("expected supported modes only, got %s", body)
	}
}

func TestIndexPrefersSSO(t *testing.T) {
	app, mr := setupIndex(t, fakeAuthenticator{name: "bob"})
	mr.HSet("session:v1:"+testSessionID, session.KeyAccessToken, "tok")

	body := getIndex(t, app, true)
	if !strings.Contains(body, `"bob"`) {
		t.Fatalf("expected index for bob, got %s", body)
	}
	if got := mr.HGet("session:v1:"+testSessionID, session.KeyUser); got != "bob" {
		t.Fatalf("expected sso user pinned to session, got %q", got)
	}
	if got := mr.HGet("session:v1:"+testSessionID, session.KeySSOUser); got != "bob" {
		t.Fatalf("expected sso marker on session, got %q", got)
	}
}

func TestIndexSSOFailureFallsBack(t *testing.T) {
	app, mr := setupIndex(t, fakeAuthenticator{err: auth.ErrTokenRejected})
	mr.HSet("session:v1:"+testSessionID, session.KeyAccessToken, "tok")

	body := getIndex(t, app, true)
	if !strings.Contains(body, `id="login-form"`) {
		t.Fatalf("expected login splash, got %s", body)
	}
	if mr.Exists("session:v1:" + testSessionID) {
		t.Fatal("rejected token must be dropped from the session")
	}
}

func TestIndexSSOErrorKeepsSessionUser(t *testing.T) {
	app, mr := setupIndex(t, fakeAuthenticator{err: errors.New("provider down")})
	mr.HSet("session:v1:"+testSessionID, session.KeyAccessToken, "tok", session.KeyUser, "carol")

	body := getIndex(t, app, true)
	if !strings.Contains(body, `"carol"`) {
		t.Fatalf("expected fallback to session user, got %s", body)
	}
}

func TestIndexRejectedTokenClearsSSOUser(t *testing.T) {
	app, mr := setupIndex(t, fakeAuthenticator{err: auth.ErrTokenRejected})
	mr.HSet("session:v1:"+testSessionID, session.KeyAccessToken, "tok", session.KeyUser, "bob", session.KeySSOUser, "bob")

	body := getIndex(t, app, true)
	if !strings.Contains(body, `id="login-form"`) {
		t.Fatalf("expected login splash, got %s", body)
	}
	if mr.Exists("session:v1:" + testSessionID) {
		t.Fatal("expected sso user and token dropped from the session")
	}
}

func TestIndexRejectedTokenKeepsLocalUser(t *testing.T) {
	app, mr := setupIndex(t, fakeAuthenticator{err: auth.ErrTokenRejected})
	mr.HSet("session:v1:"+testSessionID, session.KeyAccessToken, "tok", session.KeyUser, "carol")

	body := getIndex(t, app, true)
	if !strings.Contains(body, `"carol"`) {
		t.Fatalf("expected index for local user, got %s", body)
	}
	if got := mr.HGet("session:v1:"+testSessionID, session.KeyAccessToken); got != "" {
		t.Fatalf("expected token dropped, got %q", got)
	}
}

func TestIndexUnknownUserDropsToken(t *testing.T) {
	app, mr := setupIndex(t, fakeAuthenticator{err: fmt.Errorf("user %q is not imported: %w", "dave", identity.ErrUserNotFound)})
	mr.HSet("session:v1:"+testSessionID, session.KeyAccessToken, "tok")

	body := getIndex(t, app, true)
	if !strings.Contains(body, `id="login-form"`) {
		t.Fatalf("expected login splash, got %s", body)
	}
	if mr.Exists("session:v1:" + testSessionID) {
		t.Fatal("expected token for unimported user dropped")
	}
}
