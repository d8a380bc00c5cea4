package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/syno-oncall/oncall/internal/config"
	"github.com/syno-oncall/oncall/internal/logging"
	"github.com/syno-oncall/oncall/internal/session"
)

var csrfMeta = regexp.MustCompile(`name="csrf-token" content="([^"]+)"`)

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	return setupAppWithProvider(t, new(atomic.Bool))
}

// setupAppWithProvider rejects every token once revoked is set.
func setupAppWithProvider(t *testing.T, revoked *atomic.Bool) *fiber.App {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	sso := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if revoked.Load() || r.URL.Query().Get("access_token") != "good" {
			_, _ = w.Write([]byte(`{"success":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"user_id":1026,"user_name":"alice"}}`))
	}))
	t.Cleanup(sso.Close)

	cfg := config.Config{
		AppName:                "oncall-test",
		AppEnv:                 "test",
		SessionSecret:          "secret",
		SessionTTL:             time.Hour,
		IdempotencyTTL:         time.Minute,
		LoginAttemptsPerMinute: 5,
		SupportedModes:         []string{"email", "sms", "call"},
		StaticRoot:             t.TempDir(),
	}
	cfg.Auth.Module = config.AuthModuleSynology
	cfg.Synology.SSOURL = sso.URL
	cfg.Synology.AppID = "app-1"
	cfg.Synology.SDKURL = "https://sso.example/webman/sso/synoSSO-1.0.0.js"

	app := fiber.New()
	if err := Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logging.Discard(), HTTPClient: sso.Client()}); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request, cookie *http.Cookie) *http.Response {
	t.Helper()
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test %s %s: %v", req.Method, req.URL.Path, err)
	}
	return resp
}

func TestSetupRequiresRedis(t *testing.T) {
	if err := Setup(fiber.New(), Deps{Cfg: config.Config{AppEnv: "test"}, Logger: logging.Discard()}); err == nil {
		t.Fatal("expected error without redis")
	}
}

func TestSetupRequiresDatabaseOutsideDev(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	if err := Setup(fiber.New(), Deps{Cfg: config.Config{AppEnv: "production"}, Cache: cache, Logger: logging.Discard()}); err == nil {
		t.Fatal("expected error without database")
	}
}

func TestPublicRoutes(t *testing.T) {
	app := setupApp(t)

	resp := do(t, app, httptest.NewRequest(fiber.MethodGet, "/healthz", nil), nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.StatusCode)
	}

	resp = do(t, app, httptest.NewRequest(fiber.MethodGet, "/api/v0/modes", nil), nil)
	var modes []map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&modes); err != nil {
		t.Fatalf("decode modes: %v", err)
	}
	if len(modes) != 3 || modes[1]["name"] != "SMS" {
		t.Fatalf("unexpected modes %v", modes)
	}

	resp = do(t, app, httptest.NewRequest(fiber.MethodGet, "/api/v0/nope", nil), nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("unknown api route: expected 404, got %d", resp.StatusCode)
	}

	resp = do(t, app, httptest.NewRequest(fiber.MethodGet, "/static/bundles/missing.js", nil), nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("missing static file: expected 404, got %d", resp.StatusCode)
	}

	resp = do(t, app, httptest.NewRequest(fiber.MethodGet, "/auth/response", nil), nil)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("auth response without token: expected 400, got %d", resp.StatusCode)
	}

	resp = do(t, app, httptest.NewRequest(fiber.MethodGet, "/metrics", nil), nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", resp.StatusCode)
	}
}

func TestAnonymousIndexShowsSplash(t *testing.T) {
	app := setupApp(t)

	resp := do(t, app, httptest.NewRequest(fiber.MethodGet, "/teams/oncall", nil), nil)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `id="login-form"`) {
		t.Fatalf("expected splash, got %s", body)
	}
	if csp := resp.Header.Get(fiber.HeaderContentSecurityPolicy); !strings.Contains(csp, "https://sso.example") {
		t.Fatalf("expected sdk origin in policy, got %q", csp)
	}
}

func TestSSOLoginFlow(t *testing.T) {
	app := setupApp(t)

	resp := do(t, app, httptest.NewRequest(fiber.MethodGet, "/auth/response?token=good", nil), nil)
	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("auth response: expected 302, got %d", resp.StatusCode)
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected session cookie")
	}
	cookie = &http.Cookie{Name: cookie.Name, Value: cookie.Value}

	resp = do(t, app, httptest.NewRequest(fiber.MethodGet, "/", nil), cookie)
	body, _ := io.ReadAll(resp.Body)
	match := csrfMeta.FindStringSubmatch(string(body))
	if match == nil {
		t.Fatalf("expected index with csrf token, got %s", body)
	}
	csrf := match[1]

	put := func(token string) int {
		req := httptest.NewRequest(fiber.MethodPut, "/api/v0/users/alice/contacts/email", strings.NewReader(`{"destination":"alice@example.com"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		if token != "" {
			req.Header.Set("X-CSRF-TOKEN", token)
		}
		return do(t, app, req, cookie).StatusCode
	}
	if status := put(""); status != fiber.StatusForbidden {
		t.Fatalf("put without csrf: expected 403, got %d", status)
	}
	if status := put(csrf); status != fiber.StatusNoContent {
		t.Fatalf("put with csrf: expected 204, got %d", status)
	}

	resp = do(t, app, httptest.NewRequest(fiber.MethodGet, "/api/v0/users/alice", nil), nil)
	var user struct {
		Name     string            `json:"name"`
		Contacts map[string]string `json:"contacts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.Contacts["email"] != "alice@example.com" || len(user.Contacts) != 3 {
		t.Fatalf("unexpected contacts %v", user.Contacts)
	}
}

func TestRejectedTokenShowsSplash(t *testing.T) {
	app := setupApp(t)

	resp := do(t, app, httptest.NewRequest(fiber.MethodGet, "/auth/response?token=bad", nil), nil)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			cookie = &http.Cookie{Name: c.Name, Value: c.Value}
		}
	}
	if cookie == nil {
		t.Fatal("expected session cookie")
	}

	resp = do(t, app, httptest.NewRequest(fiber.MethodGet, "/", nil), cookie)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `id="login-form"`) {
		t.Fatalf("expected splash, got %s", body)
	}
}

func TestRevokedTokenLogsOut(t *testing.T) {
	revoked := new(atomic.Bool)
	app := setupAppWithProvider(t, revoked)

	resp := do(t, app, httptest.NewRequest(fiber.MethodGet, "/auth/response?token=good", nil), nil)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			cookie = &http.Cookie{Name: c.Name, Value: c.Value}
		}
	}
	if cookie == nil {
		t.Fatal("expected session cookie")
	}

	resp = do(t, app, httptest.NewRequest(fiber.MethodGet, "/", nil), cookie)
	body, _ := io.ReadAll(resp.Body)
	if !csrfMeta.Match(body) {
		t.Fatalf("expected index before revocation, got %s", body)
	}

	revoked.Store(true)

	resp = do(t, app, httptest.NewRequest(fiber.MethodGet, "/", nil), cookie)
	body, _ = io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `id="login-form"`) {
		t.Fatalf("expected splash after revocation, got %s", body)
	}

	req := httptest.NewRequest(fiber.MethodPut, "/api/v0/users/alice/contacts/email", strings.NewReader(`{"destination":"alice@example.com"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if status := do(t, app, req, cookie).StatusCode; status != fiber.StatusUnauthorized {
		t.Fatalf("api write after revocation: expected 401, got %d", status)
	}
}
