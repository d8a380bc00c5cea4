package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/syno-oncall/oncall/internal/auth"
	"github.com/syno-oncall/oncall/internal/config"
	"github.com/syno-oncall/oncall/internal/contact"
	"github.com/syno-oncall/oncall/internal/identity"
	"github.com/syno-oncall/oncall/internal/metrics"
	"github.com/syno-oncall/oncall/internal/middleware"
	"github.com/syno-oncall/oncall/internal/session"
	"github.com/syno-oncall/oncall/internal/ui"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// HTTPClient talks to the SSO provider; nil uses a default client.
	HTTPClient *http.Client
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Cache == nil {
		return fmt.Errorf("redis is required for sessions")
	}
	if d.DB == nil && !d.Cfg.IsDev() {
		return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Metrics())
	app.Use(middleware.Audit(d.Logger))
	if d.Cfg.IsDev() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	var (
		identityRepo identity.Repository
		modeRepo     contact.Repository
	)
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
		modeRepo = contact.NewPostgresRepository(d.DB)
	} else {
		d.Logger.Warn("no database configured, using in-memory stores")
		identityRepo = identity.NewMemoryRepository()
		modeRepo = contact.NewStaticRepository()
	}

	users := identity.NewService(identityRepo)
	modes := contact.NewService(modeRepo, d.Cfg.SupportedModes)
	sessions := session.NewStore(d.Cache, d.Cfg.SessionTTL, d.Cfg.SecureCookies)
	secret := []byte(d.Cfg.SessionSecret)

	authenticator, err := auth.New(d.Cfg, users, d.HTTPClient, d.Logger)
	if err != nil {
		return err
	}
	templates, err := ui.ParseTemplates()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	api := app.Group("/api/v0",
		middleware.SessionUser(sessions, d.Logger),
		middleware.CSRF(sessions, secret),
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	)
	RegisterAPIRoutes(api, contact.NewHandler(modes, d.Logger), identity.NewHandler(users, modes, d.Logger))

	authHandler := auth.NewHandler(users, sessions, secret, d.Logger)
	RegisterAuthRoutes(app, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginAttemptsPerMinute))

	uiHandler := ui.NewHandler(d.Cfg, authenticator, sessions, modes, templates, d.Logger)
	RegisterUIRoutes(app, uiHandler, d.Cfg.StaticRoot, middleware.Nonce(scriptOrigin(d.Cfg.Synology.SDKURL)))

	d.Logger.Info("routes registered",
		slog.String("auth_module", d.Cfg.Auth.Module),
		slog.Any("supported_modes", d.Cfg.SupportedModes),
		slog.Duration("session_ttl", d.Cfg.SessionTTL),
	)
	return nil
}

// scriptOrigin reduces the SDK URL to the origin allowed by the CSP.
func scriptOrigin(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
