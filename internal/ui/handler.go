package ui

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/syno-oncall/oncall/internal/auth"
	"github.com/syno-oncall/oncall/internal/config"
	"github.com/syno-oncall/oncall/internal/contact"
	"github.com/syno-oncall/oncall/internal/identity"
	"github.com/syno-oncall/oncall/internal/middleware"
	"github.com/syno-oncall/oncall/internal/session"
)

// Handler renders the single page shell or the login splash.
type Handler struct {
	cfg       config.Config
	auth      auth.Authenticator
	sessions  *session.Store
	modes     *contact.Service
	templates *Templates
	secret    []byte
	logger    *slog.Logger
}

// NewHandler constructs the UI handler. authenticator may be nil when no SSO
// module is configured.
func NewHandler(cfg config.Config, authenticator auth.Authenticator, sessions *session.Store, modes *contact.Service, templates *Templates, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		auth:      authenticator,
		sessions:  sessions,
		modes:     modes,
		templates: templates,
		secret:    []byte(cfg.SessionSecret),
		logger:    logger,
	}
}

// Index tries SSO first, then the session user, and falls back to the login
// splash.
func (h *Handler) Index(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		h.logger.Error("load session", slog.Any("error", err))
		return h.splash(c)
	}

	user := h.ssoUser(c, sess)
	if user == "" {
		user = sess.Get(session.KeyUser)
	}
	if user == "" {
		return h.splash(c)
	}

	modes, err := h.modes.Supported(c.UserContext())
	if err != nil {
		h.logger.Error("list contact modes", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "failed to render page")
	}

	headerColor := h.cfg.UI.HeaderColor
	if headerColor == "" {
		headerColor = config.DefaultHeaderColor
	}
	return h.render(c, indexTemplate, IndexData{
		User:                            user,
		CSRFToken:                       auth.SignCSRF(sess.ID(), h.secret),
		SlackInstance:                   h.cfg.UI.SlackInstance,
		HeaderColor:                     headerColor,
		IrisPlanSettings:                h.cfg.UI.IrisPlanSettings,
		PublicCalendarBaseURL:           h.cfg.UI.PublicCalendarBaseURL,
		PublicCalendarAdditionalMessage: h.cfg.UI.PublicCalendarAdditionalMessage,
		Footer:                          h.cfg.UI.Footer,
		Timezones:                       SupportedTimezones,
		Modes:                           modes,
		TeamManagedMessage:              h.cfg.UI.TeamManagedMessage,
		Nonce:                           middleware.NonceFrom(c),
	})
}

// ssoUser authenticates the session's SSO token and pins the result to the
// session so API calls see the same user.
func (h *Handler) ssoUser(c *fiber.Ctx, sess *session.Session) string {
	if h.auth == nil {
		return ""
	}
	name, err := h.auth.Authenticate(c.UserContext(), sess)
	if err != nil {
		h.logger.Warn("sso authentication failed", slog.Any("error", err))
		if errors.Is(err, auth.ErrTokenRejected) || errors.Is(err, identity.ErrUserNotFound) {
			h.dropSSO(c, sess)
		}
		return ""
	}
	if name == "" {
		return ""
	}
	if sess.Get(session.KeyUser) != name || sess.Get(session.KeySSOUser) != name {
		sess.Set(session.KeyUser, name)
		sess.Set(session.KeySSOUser, name)
		if err := h.sessions.Save(c, sess); err != nil {
			h.logger.Error("save session", slog.Any("error", err))
		}
	}
	return name
}

// dropSSO forgets the access token and any user the token logged in. A user
// set by local login survives.
func (h *Handler) dropSSO(c *fiber.Ctx, sess *session.Session) {
	sess.Delete(session.KeyAccessToken)
	if pinned := sess.Get(session.KeySSOUser); pinned != "" {
		if sess.Get(session.KeyUser) == pinned {
			sess.Delete(session.KeyUser)
		}
		sess.Delete(session.KeySSOUser)
	}
	if err := h.sessions.Save(c, sess); err != nil {
		h.logger.Error("save session", slog.Any("error", err))
	}
}

func (h *Handler) splash(c *fiber.Ctx) error {
	return h.render(c, splashTemplate, SplashData{
		SynologySDKURL: h.cfg.Synology.SDKURL,
		OAuthServerURL: h.cfg.Synology.SSOURL,
		AppID:          h.cfg.Synology.AppID,
		RedirectURI:    h.cfg.Synology.RedirectURI,
		Nonce:          middleware.NonceFrom(c),
	})
}

func (h *Handler) render(c *fiber.Ctx, name string, data any) error {
	page, err := h.templates.Render(name, data)
	if err != nil {
		h.logger.Error("render template", slog.String("template", name), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "failed to render page")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(http.StatusOK).Send(page)
}
