package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/syno-oncall/oncall/internal/identity"
	"github.com/syno-oncall/oncall/internal/metrics"
	"github.com/syno-oncall/oncall/internal/session"
)

// Handler exposes the login endpoints.
type Handler struct {
	users    *identity.Service
	sessions *session.Store
	secret   []byte
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs an auth handler.
func NewHandler(users *identity.Service, sessions *session.Store, secret []byte, logger *slog.Logger) *Handler {
	return &Handler{
		users:    users,
		sessions: sessions,
		secret:   secret,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

type loginRequest struct {
	Username string `form:"username" json:"username" validate:"required,max=255"`
	Password string `form:"password" json:"password" validate:"required,max=1024"`
}

// Response handles the SSO provider redirect carrying the access token.
func (h *Handler) Response(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return fiber.NewError(http.StatusBadRequest, "Invalid login attempt: Missing token")
	}

	sess, err := h.sessions.Get(c)
	if err != nil {
		h.logger.Error("load session", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "session unavailable")
	}
	sess.Set(session.KeyAccessToken, token)
	if err := h.sessions.Save(c, sess); err != nil {
		h.logger.Error("save session", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "session unavailable")
	}
	return c.Redirect("/", http.StatusFound)
}

// Login authenticates a local password and starts a session.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "username and password are required")
	}

	user, err := h.users.Authenticate(c.UserContext(), identity.Credentials{Name: req.Username, Password: req.Password})
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			metrics.Logins.WithLabelValues("invalid").Inc()
			return fiber.NewError(http.StatusUnauthorized, "Invalid username or password")
		case errors.Is(err, identity.ErrInactive):
			metrics.Logins.WithLabelValues("inactive").Inc()
			return fiber.NewError(http.StatusForbidden, "User is inactive")
		default:
			h.logger.Error("authenticate", slog.String("user", req.Username), slog.Any("error", err))
			return fiber.NewError(http.StatusInternalServerError, "login failed")
		}
	}

	sess, err := h.sessions.Get(c)
	if err != nil {
		h.logger.Error("load session", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "session unavailable")
	}
	if err := sess.Regenerate(); err != nil {
		return fiber.NewError(http.StatusInternalServerError, "session unavailable")
	}
	sess.Set(session.KeyUser, user.Name)
	sess.Delete(session.KeySSOUser)
	if err := h.sessions.Save(c, sess); err != nil {
		h.logger.Error("save session", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "session unavailable")
	}

	metrics.Logins.WithLabelValues("success").Inc()
	h.logger.Info("user logged in", slog.String("user", user.Name))
	return c.Status(http.StatusOK).JSON(fiber.Map{"csrf_token": SignCSRF(sess.ID(), h.secret)})
}

// Logout destroys the current session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		h.logger.Error("load session", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "session unavailable")
	}
	if err := h.sessions.Destroy(c, sess); err != nil {
		h.logger.Error("destroy session", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "logout failed")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}
