package identity

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/syno-oncall/oncall/internal/session"
)

// ModeChecker reports whether a contact mode is enabled.
type ModeChecker interface {
	IsSupported(mode string) bool
}

// Handler exposes user endpoints.
type Handler struct {
	service *Service
	modes   ModeChecker
	logger  *slog.Logger
}

// NewHandler constructs a user HTTP handler.
func NewHandler(service *Service, modes ModeChecker, logger *slog.Logger) *Handler {
	return &Handler{service: service, modes: modes, logger: logger}
}

type userResponse struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	FullName string            `json:"full_name"`
	Active   bool              `json:"active"`
	Contacts map[string]string `json:"contacts"`
}

type contactRequest struct {
	Destination string `json:"destination"`
}

// Get returns a user with its contact destinations keyed by mode.
func (h *Handler) Get(c *fiber.Ctx) error {
	user, contacts, err := h.service.Profile(c.UserContext(), c.Params("name"))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return fiber.NewError(http.StatusNotFound, "user not found")
		}
		h.logger.Error("load user", slog.String("user", c.Params("name")), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "failed to load user")
	}

	out := make(map[string]string, len(contacts))
	for _, contact := range contacts {
		out[contact.Mode] = contact.Destination
	}
	return c.Status(http.StatusOK).JSON(userResponse{
		ID:       user.ID,
		Name:     user.Name,
		FullName: user.FullName,
		Active:   user.Active,
		Contacts: out,
	})
}

// SetContact updates the caller's own destination for one contact mode.
func (h *Handler) SetContact(c *fiber.Ctx) error {
	name := c.Params("name")
	mode := c.Params("mode")
	if session.User(c) != name {
		return fiber.NewError(http.StatusForbidden, "cannot edit another user's contacts")
	}
	if !h.modes.IsSupported(mode) {
		return fiber.NewError(http.StatusBadRequest, "unsupported contact mode")
	}

	var req contactRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	if err := h.service.SetContact(c.UserContext(), name, mode, req.Destination); err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			return fiber.NewError(http.StatusNotFound, "user not found")
		case errors.Is(err, ErrModeNotFound):
			return fiber.NewError(http.StatusBadRequest, "unsupported contact mode")
		default:
			h.logger.Error("set contact", slog.String("user", name), slog.String("mode", mode), slog.Any("error", err))
			return fiber.NewError(http.StatusInternalServerError, "failed to update contact")
		}
	}
	return c.SendStatus(http.StatusNoContent)
}
