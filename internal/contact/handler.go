package contact

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes contact mode endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a contact mode handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// List returns all supported contact modes.
func (h *Handler) List(c *fiber.Ctx) error {
	modes, err := h.service.Supported(c.UserContext())
	if err != nil {
		h.logger.Error("list contact modes", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "failed to list contact modes")
	}
	return c.Status(http.StatusOK).JSON(modes)
}
