package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/syno-oncall/oncall/internal/ui"
)

// RegisterUIRoutes serves static assets and routes everything else to the
// page shell. It must be registered last.
func RegisterUIRoutes(app *fiber.App, h *ui.Handler, staticRoot string, nonce fiber.Handler) {
	for _, dir := range []string{"/static/bundles", "/static/images", "/static/fonts"} {
		app.Get(dir+"/:filename", ui.Static(staticRoot, dir))
	}
	app.Get("/*", nonce, h.Index)
}
