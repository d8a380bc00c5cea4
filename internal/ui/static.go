package ui

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

var mimeTypes = map[string]string{
	".css":  "text/css",
	".jpg":  "image/jpeg",
	".js":   "text/javascript",
	".png":  "image/png",
	".svg":  "image/svg+xml",
	".ttf":  "application/octet-stream",
	".woff": "application/font-woff",
}

// SecureFilename reduces a user supplied name to a single safe path element.
func SecureFilename(name string) string {
	name = strings.NewReplacer("/", " ", `\`, " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// ContentType maps a file suffix to the served content type.
func ContentType(name string) string {
	if ct, ok := mimeTypes[path.Ext(name)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Static serves files from root/dir by sanitized :filename.
func Static(root, dir string) fiber.Handler {
	base := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(dir, "/")))
	return func(c *fiber.Ctx) error {
		name := SecureFilename(c.Params("filename"))
		if name == "" {
			return fiber.ErrNotFound
		}
		file := filepath.Join(base, name)
		if info, err := os.Stat(file); err != nil || !info.Mode().IsRegular() {
			return fiber.ErrNotFound
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return fiber.ErrNotFound
		}
		c.Set(fiber.HeaderContentType, ContentType(c.Path()))
		return c.Status(http.StatusOK).Send(data)
	}
}
