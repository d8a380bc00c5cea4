package ui

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Bundle concatenates a list of static sources into one output file.
type Bundle struct {
	Name    string
	Output  string
	Sources []string
}

// Bundles served under /static/bundles. Paths are relative to STATIC_ROOT/static.
var Bundles = []Bundle{
	{
		Name:   "libs",
		Output: "bundles/libs.js",
		Sources: []string{
			"js/jquery-3.3.1.min.js", "js/handlebars-4.0.12.min.js", "js/bootstrap.min.js",
			"js/moment.js", "js/moment-timezone.js", "js/moment-tz-data.js",
			"js/typeahead.js", "js/jquery.dataTables.min.js",
		},
	},
	{Name: "oncall_js", Output: "bundles/oncall.bundle.js", Sources: []string{"js/navigo.js", "js/incalendar.js", "js/oncall.js"}},
	{Name: "css_libs", Output: "bundles/libs.css", Sources: []string{"css/bootstrap.min.css", "fonts/Source-Sans-Pro.css", "css/jquery.dataTables.min.css"}},
	{Name: "oncall_css", Output: "bundles/oncall.css", Sources: []string{"css/oncall.css", "css/incalendar.css"}},
	{Name: "loginsplash_css", Output: "bundles/loginsplash.css", Sources: []string{"css/loginsplash.css"}},
	{Name: "loginsplash_js", Output: "bundles/loginsplash.bundle.js", Sources: []string{"js/loginsplash.js"}},
}

// BuildBundles writes every bundle whose sources exist under root/static.
// Bundles with missing sources are skipped with a warning; the number of
// bundles written is returned.
func BuildBundles(root string, bundles []Bundle, logger *slog.Logger) (int, error) {
	staticDir := filepath.Join(root, "static")
	built := 0
	for _, b := range bundles {
		var out bytes.Buffer
		missing := ""
		for _, src := range b.Sources {
			data, err := os.ReadFile(filepath.Join(staticDir, filepath.FromSlash(src)))
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					missing = src
					break
				}
				return built, fmt.Errorf("bundle %s: read %s: %w", b.Name, src, err)
			}
			out.Write(data)
			if len(data) > 0 && data[len(data)-1] != '\n' {
				out.WriteByte('\n')
			}
		}
		if missing != "" {
			logger.Warn("skipping asset bundle", slog.String("bundle", b.Name), slog.String("missing", missing))
			continue
		}

		target := filepath.Join(staticDir, filepath.FromSlash(b.Output))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return built, fmt.Errorf("bundle %s: %w", b.Name, err)
		}
		if err := os.WriteFile(target, out.Bytes(), 0o644); err != nil {
			return built, fmt.Errorf("bundle %s: write: %w", b.Name, err)
		}
		built++
	}
	logger.Info("asset bundles built", slog.Int("built", built), slog.Int("total", len(bundles)))
	return built, nil
}
