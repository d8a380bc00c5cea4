package ui

import (
	"bytes"
	"embed"
	"html/template"

	"github.com/syno-oncall/oncall/internal/contact"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	indexTemplate  = "index.html"
	splashTemplate = "loginsplash.html"
)

// SplashData feeds loginsplash.html.
type SplashData struct {
	SynologySDKURL string
	OAuthServerURL string
	AppID          string
	RedirectURI    string
	Nonce          string
}

// IndexData feeds index.html.
type IndexData struct {
	User                            string
	CSRFToken                       string
	SlackInstance                   string
	HeaderColor                     string
	IrisPlanSettings                map[string]any
	PublicCalendarBaseURL           string
	PublicCalendarAdditionalMessage string
	Footer                          string
	Timezones                       []string
	Modes                           []contact.ModeInfo
	TeamManagedMessage              string
	Nonce                           string
}

// Templates renders the embedded pages.
type Templates struct {
	set *template.Template
}

// ParseTemplates loads the embedded templates.
func ParseTemplates() (*Templates, error) {
	set, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Templates{set: set}, nil
}

// Render executes the named template into a buffer so errors never leave a
// half written page.
func (t *Templates) Render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.set.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
