package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultHeaderColor is used when the config file does not set header_color.
	DefaultHeaderColor = "#3a3a3a"

	// AuthModuleSynology imports every unknown SSO user and seeds contact rows.
	AuthModuleSynology = "synology"
	// AuthModuleSynologySSO imports unknown SSO users only when auth.import_user is set.
	AuthModuleSynologySSO = "synology_sso_auth"
)

// Config captures application runtime configuration loaded from environment
// variables and an optional YAML file.
type Config struct {
	AppName        string        `env:"APP_NAME" envDefault:"oncall"`
	AppEnv         string        `env:"APP_ENV" envDefault:"development"`
	Port           string        `env:"PORT" envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ConfigFile     string        `env:"ONCALL_CONFIG"`

	DatabaseURL string   `env:"DATABASE_URL"`
	DB          DBConfig `envPrefix:"DB_"`
	RedisURL    string   `env:"REDIS_URL"`

	SessionSecret          string        `env:"SESSION_SECRET"`
	SessionTTL             time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SecureCookies          bool          `env:"SESSION_SECURE_COOKIE"`
	IdempotencyTTL         time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	LoginAttemptsPerMinute int           `env:"LOGIN_ATTEMPTS_PER_MINUTE" envDefault:"5"`

	SupportedModes []string `env:"SUPPORTED_MODES" envSeparator:","`
	StaticRoot     string   `env:"STATIC_ROOT" envDefault:"ui"`

	Synology SynologyConfig
	Auth     AuthConfig
	UI       UIConfig
}

// DBConfig holds the pieces the database DSN is assembled from.
type DBConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"oncall"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME" envDefault:"oncall"`
	UseSSL   bool   `env:"USE_SSL"`
}

// SynologyConfig describes the Synology SSO provider.
type SynologyConfig struct {
	SSOURL      string `env:"SYNOLOGY_OAUTH_URL"`
	AppID       string `env:"SYNOLOGY_APP_ID"`
	SDKURL      string `env:"SYNOLOGY_SDK_URL"`
	RedirectURI string `env:"SYNOLOGY_REDIRECT_URI"`
}

// AuthConfig selects the SSO module.
type AuthConfig struct {
	Module     string `env:"AUTH_MODULE"`
	ImportUser bool
}

// UIConfig is passed to the index template.
type UIConfig struct {
	SlackInstance                   string
	HeaderColor                     string
	IrisPlanSettings                map[string]any
	PublicCalendarBaseURL           string
	PublicCalendarAdditionalMessage string
	TeamManagedMessage              string
	Footer                          string `env:"FOOTER_CONTENT"`
}

// fileConfig mirrors the YAML config file layout.
type fileConfig struct {
	SlackInstance                   string         `yaml:"slack_instance"`
	HeaderColor                     string         `yaml:"header_color"`
	IrisPlanIntegration             map[string]any `yaml:"iris_plan_integration"`
	PublicCalendarBaseURL           string         `yaml:"public_calendar_base_url"`
	PublicCalendarAdditionalMessage string         `yaml:"public_calendar_additional_message"`
	TeamManagedMessage              string         `yaml:"team_managed_message"`
	Auth                            struct {
		Module     string `yaml:"module"`
		ImportUser bool   `yaml:"import_user"`
	} `yaml:"auth"`
	Synology struct {
		SSOURL string `yaml:"sso_url"`
		AppID  string `yaml:"app_id"`
	} `yaml:"synology"`
	DB struct {
		Conn struct {
			UseSSL bool `yaml:"use_ssl"`
		} `yaml:"conn"`
	} `yaml:"db"`
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(nil)
}

// LoadFrom reads configuration from the given environment map. A nil map
// means the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.SupportedModes = normalizeModes(cfg.SupportedModes)

	if cfg.ConfigFile != "" {
		file, err := loadFile(cfg.ConfigFile)
		if err != nil {
			return Config{}, err
		}
		cfg.merge(file)
	}
	if cfg.UI.HeaderColor == "" {
		cfg.UI.HeaderColor = DefaultHeaderColor
	}

	switch cfg.Auth.Module {
	case "", AuthModuleSynology, AuthModuleSynologySSO:
	default:
		return Config{}, fmt.Errorf("unknown auth module %q", cfg.Auth.Module)
	}
	if cfg.Auth.Module != "" && cfg.Synology.SSOURL == "" {
		return Config{}, fmt.Errorf("auth module %s requires SYNOLOGY_OAUTH_URL or synology.sso_url", cfg.Auth.Module)
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	if cfg.SessionSecret == "" {
		if !cfg.IsDev() {
			return Config{}, fmt.Errorf("SESSION_SECRET must be set when APP_ENV=%s", cfg.AppEnv)
		}
		secret, err := randomSecret()
		if err != nil {
			return Config{}, err
		}
		cfg.SessionSecret = secret
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func (c *Config) merge(file fileConfig) {
	c.UI.SlackInstance = file.SlackInstance
	c.UI.HeaderColor = file.HeaderColor
	c.UI.IrisPlanSettings = file.IrisPlanIntegration
	c.UI.PublicCalendarBaseURL = file.PublicCalendarBaseURL
	c.UI.PublicCalendarAdditionalMessage = file.PublicCalendarAdditionalMessage
	c.UI.TeamManagedMessage = file.TeamManagedMessage

	if c.Auth.Module == "" {
		c.Auth.Module = file.Auth.Module
	}
	c.Auth.ImportUser = file.Auth.ImportUser

	// environment wins over the file for provider settings
	if c.Synology.SSOURL == "" {
		c.Synology.SSOURL = file.Synology.SSOURL
	}
	if c.Synology.AppID == "" {
		c.Synology.AppID = file.Synology.AppID
	}

	c.DB.UseSSL = c.DB.UseSSL || file.DB.Conn.UseSSL
}

func loadFile(path string) (fileConfig, error) {
	var file fileConfig
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return file, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse config file: %w", err)
	}
	return file, nil
}

func normalizeModes(modes []string) []string {
	out := make([]string, 0, len(modes))
	for _, m := range modes {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
