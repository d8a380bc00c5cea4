package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// BootstrapConfig drives the container entrypoint that prepares the database
// before the server starts.
type BootstrapConfig struct {
	LogLevel      string   `env:"LOG_LEVEL" envDefault:"info"`
	ConfigFile    string   `env:"ONCALL_CONFIG"`
	DatabaseURL   string   `env:"DATABASE_URL"`
	DB            DBConfig `envPrefix:"DB_"`
	Bootstrap     string   `env:"DOCKER_DB_BOOTSTRAP" envDefault:"1"`
	SQLDir        string   `env:"DB_PATH" envDefault:"/home/oncall/db"`
	MarkerFile    string   `env:"INITIALIZED_FILE" envDefault:"/home/oncall/db_initialized"`
	ServerBinary  string   `env:"ONCALL_SERVER_BIN" envDefault:"/home/oncall/bin/oncall"`
	MaintenanceDB string   `env:"DB_MAINTENANCE_NAME" envDefault:"postgres"`
}

// BootstrapEnabled reports whether the SQL files should be loaded. Only an
// explicit "0" disables it.
func (b BootstrapConfig) BootstrapEnabled() bool {
	return strings.TrimSpace(b.Bootstrap) != "0"
}

// LoadBootstrap reads the entrypoint settings from the process environment.
func LoadBootstrap() (BootstrapConfig, error) {
	return LoadBootstrapFrom(nil)
}

// LoadBootstrapFrom reads the entrypoint settings from environ, or the
// process environment when environ is nil.
func LoadBootstrapFrom(environ map[string]string) (BootstrapConfig, error) {
	var cfg BootstrapConfig
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return BootstrapConfig{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if cfg.ConfigFile != "" {
		file, err := loadFile(cfg.ConfigFile)
		if err != nil {
			return BootstrapConfig{}, err
		}
		cfg.DB.UseSSL = cfg.DB.UseSSL || file.DB.Conn.UseSSL
	}
	return cfg, nil
}
