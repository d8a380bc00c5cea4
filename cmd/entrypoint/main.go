// Package main prepares the database on first start and then replaces itself
// with the oncall server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jackc/pgx/v5"

	"github.com/syno-oncall/oncall/internal/bootstrap"
	"github.com/syno-oncall/oncall/internal/config"
	"github.com/syno-oncall/oncall/internal/infra"
	"github.com/syno-oncall/oncall/internal/logging"
)

func main() {
	cfg, err := config.LoadBootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, "oncall-entrypoint")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := prepare(ctx, cfg, logger); err != nil {
		logger.Error("bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}
	stop()

	argv := append([]string{cfg.ServerBinary}, os.Args[1:]...)
	logger.Info("starting server", slog.String("binary", cfg.ServerBinary))
	if err := syscall.Exec(cfg.ServerBinary, argv, os.Environ()); err != nil {
		logger.Error("exec server", slog.String("binary", cfg.ServerBinary), slog.Any("error", err))
		os.Exit(1)
	}
}

func prepare(ctx context.Context, cfg config.BootstrapConfig, logger *slog.Logger) error {
	addr := net.JoinHostPort(cfg.DB.Host, strconv.Itoa(cfg.DB.Port))
	if cfg.DatabaseURL != "" {
		parsed, err := pgx.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("parse DATABASE_URL: %w", err)
		}
		addr = net.JoinHostPort(parsed.Host, strconv.Itoa(int(parsed.Port)))
	}
	if err := bootstrap.WaitForTCP(ctx, addr, bootstrap.WaitOptions{Logger: logger}); err != nil {
		return err
	}

	if !cfg.BootstrapEnabled() {
		logger.Info("database bootstrap disabled")
		return nil
	}
	if bootstrap.Initialized(cfg.MarkerFile) {
		logger.Info("database already initialized", slog.String("marker", cfg.MarkerFile))
		return nil
	}

	dsn := cfg.DatabaseURL
	if dsn == "" {
		if err := bootstrap.EnsureDatabase(ctx, infra.DSNFor(cfg.DB, cfg.MaintenanceDB), cfg.DB.Name, logger); err != nil {
			return err
		}
		dsn = infra.DSN(cfg.DB)
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer conn.Close(context.Background())

	loader := &bootstrap.Loader{
		Dir:        cfg.SQLDir,
		MarkerPath: cfg.MarkerFile,
		Runner:     conn,
		Logger:     logger,
	}
	return loader.Initialize(ctx)
}
