package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/syno-oncall/oncall/internal/config"
	"github.com/syno-oncall/oncall/internal/identity"
	"github.com/syno-oncall/oncall/internal/infra"
	"github.com/syno-oncall/oncall/internal/logging"
	"github.com/syno-oncall/oncall/internal/server"
	"github.com/syno-oncall/oncall/internal/ui"
)

const usage = `usage:
  oncall                 run the HTTP server
  oncall passwd <user>   set a local login password (read from stdin)
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.AppName)

	ctx := context.Background()

	db, err := infra.NewPostgresPool(ctx, infra.ResolveDSN(cfg))
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "passwd":
			if len(args) != 2 {
				fmt.Fprint(os.Stderr, usage)
				os.Exit(2)
			}
			if err := setPassword(ctx, db, args[1], os.Stdin); err != nil {
				logger.Error("set password", "user", args[1], "error", err)
				os.Exit(1)
			}
			logger.Info("password updated", "user", args[1])
			return
		default:
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
	}

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}()

	if _, err := ui.BuildBundles(cfg.StaticRoot, ui.Bundles, logger); err != nil {
		logger.Warn("build asset bundles", slog.Any("error", err))
	}

	srv, err := server.New(cfg, db, cache, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

func setPassword(ctx context.Context, db *pgxpool.Pool, name string, in io.Reader) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	return identity.NewService(identity.NewPostgresRepository(db)).SetPassword(ctx, name, password)
}
