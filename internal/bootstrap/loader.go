package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrSchemaLoad wraps a failure to load the base schema.
	ErrSchemaLoad = errors.New("failed to load schema")
	// ErrPatchLoad wraps a failure to load a schema patch.
	ErrPatchLoad = errors.New("failed to load schema patch")
)

const (
	schemaFile = "schema.v0.sql"
	patchDir   = "patches"
	dummyFile  = "dummy_data.sql"
)

// Runner executes SQL scripts. *pgx.Conn and *pgxpool.Pool satisfy it; a
// call without arguments runs over the simple protocol, so a script may hold
// several statements.
type Runner interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Loader applies the SQL dump files in Dir exactly once per database.
type Loader struct {
	Dir        string
	MarkerPath string
	Runner     Runner
	Logger     *slog.Logger
}

// Initialize loads the schema, every patch in lexical order and the dummy
// data, then writes the marker file. Schema and patch failures abort; dummy
// data failures are only logged.
func (l *Loader) Initialize(ctx context.Context) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := l.runFile(ctx, filepath.Join(l.Dir, schemaFile)); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaLoad, err)
	}
	logger.Info("loaded schema", slog.String("file", schemaFile))

	patches, err := l.patches()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPatchLoad, err)
	}
	for _, patch := range patches {
		if err := l.runFile(ctx, patch); err != nil {
			return fmt.Errorf("%w %s: %v", ErrPatchLoad, filepath.Base(patch), err)
		}
		logger.Info("loaded schema patch", slog.String("file", filepath.Base(patch)))
	}

	if err := l.runFile(ctx, filepath.Join(l.Dir, dummyFile)); err != nil {
		logger.Warn("failed to load dummy data", slog.String("file", dummyFile), slog.Any("error", err))
	} else {
		logger.Info("loaded dummy data", slog.String("file", dummyFile))
	}

	if err := WriteMarker(l.MarkerPath); err != nil {
		return err
	}
	logger.Info("database initialized", slog.String("marker", l.MarkerPath))
	return nil
}

func (l *Loader) patches() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(l.Dir, patchDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read patches dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, filepath.Join(l.Dir, patchDir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (l *Loader) runFile(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return nil
	}
	if _, err := l.Runner.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("exec %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Initialized reports whether the marker file exists.
func Initialized(markerPath string) bool {
	_, err := os.Stat(markerPath)
	return err == nil
}

// WriteMarker records that the database has been bootstrapped.
func WriteMarker(markerPath string) error {
	if err := os.MkdirAll(filepath.Dir(markerPath), 0o755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}
	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(markerPath, []byte(stamp), 0o644); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

// EnsureDatabase creates the named database through a maintenance
// connection when it does not exist yet.
func EnsureDatabase(ctx context.Context, maintenanceDSN, name string, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, maintenanceDSN)
	if err != nil {
		return fmt.Errorf("connect maintenance db: %w", err)
	}
	defer conn.Close(context.Background())

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists); err != nil {
		return fmt.Errorf("check database %s: %w", name, err)
	}
	if exists {
		return nil
	}
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	if logger != nil {
		logger.Info("created database", slog.String("database", name))
	}
	return nil
}
