package contact

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads contact modes.
type Repository interface {
	ModeNames(ctx context.Context) ([]string, error)
}

// PostgresRepository reads contact modes from PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed mode repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ModeNames returns every contact mode name in id order.
func (r *PostgresRepository) ModeNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT name FROM contact_mode ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

type staticRepository struct {
	modes []Mode
}

// NewStaticRepository serves a fixed mode list; DefaultModes when none given.
func NewStaticRepository(modes ...Mode) Repository {
	if len(modes) == 0 {
		modes = DefaultModes
	}
	return staticRepository{modes: modes}
}

func (r staticRepository) ModeNames(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(r.modes))
	for _, m := range r.modes {
		names = append(names, m.Name)
	}
	return names, nil
}
