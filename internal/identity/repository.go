package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/syno-oncall/oncall/internal/infra"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when inserting a user whose id or name is taken.
	ErrUserExists = errors.New("user exists")
	// ErrModeNotFound is returned when a contact mode name is unknown.
	ErrModeNotFound = errors.New("contact mode not found")
)

// Repository persists users and their contacts.
type Repository interface {
	FindByID(ctx context.Context, id int64) (User, error)
	FindByName(ctx context.Context, name string) (User, error)
	// Create inserts the user together with an empty contact row for each mode id.
	Create(ctx context.Context, user User, contactModes []int) error
	UpdatePasswordHash(ctx context.Context, id int64, hash []byte) error
	Contacts(ctx context.Context, userID int64) ([]Contact, error)
	SetContact(ctx context.Context, userID int64, mode, destination string) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed user repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, name, full_name, active, password_hash, created_at`

// FindByID fetches a user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM "user" WHERE id = $1`, id))
}

// FindByName fetches a user by login name.
func (r *PostgresRepository) FindByName(ctx context.Context, name string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM "user" WHERE name = $1`, name))
}

// Create inserts a user and its seed contacts in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, user User, contactModes []int) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `INSERT INTO "user" (id, name, full_name, active, password_hash, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, user.ID, user.Name, user.FullName, user.Active, user.PasswordHash, user.CreatedAt.UTC()); err != nil {
		if infra.IsUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}

	for _, modeID := range contactModes {
		if _, err := tx.Exec(ctx, `INSERT INTO user_contact (user_id, mode_id, destination) VALUES ($1, $2, '')`, user.ID, modeID); err != nil {
			return fmt.Errorf("insert contact mode %d: %w", modeID, err)
		}
	}

	return tx.Commit(ctx)
}

// UpdatePasswordHash stores a new bcrypt hash for the user.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id int64, hash []byte) error {
	cmd, err := r.db.Exec(ctx, `UPDATE "user" SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Contacts lists the user's contact destinations ordered by mode id.
func (r *PostgresRepository) Contacts(ctx context.Context, userID int64) ([]Contact, error) {
	rows, err := r.db.Query(ctx, `SELECT c.mode_id, m.name, c.destination
        FROM user_contact c
        INNER JOIN contact_mode m ON m.id = c.mode_id
        WHERE c.user_id = $1
        ORDER BY c.mode_id`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Contact, error) {
		var c Contact
		err := row.Scan(&c.ModeID, &c.Mode, &c.Destination)
		return c, err
	})
}

// SetContact upserts the destination for the named mode.
func (r *PostgresRepository) SetContact(ctx context.Context, userID int64, mode, destination string) error {
	cmd, err := r.db.Exec(ctx, `INSERT INTO user_contact (user_id, mode_id, destination)
        SELECT $1, id, $3 FROM contact_mode WHERE name = $2
        ON CONFLICT (user_id, mode_id) DO UPDATE SET destination = EXCLUDED.destination`, userID, mode, destination)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrModeNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user      User
		createdAt time.Time
	)
	if err := row.Scan(&user.ID, &user.Name, &user.FullName, &user.Active, &user.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	user.CreatedAt = createdAt.UTC()
	return user, nil
}
