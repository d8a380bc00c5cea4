package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials hides whether the name or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInactive is returned for deactivated users.
	ErrInactive = errors.New("user is inactive")
)

const minPasswordLength = 8

// ReconcileOptions controls what happens to identities unknown locally.
type ReconcileOptions struct {
	// Import inserts unknown identities as active users.
	Import bool
	// SeedModes lists contact mode ids that get an empty row for new users.
	SeedModes []int
}

// Service manages the user lifecycle.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Reconcile looks up an SSO identity in the users table and inserts it when
// absent and importing is allowed. The boolean reports whether a user was
// created.
func (s *Service) Reconcile(ctx context.Context, ext External, opts ReconcileOptions) (User, bool, error) {
	user, err := s.repo.FindByID(ctx, ext.ID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, false, fmt.Errorf("find user %d: %w", ext.ID, err)
	}
	if !opts.Import {
		return User{}, false, ErrUserNotFound
	}

	user = User{
		ID:        ext.ID,
		Name:      ext.Name,
		FullName:  ext.Name,
		Active:    true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, user, opts.SeedModes); err != nil {
		if errors.Is(err, ErrUserExists) {
			// a concurrent login imported the same identity
			existing, findErr := s.repo.FindByID(ctx, ext.ID)
			if findErr == nil {
				return existing, false, nil
			}
		}
		return User{}, false, fmt.Errorf("import user %d: %w", ext.ID, err)
	}
	return user, true, nil
}

// Authenticate verifies a local password login.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	user, err := s.repo.FindByName(ctx, creds.Name)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if len(user.PasswordHash) == 0 {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !user.Active {
		return User{}, ErrInactive
	}
	return user, nil
}

// SetPassword stores a bcrypt hash of password for the named user.
func (s *Service) SetPassword(ctx context.Context, name, password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	user, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePasswordHash(ctx, user.ID, hash)
}

// Profile returns a user with its contacts.
func (s *Service) Profile(ctx context.Context, name string) (User, []Contact, error) {
	user, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return User{}, nil, err
	}
	contacts, err := s.repo.Contacts(ctx, user.ID)
	if err != nil {
		return User{}, nil, fmt.Errorf("list contacts: %w", err)
	}
	return user, contacts, nil
}

// SetContact updates the destination of one contact mode.
func (s *Service) SetContact(ctx context.Context, name, mode, destination string) error {
	user, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return err
	}
	return s.repo.SetContact(ctx, user.ID, mode, destination)
}
