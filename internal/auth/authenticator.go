package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/syno-oncall/oncall/internal/config"
	"github.com/syno-oncall/oncall/internal/contact"
	"github.com/syno-oncall/oncall/internal/identity"
	"github.com/syno-oncall/oncall/internal/metrics"
	"github.com/syno-oncall/oncall/internal/session"
)

// Authenticator resolves the user behind a session. An empty name with a nil
// error means the session carries nothing to authenticate with.
type Authenticator interface {
	Authenticate(ctx context.Context, sess *session.Session) (string, error)
}

// SynologyAuthenticator validates the session's SSO access token and maps the
// returned identity onto the users table.
type SynologyAuthenticator struct {
	client Exchanger
	users  *identity.Service
	opts   identity.ReconcileOptions
	logger *slog.Logger
}

// NewSynologyAuthenticator wires an exchanger to the user store.
func NewSynologyAuthenticator(client Exchanger, users *identity.Service, opts identity.ReconcileOptions, logger *slog.Logger) *SynologyAuthenticator {
	return &SynologyAuthenticator{client: client, users: users, opts: opts, logger: logger}
}

func (a *SynologyAuthenticator) Authenticate(ctx context.Context, sess *session.Session) (string, error) {
	token := sess.Get(session.KeyAccessToken)
	if token == "" {
		return "", nil
	}

	ext, err := a.client.Exchange(ctx, token)
	if err != nil {
		return "", err
	}

	user, created, err := a.users.Reconcile(ctx, ext, a.opts)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return "", fmt.Errorf("user %q is not imported: %w", ext.Name, err)
		}
		return "", err
	}
	if created {
		metrics.UsersImported.Inc()
		a.logger.Info("imported sso user",
			slog.Int64("user_id", user.ID),
			slog.String("user", user.Name),
			slog.Int("seeded_contacts", len(a.opts.SeedModes)),
		)
	}
	return user.Name, nil
}

// New selects the authenticator configured by auth.module. It returns nil
// when no SSO module is enabled.
func New(cfg config.Config, users *identity.Service, httpClient *http.Client, logger *slog.Logger) (Authenticator, error) {
	var opts identity.ReconcileOptions
	switch cfg.Auth.Module {
	case "":
		return nil, nil
	case config.AuthModuleSynology:
		opts = identity.ReconcileOptions{Import: true, SeedModes: contact.SeedModeIDs}
	case config.AuthModuleSynologySSO:
		opts = identity.ReconcileOptions{Import: cfg.Auth.ImportUser}
	default:
		return nil, fmt.Errorf("unknown auth module %q", cfg.Auth.Module)
	}

	logger = logger.With(slog.String("component", "auth"), slog.String("module", cfg.Auth.Module))
	client := NewSynologyClient(cfg.Synology.SSOURL, cfg.Synology.AppID, httpClient, logger)
	return NewSynologyAuthenticator(client, users, opts, logger), nil
}
