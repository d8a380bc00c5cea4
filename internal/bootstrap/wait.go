package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrDatabaseUnavailable is returned when the database socket never opened.
var ErrDatabaseUnavailable = errors.New("waited too long for DB to come up")

const (
	defaultWaitInterval = 2 * time.Second
	defaultWaitAttempts = 22
	dialTimeout         = 2 * time.Second
)

// DialFunc opens a TCP connection.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// WaitOptions tunes WaitForTCP.
type WaitOptions struct {
	Interval    time.Duration
	MaxAttempts uint
	Dial        DialFunc
	Logger      *slog.Logger
}

// WaitForTCP polls addr until a TCP connection succeeds, sleeping Interval
// between attempts, and gives up after MaxAttempts failed dials.
func WaitForTCP(ctx context.Context, addr string, opts WaitOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = defaultWaitInterval
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = defaultWaitAttempts
	}
	if opts.Dial == nil {
		dialer := &net.Dialer{Timeout: dialTimeout}
		opts.Dial = dialer.DialContext
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		conn, err := opts.Dial(ctx, "tcp", addr)
		if err != nil {
			return struct{}{}, err
		}
		_ = conn.Close()
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(opts.Interval)),
		backoff.WithMaxTries(opts.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			opts.Logger.Info("DB not up yet", slog.String("addr", addr), slog.Int("attempt", attempt), slog.Duration("retry_in", next), slog.Any("error", err))
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s after %d attempts: %v", ErrDatabaseUnavailable, addr, attempt, err)
	}
	opts.Logger.Info("DB is up", slog.String("addr", addr), slog.Int("attempts", attempt))
	return nil
}
