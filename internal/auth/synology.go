package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/syno-oncall/oncall/internal/identity"
	"github.com/syno-oncall/oncall/internal/metrics"
)

const (
	exchangePath     = "/webman/sso/SSOAccessToken.cgi"
	maxResponseBytes = 1 << 20
)

var (
	// ErrTokenRejected means the provider answered success=false.
	ErrTokenRejected = errors.New("sso token rejected")
	// ErrIncompleteIdentity means the provider omitted user_id or user_name.
	ErrIncompleteIdentity = errors.New("sso response missing user_id or user_name")
)

// Exchanger trades an SSO access token for the identity it belongs to.
type Exchanger interface {
	Exchange(ctx context.Context, accessToken string) (identity.External, error)
}

// SynologyClient talks to the Synology SSO server.
type SynologyClient struct {
	endpoint string
	appID    string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[identity.External]
	logger   *slog.Logger
}

// NewSynologyClient builds a client for the SSO server at baseURL.
func NewSynologyClient(baseURL, appID string, httpClient *http.Client, logger *slog.Logger) *SynologyClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	c := &SynologyClient{
		endpoint: strings.TrimRight(baseURL, "/") + exchangePath,
		appID:    appID,
		http:     httpClient,
		logger:   logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[identity.External](gobreaker.Settings{
		Name:        "synology-sso",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a rejected token is a healthy provider
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrTokenRejected) || errors.Is(err, ErrIncompleteIdentity)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("sso circuit breaker state change", slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return c
}

type exchangeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		UserID   flexibleID `json:"user_id"`
		UserName string     `json:"user_name"`
	} `json:"data"`
	Error struct {
		Code int `json:"code"`
	} `json:"error"`
}

// Exchange validates the access token with the provider.
func (c *SynologyClient) Exchange(ctx context.Context, accessToken string) (identity.External, error) {
	ext, err := c.breaker.Execute(func() (identity.External, error) {
		return c.exchange(ctx, accessToken)
	})
	switch {
	case err == nil:
		metrics.SSOExchanges.WithLabelValues(metrics.SSOSuccess).Inc()
	case errors.Is(err, ErrTokenRejected):
		metrics.SSOExchanges.WithLabelValues(metrics.SSORejected).Inc()
	case errors.Is(err, ErrIncompleteIdentity):
		metrics.SSOExchanges.WithLabelValues(metrics.SSOIncomplete).Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.SSOExchanges.WithLabelValues(metrics.SSOBreakerOpen).Inc()
	default:
		metrics.SSOExchanges.WithLabelValues(metrics.SSOError).Inc()
	}
	return ext, err
}

func (c *SynologyClient) exchange(ctx context.Context, accessToken string) (identity.External, error) {
	params := url.Values{
		"action":       {"exchange"},
		"access_token": {accessToken},
		"app_id":       {c.appID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return identity.External{}, fmt.Errorf("build sso request: %w", err)
	}

	c.logger.Debug("validating access token with synology sso", slog.String("url", c.endpoint), slog.String("app_id", c.appID))
	resp, err := c.http.Do(req)
	if err != nil {
		return identity.External{}, fmt.Errorf("sso request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return identity.External{}, fmt.Errorf("read sso response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return identity.External{}, fmt.Errorf("sso response status %d", resp.StatusCode)
	}

	var payload exchangeResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return identity.External{}, fmt.Errorf("decode sso response: %w", err)
	}
	if !payload.Success {
		return identity.External{}, fmt.Errorf("%w (code %d)", ErrTokenRejected, payload.Error.Code)
	}
	if payload.Data.UserID == 0 || payload.Data.UserName == "" {
		return identity.External{}, ErrIncompleteIdentity
	}
	return identity.External{ID: int64(payload.Data.UserID), Name: payload.Data.UserName}, nil
}

// flexibleID accepts user ids encoded as JSON numbers or strings.
type flexibleID int64

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("user_id %q is not numeric", raw)
	}
	*f = flexibleID(id)
	return nil
}
