package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/syno-oncall/oncall/internal/logging"
)

func newSSOServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != exchangePath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("action") != "exchange" || q.Get("app_id") != "app-1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("access_token") == "" {
			t.Errorf("missing access_token")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestExchangeSuccess(t *testing.T) {
	srv, calls := newSSOServer(t, http.StatusOK, `{"success":true,"data":{"user_id":1026,"user_name":"alice"}}`)
	client := NewSynologyClient(srv.URL+"/", "app-1", srv.Client(), logging.Discard())

	ext, err := client.Exchange(context.Background(), "tok")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if ext.ID != 1026 || ext.Name != "alice" {
		t.Fatalf("unexpected identity %+v", ext)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one call, got %d", calls.Load())
	}
}

func TestExchangeStringUserID(t *testing.T) {
	srv, _ := newSSOServer(t, http.StatusOK, `{"success":true,"data":{"user_id":"77","user_name":"bob"}}`)
	client := NewSynologyClient(srv.URL, "app-1", srv.Client(), logging.Discard())

	ext, err := client.Exchange(context.Background(), "tok")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if ext.ID != 77 {
		t.Fatalf("expected id 77, got %d", ext.ID)
	}
}

func TestExchangeFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rejected", http.StatusOK, `{"success":false,"error":{"code":1}}`, ErrTokenRejected},
		{"missing name", http.StatusOK, `{"success":true,"data":{"user_id":5}}`, ErrIncompleteIdentity},
		{"missing id", http.StatusOK, `{"success":true,"data":{"user_name":"x"}}`, ErrIncompleteIdentity},
		{"server error", http.StatusBadGateway, `oops`, nil},
		{"bad json", http.StatusOK, `{`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newSSOServer(t, tc.status, tc.body)
			client := NewSynologyClient(srv.URL, "app-1", srv.Client(), logging.Discard())

			_, err := client.Exchange(context.Background(), "tok")
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestExchangeBreakerOpensOnTransportFailures(t *testing.T) {
	srv, calls := newSSOServer(t, http.StatusInternalServerError, "")
	client := NewSynologyClient(srv.URL, "app-1", srv.Client(), logging.Discard())

	for i := 0; i < 8; i++ {
		_, _ = client.Exchange(context.Background(), "tok")
	}
	if got := calls.Load(); got != 5 {
		t.Fatalf("expected breaker to stop calls after 5 failures, got %d", got)
	}
}

func TestExchangeRejectionsKeepBreakerClosed(t *testing.T) {
	srv, calls := newSSOServer(t, http.StatusOK, `{"success":false}`)
	client := NewSynologyClient(srv.URL, "app-1", srv.Client(), logging.Discard())

	for i := 0; i < 8; i++ {
		_, _ = client.Exchange(context.Background(), "tok")
	}
	if got := calls.Load(); got != 8 {
		t.Fatalf("expected every rejection to reach the provider, got %d", got)
	}
}
