package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SSO exchange outcomes.
const (
	SSOSuccess     = "success"
	SSORejected    = "rejected"
	SSOIncomplete  = "incomplete"
	SSOError       = "error"
	SSOBreakerOpen = "breaker_open"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oncall_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oncall_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	SSOExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oncall_sso_exchanges_total",
			Help: "Synology SSO token exchanges by outcome",
		},
		[]string{"result"},
	)

	UsersImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oncall_sso_users_imported_total",
			Help: "Users created from SSO identities",
		},
	)

	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oncall_logins_total",
			Help: "Local password logins by outcome",
		},
		[]string{"result"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
