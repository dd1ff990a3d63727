// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal_session"

// Registry is the registry every collector in this package is registered with.
var Registry = prometheus.NewRegistry()

var (
	SessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Embed sessions created.",
	})

	SessionsUpgraded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_upgraded_total",
		Help:      "Sessions moved to the active state.",
	})

	TokensMinted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_minted_total",
		Help:      "JWTs minted, by authentication state.",
	}, []string{"authentication_state"})

	TokenVerifyFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_verify_failures_total",
		Help:      "JWT verifications that failed, by error kind.",
	}, []string{"kind"})

	OTCAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otc_attempts_total",
		Help:      "One-time-code verification attempts, by outcome.",
	}, []string{"outcome"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route pattern and status code.",
	}, []string{"route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency, by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		SessionsCreated,
		SessionsUpgraded,
		TokensMinted,
		TokenVerifyFailures,
		OTCAttempts,
		HTTPRequests,
		HTTPDuration,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
