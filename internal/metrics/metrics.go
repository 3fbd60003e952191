// Package metrics exposes login counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// Metrics is nil safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	registry      *prometheus.Registry
	attempts      *prometheus.CounterVec
	results       *prometheus.CounterVec
	tokenRequests *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_login_attempts_total",
			Help: "Login attempts started, by provider and flow.",
		}, []string{"provider", "flow"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_login_results_total",
			Help: "Login attempts settled, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		tokenRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_login_token_requests_total",
			Help: "Token endpoint requests, by provider, grant type and HTTP status.",
		}, []string{"provider", "grant", "status"}),
	}
	m.registry.MustRegister(m.attempts, m.results, m.tokenRequests)
	return m
}

func (m *Metrics) LoginAttempt(provider, flow string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(provider, flow).Inc()
}

func (m *Metrics) LoginResult(provider, outcome string) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(provider, outcome).Inc()
}

// TokenRequest counts a token endpoint call. A zero status means no HTTP response was received.
func (m *Metrics) TokenRequest(provider, grant string, status int) {
	if m == nil {
		return
	}
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	m.tokenRequests.WithLabelValues(provider, grant, label).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
