// Package metrics exposes prometheus metrics of http server, auth operations and revocation sweeps.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nkiryanov/calcboard/internal/apperrors"
)

// Auth operation outcomes
const (
	OutcomeOK            = "ok"
	OutcomeMalformed     = "malformed"
	OutcomeExpired       = "expired"
	OutcomeRevoked       = "revoked"
	OutcomeTypeMismatch  = "type_mismatch"
	OutcomeUnverified    = "unverified"
	OutcomeInactive      = "inactive"
	OutcomeNotFound      = "not_found"
	OutcomeCredentials   = "invalid_credentials"
	OutcomeDuplicate     = "duplicate"
	OutcomePolicy        = "policy_violation"
	OutcomeWrongPassword = "wrong_current_password"
	OutcomeError         = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	authOperations *prometheus.CounterVec

	sweeps       *prometheus.CounterVec
	sweptEntries prometheus.Counter
}

// New creates metrics registered in own registry, so instances never collide
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		authOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_operations_total",
				Help: "Auth operations by outcome.",
			},
			[]string{"op", "outcome"},
		),
		sweeps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revocation_sweeps_total",
				Help: "Revocation registry sweeps by outcome.",
			},
			[]string{"outcome"},
		),
		sweptEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "revocation_swept_entries_total",
			Help: "Revocation entries deleted after their tokens expired.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.authOperations,
		m.sweeps,
		m.sweptEntries,
	)

	return m
}

// Prometheus handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Measure requests. Route is the matched ServeMux pattern, not the raw path, to keep labels bounded
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}

		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.code)).Inc()
	})
}

func (m *Metrics) ObserveAuth(op string, err error) {
	m.authOperations.WithLabelValues(op, Outcome(err)).Inc()
}

func (m *Metrics) ObserveSweep(deleted int64, err error) {
	if err != nil {
		m.sweeps.WithLabelValues(OutcomeError).Inc()
		return
	}

	m.sweeps.WithLabelValues(OutcomeOK).Inc()
	m.sweptEntries.Add(float64(deleted))
}

// Outcome label for auth operation error
func Outcome(err error) string {
	outcomes := []struct {
		target  error
		outcome string
	}{
		{apperrors.ErrTokenMalformed, OutcomeMalformed},
		{apperrors.ErrTokenExpired, OutcomeExpired},
		{apperrors.ErrTokenRevoked, OutcomeRevoked},
		{apperrors.ErrTokenTypeMismatch, OutcomeTypeMismatch},
		{apperrors.ErrTokenUnverified, OutcomeUnverified},
		{apperrors.ErrWrongCurrentPassword, OutcomeWrongPassword},
		{apperrors.ErrUserInactive, OutcomeInactive},
		{apperrors.ErrUserNotFound, OutcomeNotFound},
		{apperrors.ErrInvalidCredentials, OutcomeCredentials},
		{apperrors.ErrUserAlreadyExists, OutcomeDuplicate},
		{apperrors.ErrPolicyViolation, OutcomePolicy},
	}

	if err == nil {
		return OutcomeOK
	}
	for _, o := range outcomes {
		if errors.Is(err, o.target) {
			return o.outcome
		}
	}
	return OutcomeError
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
