package service

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/contrail/pkg/jobs"
)

const metricsNamespace = "contrail"

// MetricsService owns the Prometheus collectors of the mock backend. Every
// method is safe on a nil receiver so services can run without metrics.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requests   *prometheus.HistogramVec
	cacheReads *prometheus.HistogramVec
	cacheWrite prometheus.Histogram
	logins     *prometheus.CounterVec
	exports    *prometheus.HistogramVec
	audits     *prometheus.CounterVec
	bonuses    *prometheus.CounterVec

	hits, lookups atomic.Uint64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	m := &MetricsService{registry: prometheus.NewRegistry()}

	m.requests = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP requests by API surface, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"surface", "method", "route", "status"})

	m.cacheReads = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "dashboard_cache",
		Name:      "lookup_seconds",
		Help:      "Dashboard cache lookups by result.",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1},
	}, []string{"result"})

	m.cacheWrite = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "dashboard_cache",
		Name:      "store_seconds",
		Help:      "Dashboard cache writes.",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1},
	})

	hitRatio := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "dashboard_cache",
		Name:      "hit_ratio",
		Help:      "Share of dashboard lookups served from cache since start.",
	}, m.hitRatio)

	m.logins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "logins_total",
		Help:      "Login attempts by account kind and outcome.",
	}, []string{"kind", "outcome"})

	m.exports = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "export_duration_seconds",
		Help:      "Department archive builds by final status.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"status"})

	m.audits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "certificate_audits_total",
		Help:      "Certificate review decisions by action.",
	}, []string{"action"})

	m.bonuses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "score_bonuses_total",
		Help:      "Attendance bonuses granted by rule.",
	}, []string{"rule"})

	m.registry.MustRegister(
		m.requests, m.cacheReads, m.cacheWrite, hitRatio,
		m.logins, m.exports, m.audits, m.bonuses,
		collectors.NewGoCollector(),
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return m
}

func (m *MetricsService) hitRatio() float64 {
	lookups := m.lookups.Load()
	if lookups == 0 {
		return 0
	}
	return float64(m.hits.Load()) / float64(lookups)
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// WatchQueue exports the backlog and outcome counters of a job queue.
func (m *MetricsService) WatchQueue(name string, stats func() jobs.Stats) {
	if m == nil || stats == nil {
		return
	}
	labels := prometheus.Labels{"queue": name}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "queue",
			Name:        "backlog",
			Help:        "Jobs waiting for a worker.",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Backlog) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "queue",
			Name:        "failed_total",
			Help:        "Jobs abandoned after retries or shutdown.",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Failed) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "queue",
			Name:        "retried_total",
			Help:        "Job retries scheduled.",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Retried) }),
	)
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(surface, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(surface, method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordCacheOperation records a dashboard cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
		m.hits.Add(1)
	}
	m.lookups.Add(1)
	m.cacheReads.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveCacheWrite records a dashboard cache store.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordLogin counts a login attempt. kind is admin or student.
func (m *MetricsService) RecordLogin(kind string, success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.logins.WithLabelValues(kind, outcome).Inc()
}

// RecordExport records a finished export and how long it took.
func (m *MetricsService) RecordExport(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordAudit counts a certificate review decision.
func (m *MetricsService) RecordAudit(action string) {
	if m == nil {
		return
	}
	m.audits.WithLabelValues(action).Inc()
}

// RecordBonus counts bonuses granted by one sweep.
func (m *MetricsService) RecordBonus(rule string, granted int) {
	if m == nil {
		return
	}
	m.bonuses.WithLabelValues(rule).Add(float64(granted))
}
