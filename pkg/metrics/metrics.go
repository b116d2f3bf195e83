// Package metrics holds the per-process Prometheus registry. Each service
// constructs its own Registry at startup so tests can run against independent
// instances instead of the package-global default.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DurationBuckets covers the latency range we care about: fast cache hits up
// to multi-second saga calls.
var DurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type Registry struct {
	reg       *prometheus.Registry
	wrapped   prometheus.Registerer
	service   string
	startedAt time.Time

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewRegistry builds a registry with the runtime collectors (memory, CPU,
// uptime) already registered and a constant service label merged into every
// sample.
func NewRegistry(service string) *Registry {
	reg := prometheus.NewRegistry()
	wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"service": service}, reg)

	m := &Registry{
		reg:       reg,
		wrapped:   wrapped,
		service:   service,
		startedAt: time.Now(),
	}

	wrapped.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	wrapped.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "process_uptime_seconds",
		Help: "Seconds since the service started.",
	}, func() float64 { return time.Since(m.startedAt).Seconds() }))

	m.RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests handled, by method, matched route and status.",
	}, []string{"method", "route", "status"})

	m.RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration from receipt to response completion.",
		Buckets: DurationBuckets,
	}, []string{"method", "route", "status"})

	m.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total lookups served from the in-process cache.",
	})

	m.CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache lookups that fell through to the database.",
	})

	wrapped.MustRegister(m.RequestsTotal, m.RequestDuration, m.CacheHits, m.CacheMisses)

	return m
}

// Registerer exposes the label-wrapped registerer so services can add their
// own domain metrics. Registering a name twice fails with
// prometheus.AlreadyRegisteredError.
func (m *Registry) Registerer() prometheus.Registerer {
	return m.wrapped
}

func (m *Registry) Gatherer() prometheus.Gatherer {
	return m.reg
}

func (m *Registry) Service() string {
	return m.service
}

func (m *Registry) Uptime() time.Duration {
	return time.Since(m.startedAt)
}

// Handler renders the text exposition format for GET /metrics.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
