package monitor

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blackt666/immoxx--sub004/ratelimit"
)

// ProxyRoute labels proxied traffic outside every known prefix.
const ProxyRoute = "proxy"

var knownMethods = map[string]bool{
	http.MethodGet: true, http.MethodHead: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true, http.MethodOptions: true,
}

// Metrics exports request counters next to the in-memory ring.
type Metrics struct {
	prefixes []string
	registry *prometheus.Registry
	inFlight prometheus.Gauge
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	rejected *prometheus.CounterVec
	events   *prometheus.CounterVec
}

// NewMetrics builds the registry. Proxied requests are labelled with the
// longest matching routePrefix so the route label stays bounded.
func NewMetrics(routePrefixes ...string) *Metrics {
	m := &Metrics{
		prefixes: routePrefixes,
		registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "immoxx_gateway",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "immoxx_gateway",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "immoxx_gateway",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "immoxx_gateway",
			Subsystem: "ratelimit",
			Name:      "rejected_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"category"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "immoxx_gateway",
			Subsystem: "security",
			Name:      "events_total",
			Help:      "Security events emitted.",
		}, []string{"type", "severity"}),
	}

	m.registry.MustRegister(
		m.inFlight,
		m.requests,
		m.duration,
		m.rejected,
		m.events,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Requests() *prometheus.CounterVec {
	return m.requests
}

func (m *Metrics) IncInFlight() { m.inFlight.Inc() }
func (m *Metrics) DecInFlight() { m.inFlight.Dec() }

// ProxiedRoute maps a path no gateway route matched onto a fixed label set.
func (m *Metrics) ProxiedRoute(path string) string {
	best := ""
	for _, prefix := range m.prefixes {
		prefix = strings.TrimRight(prefix, "/")
		if prefix != "" && len(prefix) > len(best) && ratelimit.HasPathPrefix(path, prefix) {
			best = prefix
		}
	}
	if best == "" {
		return ProxyRoute
	}
	return best
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	method = strings.ToUpper(method)
	if !knownMethods[method] {
		method = "OTHER"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) RateLimited(category string) {
	m.rejected.WithLabelValues(category).Inc()
}

func (m *Metrics) SecurityEvent(eventType, severity string) {
	m.events.WithLabelValues(eventType, severity).Inc()
}
