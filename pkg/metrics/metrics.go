// Package metrics exposes Prometheus counters for the explanation pipeline.
// Each Metrics value owns its registry so tests and embedded uses do not
// collide with the default one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helmcode/errfriendly/pkg/llm"
)

const namespace = "errfriendly"

// Explanation sources.
const (
	SourceAI     = "ai"
	SourceCache  = "cache"
	SourceStatic = "static"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	explanations    *prometheus.CounterVec
	backendFailures *prometheus.CounterVec
	rateLimited     prometheus.Counter
	chainDepth      prometheus.Histogram
	chainTypes      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		// Labels: source (ai, cache, static)
		explanations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explanations_total",
			Help:      "Explanations produced, by where the text came from",
		}, []string{"source"}),
		// Labels: backend, kind (network, auth, quota, response)
		backendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "failures_total",
			Help:      "Failed AI backend calls by error kind",
		}, []string{"backend", "kind"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "rate_limited_total",
			Help:      "AI calls denied by the request quota",
		}),
		chainDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "depth",
			Help:      "Depth of analyzed exception chains",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 25, 50},
		}),
		// Labels: type (simple, wrapper, cascade, cleanup)
		chainTypes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "analyzed_total",
			Help:      "Analyzed exception chains by type",
		}, []string{"type"}),
	}
	m.registry.MustRegister(m.explanations, m.backendFailures, m.rateLimited, m.chainDepth, m.chainTypes)
	return m
}

// Registry returns the registry holding the counters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the counters in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Explanation(source string) {
	if m == nil {
		return
	}
	m.explanations.WithLabelValues(source).Inc()
}

func (m *Metrics) Chain(chainType string, depth int) {
	if m == nil {
		return
	}
	m.chainTypes.WithLabelValues(chainType).Inc()
	m.chainDepth.Observe(float64(depth))
}

// BackendFailure and RateLimited let Metrics observe the AI analyzer.
func (m *Metrics) BackendFailure(backend string, kind llm.ErrorKind) {
	if m == nil {
		return
	}
	m.backendFailures.WithLabelValues(backend, string(kind)).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
