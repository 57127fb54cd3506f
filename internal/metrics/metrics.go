// Package metrics holds the Prometheus collectors of the study pipeline.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests and library use.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the counters and histograms exported by studyrag.
type Metrics struct {
	registry    *prometheus.Registry
	generations *prometheus.CounterVec
	genLatency  *prometheus.HistogramVec
	fallbacks   *prometheus.CounterVec
	embedded    prometheus.Counter
	cleanupErrs *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studyrag_llm_generations_total",
				Help: "Total number of language model generation calls",
			},
			[]string{"model", "outcome"},
		),
		genLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "studyrag_llm_generation_seconds",
				Help:    "Latency of language model generation calls",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"model"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studyrag_fallbacks_total",
				Help: "Deterministic fallbacks substituted for failed generations",
			},
			[]string{"component"},
		),
		embedded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studyrag_chunks_embedded_total",
			Help: "Total number of chunks embedded and stored",
		}),
		cleanupErrs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studyrag_cleanup_failures_total",
				Help: "Best-effort vector index deletions that failed",
			},
			[]string{"operation"},
		),
	}
	m.registry.MustRegister(m.generations, m.genLatency, m.fallbacks, m.embedded, m.cleanupErrs)
	return m
}

// ObserveGeneration records one generation call.
func (m *Metrics) ObserveGeneration(model string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = "canceled"
	case err != nil:
		outcome = "error"
	}
	m.generations.WithLabelValues(model, outcome).Inc()
	m.genLatency.WithLabelValues(model).Observe(elapsed.Seconds())
}

// Fallback records a deterministic fallback in component.
func (m *Metrics) Fallback(component string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(component).Inc()
}

// ChunksEmbedded adds n stored chunks.
func (m *Metrics) ChunksEmbedded(n int) {
	if m == nil {
		return
	}
	m.embedded.Add(float64(n))
}

// CleanupFailed records a swallowed deletion failure.
func (m *Metrics) CleanupFailed(operation string) {
	if m == nil {
		return
	}
	m.cleanupErrs.WithLabelValues(operation).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
