// Package metrics constructs the metrics the application will track.
package metrics

import (
	"context"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the collectors the middleware and handlers update. Each
// instance owns its registry so tests can construct as many as they need.
type Metrics struct {
	Registry   *prometheus.Registry
	Requests   *prometheus.CounterVec
	Errors     prometheus.Counter
	Panics     prometheus.Counter
	Goroutines prometheus.Gauge
	Duration   *prometheus.HistogramVec
	Blocks     *prometheus.CounterVec
}

// New constructs and registers the application metrics.
func New() *Metrics {
	m := Metrics{
		Registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests.",
		}, []string{"method", "status"}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Total number of requests that returned an error.",
		}),
		Panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "api",
			Name:      "panics_total",
			Help:      "Total number of recovered panics.",
		}),
		Goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledger",
			Name:      "goroutines",
			Help:      "Number of goroutines, sampled every 100 requests.",
		}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method"}),
		Blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "block_submissions_total",
			Help:      "Block submissions by outcome.",
		}, []string{"outcome"}),
	}

	m.Registry.MustRegister(
		m.Requests,
		m.Errors,
		m.Panics,
		m.Goroutines,
		m.Duration,
		m.Blocks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &m
}

// SampleGoroutines records the current number of goroutines.
func (m *Metrics) SampleGoroutines() {
	m.Goroutines.Set(float64(runtime.NumGoroutine()))
}

// =============================================================================

// ctxKey represents the type of value for the context key.
type ctxKey int

// key is how metric values are stored/retrieved.
const key ctxKey = 1

// Set sets the metrics data into the context.
func Set(ctx context.Context, m *Metrics) context.Context {
	return context.WithValue(ctx, key, m)
}

// FromContext returns the metrics stored in the context, or nil.
func FromContext(ctx context.Context) *Metrics {
	m, _ := ctx.Value(key).(*Metrics)
	return m
}

// AddBlock records the outcome of a block submission. It is safe to call
// without metrics in the context.
func AddBlock(ctx context.Context, outcome string) {
	if m := FromContext(ctx); m != nil {
		m.Blocks.WithLabelValues(outcome).Inc()
	}
}
