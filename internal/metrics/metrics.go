// Package metrics defines the prometheus collectors of the books service.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "books"

// Counter reports the current number of stored books.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Metrics holds the service collectors, registered on their own registry.
type Metrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	operations *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_operations_total",
			Help:      "Book lifecycle operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.durations,
		m.operations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RegisterRecordCount exposes books_records, read from counter on every scrape.
func (m *Metrics) RegisterRecordCount(counter Counter, log *zap.Logger) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "records",
		Help:      "Number of stored books.",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		total, err := counter.Count(ctx)
		if err != nil {
			log.Warn("Failed to count books for metrics", zap.Error(err))
			return 0
		}
		return float64(total)
	}))
}

// ObserveOperation counts one lifecycle operation.
func (m *Metrics) ObserveOperation(operation, outcome string) {
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveRequest counts one HTTP request and records its latency.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.durations.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
