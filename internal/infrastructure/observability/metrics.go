// Package observability provides Prometheus metrics and OpenTelemetry tracing, and the
// store and event-bus decorators that feed them.
package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"savethespice-backend/internal/domain"
)

// Collector holds the application's Prometheus metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	DBOperations *prometheus.CounterVec
	DBDuration   *prometheus.HistogramVec

	Events *prometheus.CounterVec
}

// NewCollector creates and registers the metrics under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		DBOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_operations_total",
			Help:      "Total number of store operations",
		}, []string{"operation", "table", "status"}),
		DBDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_operation_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "table"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_events_total",
			Help:      "Domain events by type, counted per affected entity",
		}, []string{"type"}),
	}
	c.registry.MustRegister(c.HTTPRequests, c.HTTPDuration, c.DBOperations, c.DBDuration, c.Events)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one HTTP request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveDB records one store operation.
func (c *Collector) ObserveDB(operation, table string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.DBOperations.WithLabelValues(operation, table, status).Inc()
	c.DBDuration.WithLabelValues(operation, table).Observe(d.Seconds())
}

// CountingEventBus counts events before handing them to the next bus.
type CountingEventBus struct {
	next      domain.EventBus
	collector *Collector
}

// CountEvents wraps next.
func CountEvents(next domain.EventBus, collector *Collector) *CountingEventBus {
	return &CountingEventBus{next: next, collector: collector}
}

// Publish implements domain.EventBus.
func (b *CountingEventBus) Publish(ctx context.Context, events ...domain.Event) error {
	for _, e := range events {
		n := len(e.EntityIDs)
		if n == 0 {
			n = 1
		}
		b.collector.Events.WithLabelValues(e.Type).Add(float64(n))
	}
	return b.next.Publish(ctx, events...)
}
