package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds all Prometheus metrics for the service.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Business metrics
	MemoriesCreated  prometheus.Counter
	MemoriesDeleted  prometheus.Counter
	MemoriesMigrated prometheus.Counter

	// Store metrics
	DBOperations *prometheus.CounterVec
	DBDuration   *prometheus.HistogramVec

	// Subscription metrics
	ActiveSubscriptions prometheus.Gauge
	PushesDelivered     prometheus.Counter
}

// NewCollector creates the metrics collector for the given namespace.
// A process-wide singleton avoids duplicate registration in tests.
func NewCollector(namespace string) *Collector {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		MemoriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_created_total",
			Help:      "Total number of memories created",
		}),
		MemoriesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_deleted_total",
			Help:      "Total number of memories deleted",
		}),
		MemoriesMigrated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_migrated_total",
			Help:      "Total number of memories moved out of the legacy layout",
		}),
		DBOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_operations_total",
				Help:      "Total number of store operations",
			},
			[]string{"operation", "status"},
		),
		DBDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_operation_duration_seconds",
				Help:      "Store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ActiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Number of open document subscriptions",
		}),
		PushesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_pushes_total",
			Help:      "Total number of record-set pushes delivered to subscribers",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.MemoriesCreated,
		c.MemoriesDeleted,
		c.MemoriesMigrated,
		c.DBOperations,
		c.DBDuration,
		c.ActiveSubscriptions,
		c.PushesDelivered,
	)

	globalCollector = c
	return c
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveDB records one store operation.
func (c *Collector) ObserveDB(operation string, start time.Time, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.DBOperations.WithLabelValues(operation, status).Inc()
	c.DBDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
