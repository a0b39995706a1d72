package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueOperations counts engine operations by outcome ("ok" or the
	// failure kind, e.g. "queue_full").
	QueueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_operations_total",
			Help: "Total number of queue engine operations",
		},
		[]string{"operation", "result"},
	)

	QueueOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_operation_duration_seconds",
			Help:    "Queue engine operation latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	SessionLockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queue_session_lock_wait_seconds",
			Help:    "Time spent waiting for a session-scoped lock",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	QueueWaiting = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_waiting_entries",
			Help: "Entries waiting in a session after the last mutation",
		},
		[]string{"session_id"},
	)

	NotifierEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_notifier_events_total",
			Help: "Realtime events by outcome (published, dropped, failed)",
		},
		[]string{"type", "outcome"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queue_websocket_clients",
			Help: "Connected realtime websocket clients",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Collaborator circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	DirectoryCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_cache_lookups_total",
			Help: "Directory service cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	SessionsClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_sessions_closed_total",
			Help: "Sessions closed by the end-of-day task",
		},
	)
)

// ObserveOperation records latency and outcome of one engine operation.
func ObserveOperation(operation string, start time.Time, result string) {
	QueueOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	QueueOperations.WithLabelValues(operation, result).Inc()
}
