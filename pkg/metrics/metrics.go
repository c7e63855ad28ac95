package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook ingestion pipeline metrics.
var (
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Inbound webhook deliveries by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	DuplicatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_duplicates_total",
			Help: "Deliveries short-circuited by the deduplication engine",
		},
		[]string{"provider"},
	)

	LockContentionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_lock_contention_total",
			Help: "Deliveries that found the execution lock held elsewhere",
		},
		[]string{"provider"},
	)

	TimeoutAcksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_timeout_acks_total",
			Help: "Responses where the ack deadline won the race against processing",
		},
		[]string{"provider"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_dispatch_duration_seconds",
			Help:    "End-to-end workflow dispatch duration",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider", "status"},
	)

	BackgroundTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webhook_background_tasks",
			Help: "Dispatches still running after their HTTP response was sent",
		},
	)

	StoreDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_store_degraded_total",
			Help: "Requests processed without dedup or lock guarantees because the store errored",
		},
		[]string{"operation"},
	)
)
