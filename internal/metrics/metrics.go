package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Records
	RecordsAdded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_records_added_total",
			Help: "Total delivery records added",
		},
		[]string{"platform"},
	)
	RecordsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_records_deleted_total",
			Help: "Total delivery records deleted",
		},
	)
	RecordsStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "delivery_records",
			Help: "Current number of stored delivery records",
		},
	)

	// Goal
	GoalUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_goal_updates_total",
			Help: "Total monthly goal changes",
		},
	)

	// Storage
	StorageRecoveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_storage_recoveries_total",
			Help: "Loads that fell back to defaults because the stored value was missing or malformed",
		},
		[]string{"key"},
	)
	StorageWriteErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_storage_write_errors_total",
			Help: "Failed writes to the key-value store",
		},
		[]string{"key"},
	)

	// Events
	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_events_dropped_total",
			Help: "Change events that were not delivered to the broker",
		},
		[]string{"reason"},
	)

	// HTTP
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_requests_latency_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	initOnce sync.Once
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

// Init registers all collectors with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RecordsAdded,
			RecordsDeleted,
			RecordsStored,
			GoalUpdates,
			StorageRecoveries,
			StorageWriteErrors,
			EventsDropped,
			HTTPLatency,
		)
	})
}
