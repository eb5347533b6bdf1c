package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequests counts HTTP calls per provider and status code
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinwatch_upstream_requests_total",
			Help: "Total number of upstream HTTP requests",
		},
		[]string{"provider", "status"},
	)

	// UpstreamRetries counts retried upstream calls
	UpstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinwatch_upstream_retries_total",
			Help: "Total number of upstream call retries",
		},
		[]string{"provider"},
	)

	// UpstreamLatency tracks upstream call latency
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coinwatch_upstream_latency_seconds",
			Help:    "Upstream call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// CycleRuns counts scheduler cycles by outcome
	CycleRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinwatch_cycle_runs_total",
			Help: "Total number of notification cycles",
		},
		[]string{"cycle", "result"},
	)

	// CycleDuration tracks how long a cycle takes
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coinwatch_cycle_duration_seconds",
			Help:    "Notification cycle duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"cycle"},
	)

	// TransactionsIngested counts stored transaction rows
	TransactionsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinwatch_transactions_ingested_total",
			Help: "Total number of transactions ingested",
		},
		[]string{"kind"},
	)

	// Notifications counts outgoing messages
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinwatch_notifications_total",
			Help: "Total number of notifications",
		},
		[]string{"kind", "result"},
	)

	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coinwatch_db_connection_pool_usage",
			Help: "Ratio of in-use to max open database connections",
		},
	)
)
