package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	NodeFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wildcam",
			Name:      "node_failures_total",
			Help:      "Total number of heartbeat-timeout failures detected.",
		},
	)

	TasksReassignedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wildcam",
			Name:      "tasks_reassigned_total",
			Help:      "Total number of tasks migrated away from failed nodes.",
		},
	)

	TasksLeftPendingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wildcam",
			Name:      "tasks_left_pending_total",
			Help:      "Total number of tasks parked pending because no healthy node was available.",
		},
	)

	TasksExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wildcam",
			Name:      "tasks_expired_total",
			Help:      "Total number of tasks dropped after their deadline passed with a failed owner.",
		},
	)

	MessagesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wildcam",
			Name:      "messages_dropped_total",
			Help:      "Inbound messages dropped because the coordinator inbox was full.",
		},
	)

	ActiveNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wildcam",
			Name:      "active_nodes",
			Help:      "Nodes currently considered alive.",
		},
	)

	PendingTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wildcam",
			Name:      "pending_tasks",
			Help:      "Tasks waiting for an eligible node.",
		},
	)

	AssignedTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wildcam",
			Name:      "assigned_tasks",
			Help:      "Tasks currently owned by a node.",
		},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wildcam",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one coordinator tick.",
			// One tick is table lookups plus a linear sweep; 10µs .. ~160ms.
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "wildcam",
			Name:      "uptime_seconds",
			Help:      "Coordinator process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		NodeFailuresTotal, TasksReassignedTotal, TasksLeftPendingTotal,
		TasksExpiredTotal, MessagesDroppedTotal,
		ActiveNodes, PendingTasks, AssignedTasks,
		SweepDuration, uptime,
	)
}

// MetricsHandler exposes /metrics for the diagnostics HTTP server.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
