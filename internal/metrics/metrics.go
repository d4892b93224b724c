package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Runs by outcome: ok | empty | locked | persist_failed.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capitol_watch_runs_total",
			Help: "Total number of watcher runs by result.",
		},
		[]string{"result"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "capitol_watch_run_duration_seconds",
			Help:    "Duration of a complete watcher run in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms → ~25s
		},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capitol_watch_fetch_duration_seconds",
			Help:    "Duration of source page fetches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"status"},
	)

	FetchedTrades = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "capitol_watch_fetched_trades",
			Help: "Number of trades parsed from the source in the last run.",
		},
	)

	SkippedRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capitol_watch_skipped_rows_total",
			Help: "Table rows dropped by the normalizer.",
		},
	)

	NewTradesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capitol_watch_new_trades_total",
			Help: "Trades classified as new across all runs.",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capitol_watch_notifications_total",
			Help: "Notification deliveries by channel and result.",
		},
		[]string{"channel", "result"}, // result = "ok" | "error"
	)

	NotifyLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capitol_watch_notify_latency_seconds",
			Help:    "Time taken to deliver a notification.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	SnapshotOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capitol_watch_snapshot_ops_total",
			Help: "Snapshot store operations by backend, operation and result.",
		},
		[]string{"backend", "op", "result"},
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capitol_watch_errors_total",
			Help: "Count of errors by component.",
		},
		[]string{"component", "reason"},
	)

	LastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "capitol_watch_last_run_timestamp",
			Help: "Timestamp (unix seconds) of the last run by result.",
		},
		[]string{"result"},
	)
)

// ObserveDuration records the time elapsed since start on a histogram.
func ObserveDuration(v interface{}, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case prometheus.Histogram:
		metric.Observe(duration)
	default:
		// counters and gauges are not duration sinks
	}
}

func IncRun(result string) {
	RunsTotal.WithLabelValues(result).Inc()
	LastRunTimestamp.WithLabelValues(result).Set(float64(time.Now().Unix()))
}

func IncNotification(channel, result string) {
	NotificationsTotal.WithLabelValues(channel, result).Inc()
}

func IncSnapshotOp(backend, op, result string) {
	SnapshotOpsTotal.WithLabelValues(backend, op, result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

// Result maps an error to the "ok" / "error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
