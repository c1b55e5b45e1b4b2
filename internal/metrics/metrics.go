package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cleanupRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docjanitor",
			Name:      "cleanup_runs_total",
			Help:      "Total cleanup runs by mode (real, dry_run)",
		},
		[]string{"mode"},
	)

	cleanupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docjanitor",
			Name:      "cleanup_run_duration_seconds",
			Help:      "Duration of full cleanup runs",
			Buckets:   prometheus.DefBuckets,
		},
	)

	filesIdentified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docjanitor",
			Name:      "files_identified_total",
			Help:      "Candidates identified for removal by category",
		},
		[]string{"category"},
	)

	filesRemoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docjanitor",
			Name:      "files_removed_total",
			Help:      "Files and directories removed by category",
		},
		[]string{"category"},
	)

	bytesFreed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docjanitor",
			Name:      "bytes_freed_total",
			Help:      "Total bytes reclaimed by cleanup runs",
		},
	)

	diskFreePercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docjanitor",
			Name:      "disk_free_percent",
			Help:      "Free disk space percentage per monitored path",
		},
		[]string{"path"},
	)

	diskAlertLevel = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docjanitor",
			Name:      "disk_alert_level",
			Help:      "Alert level per monitored path (0 normal, 1 warning, 2 critical, 3 emergency)",
		},
		[]string{"path"},
	)

	alertEmails = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docjanitor",
			Name:      "alert_emails_total",
			Help:      "Alert email attempts by result (sent, failed, skipped)",
		},
		[]string{"result"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(cleanupRuns, cleanupDuration, filesIdentified, filesRemoved, bytesFreed, diskFreePercent, diskAlertLevel, alertEmails)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveCleanupRun(mode string, removed int, bytes int64, dur time.Duration) {
	cleanupRuns.WithLabelValues(mode).Inc()
	cleanupDuration.Observe(dur.Seconds())
	if mode == "real" {
		bytesFreed.Add(float64(bytes))
	}
}

func ObserveCategory(category string, identified, removed int) {
	filesIdentified.WithLabelValues(category).Add(float64(identified))
	filesRemoved.WithLabelValues(category).Add(float64(removed))
}

func SetDiskReading(path string, freePercent float64, level int) {
	diskFreePercent.WithLabelValues(path).Set(freePercent)
	diskAlertLevel.WithLabelValues(path).Set(float64(level))
}

func IncAlertEmail(result string) { alertEmails.WithLabelValues(result).Inc() }
