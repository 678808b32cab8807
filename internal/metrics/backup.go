package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackupJobsTotal counts jobs reaching a terminal status.
	BackupJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backupvault_jobs_total",
			Help: "Total number of backup jobs by terminal status",
		},
		[]string{"workspace_type", "status"},
	)

	BackupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backupvault_job_duration_seconds",
			Help:    "Time from start to terminal status of a backup job",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"workspace_type", "status"},
	)

	QuotaRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backupvault_quota_rejections_total",
			Help: "Backup requests rejected by the daily quota",
		},
	)

	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backupvault_dispatch_queue_depth",
			Help: "Backup jobs waiting for a worker in the in-process pool",
		},
	)
)
