package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeDownloads = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stowage_worker_active_downloads",
		Help: "Download jobs currently holding a pool permit.",
	})

	jobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stowage_worker_jobs_total",
		Help: "Download jobs finished by outcome (completed, duplicate, failed).",
	}, []string{"outcome"})

	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stowage_worker_download_bytes_total",
		Help: "Bytes recorded for completed download jobs.",
	})

	claimErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stowage_worker_claim_errors_total",
		Help: "Failed attempts to claim a job from the store.",
	})
)
