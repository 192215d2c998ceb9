// Package metrics exposes Prometheus instrumentation for the dispatcher,
// stage workers, and job store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ClientMetrics is the set of Vecs MonitorRequest records an outbound HTTP
// call's retries, failures, and duration against, labeled by host.
type ClientMetrics struct {
	RetryCount      *prometheus.GaugeVec
	FailureCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

type ArchiverMetrics struct {
	// Fired once on startup to record which version is running.
	Version *prometheus.CounterVec

	DispatcherTicks       prometheus.Counter
	DispatcherIdleTicks   prometheus.Counter
	DispatcherTickSeconds prometheus.Histogram

	StageDurationSeconds *prometheus.HistogramVec
	StageFailures        *prometheus.CounterVec
	JobsFailedPermanent  prometheus.Counter
	JobsCompleted        prometheus.Counter

	ProgressUpdatesEmitted   *prometheus.CounterVec
	ProgressUpdatesPersisted *prometheus.CounterVec

	LeaseHeartbeats *prometheus.CounterVec

	JobsIngested prometheus.Counter

	// DownloadClient instruments the retryable HTTP client workers/download.go
	// uses to fetch source vods and chat logs.
	DownloadClient ClientMetrics
}

var vodLabels = []string{"stage"}

func NewMetrics() *ArchiverMetrics {
	return &ArchiverMetrics{
		Version: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_version",
			Help: "Current version running. Incremented once on app startup.",
		}, []string{"version"}),

		DispatcherTicks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "archiver_dispatcher_ticks_total",
			Help: "Number of dispatcher loop iterations.",
		}),
		DispatcherIdleTicks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "archiver_dispatcher_idle_ticks_total",
			Help: "Number of dispatcher loop iterations that found no eligible job.",
		}),
		DispatcherTickSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "archiver_dispatcher_tick_duration_seconds",
			Help:    "Time taken to select the next eligible job.",
			Buckets: prometheus.DefBuckets,
		}),

		StageDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "archiver_stage_duration_seconds",
			Help:    "Time taken to drive a single stage to completion or failure.",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 3600, 7200, 14400},
		}, vodLabels),
		StageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_stage_failures_total",
			Help: "Number of retryable stage failures, labeled by stage.",
		}, vodLabels),
		JobsFailedPermanent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "archiver_jobs_failed_permanent_total",
			Help: "Number of jobs marked permanently failed.",
		}),
		JobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "archiver_jobs_completed_total",
			Help: "Number of jobs that reached the Uploaded stage.",
		}),

		ProgressUpdatesEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_progress_updates_emitted_total",
			Help: "Number of status strings emitted by stage workers.",
		}, vodLabels),
		ProgressUpdatesPersisted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_progress_updates_persisted_total",
			Help: "Number of status strings that passed the progress throttle and were persisted.",
		}, vodLabels),

		LeaseHeartbeats: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_lease_heartbeats_total",
			Help: "Number of lease heartbeat refreshes, labeled by stage.",
		}, vodLabels),

		JobsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "archiver_jobs_ingested_total",
			Help: "Number of new Pending jobs inserted by the ingestor.",
		}),

		DownloadClient: ClientMetrics{
			RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "archiver_download_client_retries",
				Help: "Number of retries the last download request against a host needed.",
			}, []string{"host"}),
			FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "archiver_download_client_failures_total",
				Help: "Number of download requests that ended on a >=400 status, labeled by host and status code.",
			}, []string{"host", "status_code"}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "archiver_download_client_request_duration_seconds",
				Help:    "Duration of download requests that did not end on a >=400 status.",
				Buckets: prometheus.DefBuckets,
			}, []string{"host"}),
		},
	}
}

// Metrics is the process-wide metrics instance, matching the teacher's
// package-level singleton convention.
var Metrics = NewMetrics()
