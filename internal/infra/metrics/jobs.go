package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(jobsCreatedTotal, jobsFinishedTotal, jobProcessingSeconds, jobsOrphanedTotal, generationLatencyMs)
}

var jobsCreatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobs_created_total",
		Help: "Total number of portrait generation jobs created, labeled by profession.",
	},
	[]string{"profession"},
)

var jobsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobs_finished_total",
		Help: "Total number of jobs that reached a terminal status.",
	},
	[]string{"status"}, // 'completed', 'failed', 'deleted'
)

var jobProcessingSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "job_processing_seconds",
		Help:    "Time from job start to its terminal status.",
		Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 300, 600},
	},
	[]string{"status"},
)

var jobsOrphanedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobs_orphaned_total",
		Help: "Jobs whose generation could not be finalized normally.",
	},
	[]string{"reason"}, // 'panic', 'finalize_error', 'shutdown', 'startup'
)

var generationLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "generation_latency_ms",
		Help:    "Image backend call latency distribution in milliseconds.",
		Buckets: []float64{500, 1000, 2500, 5000, 10000, 20000, 40000, 80000, 160000},
	},
	[]string{"provider", "success"},
)

func IncJobCreated(profession string) {
	jobsCreatedTotal.WithLabelValues(norm(profession)).Inc()
}

func IncJobFinished(status string) {
	jobsFinishedTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveJobProcessingTime(status string, seconds int64) {
	jobProcessingSeconds.WithLabelValues(norm(status)).Observe(float64(seconds))
}

func IncJobOrphaned(reason string) {
	jobsOrphanedTotal.WithLabelValues(norm(reason)).Inc()
}

func ObserveGeneration(provider string, latencyMs int64, success bool) {
	label := "false"
	if success {
		label = "true"
	}
	generationLatencyMs.WithLabelValues(norm(provider), label).Observe(float64(latencyMs))
}
