package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(sweepRunsTotal, sweepRemovedTotal) }

var sweepRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sweep_runs_total",
		Help: "Background sweep executions, labeled by sweep and outcome.",
	},
	[]string{"sweep", "outcome"}, // outcome: 'ok', 'error', 'skipped'
)

var sweepRemovedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sweep_removed_total",
		Help: "Records removed by background sweeps.",
	},
	[]string{"sweep"},
)

func IncSweepRun(sweep, outcome string) {
	sweepRunsTotal.WithLabelValues(norm(sweep), norm(outcome)).Inc()
}

func AddSweepRemoved(sweep string, n int) {
	sweepRemovedTotal.WithLabelValues(norm(sweep)).Add(float64(n))
}
