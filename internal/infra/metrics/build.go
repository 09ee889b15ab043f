package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(buildInfo)
}

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A constant metric with labels for version, commit hash and image backend.",
	},
	[]string{"version", "commit", "generator"},
)

func SetBuildInfo(version, commit, generator string) {
	buildInfo.WithLabelValues(version, commit, norm(generator)).Set(1)
}
