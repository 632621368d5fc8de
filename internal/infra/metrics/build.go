package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(buildInfo)
}

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A constant metric with labels for version, commit and consume mode.",
	},
	[]string{"version", "commit", "consume_mode"},
)

func SetBuildInfo(version, commit, consumeMode string) {
	buildInfo.WithLabelValues(version, commit, norm(consumeMode)).Set(1)
}
