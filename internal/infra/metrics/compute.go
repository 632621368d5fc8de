package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(computeLatencyMs) }

var computeLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "compute_webhook_latency_ms",
		Help:    "Compute webhook call latency in milliseconds by result.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 20000, 30000},
	},
	[]string{"result"}, // 'ok', 'failed', 'timeout'
)

func ObserveCompute(result string, latencyMs int64) {
	computeLatencyMs.WithLabelValues(norm(result)).Observe(float64(latencyMs))
}
