package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobRunsTotal, failedPayments, rateLimitKeys) }

var (
	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_runs_total",
			Help: "Scheduled job runs, labeled by job and status.",
		},
		[]string{"job", "status"}, // status: 'ok', 'error', 'skipped'
	)

	failedPayments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payments_failed_open",
			Help: "Payment records in failed state awaiting manual reconciliation.",
		},
	)

	rateLimitKeys = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limit_windows",
			Help: "Live in-process rate limit windows after the last sweep.",
		},
	)
)

func IncJobRun(job, status string) {
	jobRunsTotal.WithLabelValues(norm(job), norm(status)).Inc()
}

func SetFailedPayments(n int) { failedPayments.Set(float64(n)) }

func SetRateLimitWindows(n int) { rateLimitKeys.Set(float64(n)) }
