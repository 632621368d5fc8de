package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(httpRequestsTotal, httpDuration, rateLimitedTotal, webhookNotifyTotal)
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		},
		[]string{"route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP handler duration in seconds by route pattern.",
			Buckets: []float64{0.005, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"route"},
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rejected by the per-user rate limiter, by action.",
		},
		[]string{"action"},
	)

	// Telegram messages sent after a payment, by delivery status (sent|error).
	webhookNotifyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_notify_total",
			Help: "Payment confirmation messages by delivery status.",
		},
		[]string{"status"},
	)
)

func ObserveHTTP(route, status string, seconds float64) {
	httpRequestsTotal.WithLabelValues(route, status).Inc()
	httpDuration.WithLabelValues(route).Observe(seconds)
}

func IncRateLimited(action string) {
	rateLimitedTotal.WithLabelValues(norm(action)).Inc()
}

func IncPaymentNotify(status string) {
	webhookNotifyTotal.WithLabelValues(norm(status)).Inc()
}
