package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(creditsGrantedTotal, creditsConsumedTotal, consumeRejectedTotal, refundFailuresTotal)
}

var (
	creditsGrantedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_granted_total",
			Help: "Credits added to balances, labeled by reason (welcome/purchase/referral/refund).",
		},
		[]string{"reason"},
	)

	creditsConsumedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credits_consumed_total",
			Help: "Credits debited by the consume flow.",
		},
	)

	consumeRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "consume_insufficient_credits_total",
			Help: "Consume attempts rejected for lack of credits.",
		},
	)

	refundFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credit_refund_failures_total",
			Help: "Refunds that could not be written; each one needs manual correction.",
		},
	)
)

func AddCreditsGranted(reason string, n int) {
	creditsGrantedTotal.WithLabelValues(norm(reason)).Add(float64(n))
}

func IncCreditConsumed() { creditsConsumedTotal.Inc() }

func IncConsumeRejected() { consumeRejectedTotal.Inc() }

func IncRefundFailure() { refundFailuresTotal.Inc() }
