package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StorefrontMetrics records cart mutations and payment outcomes.
type StorefrontMetrics struct {
	cartOps        *prometheus.CounterVec
	paymentResults *prometheus.CounterVec
	chargeDuration *prometheus.HistogramVec
}

// NewStorefrontMetrics registers the storefront metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	cartOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Cart mutations by operation and outcome.",
	}, []string{"operation", "outcome"})
	paymentResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_results_total",
		Help: "Payment attempts by processor and outcome category.",
	}, []string{"processor", "outcome"})
	chargeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_charge_duration_seconds",
		Help:    "Latency of processor charge calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"processor"})
	reg.MustRegister(cartOps, paymentResults, chargeDuration)
	return &StorefrontMetrics{
		cartOps:        cartOps,
		paymentResults: paymentResults,
		chargeDuration: chargeDuration,
	}
}

// IncCartOperation counts one cart mutation.
func (m *StorefrontMetrics) IncCartOperation(operation, outcome string) {
	if m == nil || m.cartOps == nil {
		return
	}
	m.cartOps.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// ObservePayment records the outcome and duration of one processor call.
func (m *StorefrontMetrics) ObservePayment(processor, outcome string, duration time.Duration) {
	if m == nil || m.paymentResults == nil {
		return
	}
	processor = normalizeLabel(processor)
	m.paymentResults.WithLabelValues(processor, normalizeLabel(outcome)).Inc()
	m.chargeDuration.WithLabelValues(processor).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
