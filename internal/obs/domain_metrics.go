package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutSubmitTotal counts checkout submissions by the stage the flow
	// ended in and the terminal result.
	CheckoutSubmitTotal *prometheus.CounterVec
	// VoucherCheckTotal counts voucher validation outcomes.
	VoucherCheckTotal *prometheus.CounterVec
	// PaymentStatusRecordTotal counts payment bookkeeping outcomes. Failures
	// here never fail the checkout, so this counter is the only place they
	// surface besides the log.
	PaymentStatusRecordTotal *prometheus.CounterVec
	// UpstreamRequestDuration records latency of collaborator calls.
	UpstreamRequestDuration *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutSubmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_submit_total",
			Help:      "Count of checkout submission outcomes by terminal stage.",
		}, []string{"stage", "result"})
		VoucherCheckTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voucher_check_total",
			Help:      "Count of voucher validation outcomes.",
		}, []string{"result"})
		PaymentStatusRecordTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_status_record_total",
			Help:      "Count of payment status bookkeeping outcomes.",
		}, []string{"result"})
		UpstreamRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_ms",
			Help:      "Latency of storefront platform collaborator calls in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"target", "result"})

		reg.MustRegister(CheckoutSubmitTotal, VoucherCheckTotal, PaymentStatusRecordTotal, UpstreamRequestDuration)
	})
}
