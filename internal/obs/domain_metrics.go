package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutSessionTotal counts checkout attempts by outcome.
	CheckoutSessionTotal *prometheus.CounterVec
	// CheckoutGatewayLatency records payment gateway call latency in milliseconds.
	CheckoutGatewayLatency *prometheus.HistogramVec
	// StripeWebhookTotal counts processed Stripe webhook events.
	StripeWebhookTotal *prometheus.CounterVec
	// ReceiptTaskTotal counts purchase receipt task outcomes.
	ReceiptTaskTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutSessionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_session_total",
			Help:      "Count of checkout session attempts by outcome.",
		}, []string{"result"})
		CheckoutGatewayLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_gateway_duration_ms",
			Help:      "Latency of payment gateway session creation in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"result"})
		StripeWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stripe_webhook_total",
			Help:      "Count of processed Stripe webhook events by type and outcome.",
		}, []string{"event", "result"})
		ReceiptTaskTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_task_total",
			Help:      "Count of purchase receipt task outcomes.",
		}, []string{"result"})

		mustRegisterCollector(reg, CheckoutSessionTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutSessionTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutGatewayLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				CheckoutGatewayLatency = v
			}
		})
		mustRegisterCollector(reg, StripeWebhookTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				StripeWebhookTotal = v
			}
		})
		mustRegisterCollector(reg, ReceiptTaskTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReceiptTaskTotal = v
			}
		})
	})
}

// CountCheckout increments CheckoutSessionTotal when domain metrics are registered.
func CountCheckout(result string) {
	if CheckoutSessionTotal != nil {
		CheckoutSessionTotal.WithLabelValues(result).Inc()
	}
}

// CountWebhook increments StripeWebhookTotal when domain metrics are registered.
func CountWebhook(event, result string) {
	if StripeWebhookTotal != nil {
		StripeWebhookTotal.WithLabelValues(event, result).Inc()
	}
}

// CountReceipt increments ReceiptTaskTotal when domain metrics are registered.
func CountReceipt(result string) {
	if ReceiptTaskTotal != nil {
		ReceiptTaskTotal.WithLabelValues(result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
