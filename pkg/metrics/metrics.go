package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records counters for the payment pipeline.
type PaymentMetrics struct {
	captures  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	webhooks  *prometheus.CounterVec
	invoices  *prometheus.CounterVec
	gatewayMS *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	captures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_captures_total",
		Help: "Captured payments by kind.",
	}, []string{"kind", "method"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_failures_total",
		Help: "Failed payment attempts by kind.",
	}, []string{"kind", "reason"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhook_events_total",
		Help: "Gateway webhook events by outcome.",
	}, []string{"event", "outcome"})
	invoices := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_generations_total",
		Help: "Invoice generations by outcome.",
	}, []string{"outcome"})
	gatewayMS := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Duration of outbound gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(captures, failures, webhooks, invoices, gatewayMS)
	return &PaymentMetrics{
		captures:  captures,
		failures:  failures,
		webhooks:  webhooks,
		invoices:  invoices,
		gatewayMS: gatewayMS,
	}
}

// IncCapture increments the capture counter.
func (m *PaymentMetrics) IncCapture(kind, method string) {
	if m == nil || m.captures == nil {
		return
	}
	m.captures.WithLabelValues(normalizeLabel(kind), normalizeLabel(method)).Inc()
}

// IncFailure increments the failure counter.
func (m *PaymentMetrics) IncFailure(kind, reason string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(kind), normalizeLabel(reason)).Inc()
}

// IncWebhook increments the webhook counter for the event and outcome.
func (m *PaymentMetrics) IncWebhook(event, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}

// IncInvoice increments the invoice generation counter.
func (m *PaymentMetrics) IncInvoice(outcome string) {
	if m == nil || m.invoices == nil {
		return
	}
	m.invoices.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveGateway records an outbound gateway call duration.
func (m *PaymentMetrics) ObserveGateway(operation string, seconds float64) {
	if m == nil || m.gatewayMS == nil {
		return
	}
	m.gatewayMS.WithLabelValues(normalizeLabel(operation)).Observe(seconds)
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
