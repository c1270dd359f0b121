package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	operations          *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	webhookEvents       *prometheus.CounterVec
	eventPublishFailure *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commerce_operations_total",
			Help: "Order, payment and inventory operations by outcome.",
		}, []string{"operation", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "commerce_operation_duration_seconds",
			Help:    "Duration of order, payment and inventory operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Payment gateway notifications by normalized status and outcome.",
		}, []string{"status", "outcome"}),
		eventPublishFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_event_publish_failed_total",
			Help: "Order events that could not be published.",
		}, []string{"topic"}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.operations, m.operationDuration, m.webhookEvents, m.eventPublishFailure)
	return m
}

func (m *Metrics) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveWebhook(status, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(status, outcome).Inc()
}

func (m *Metrics) EventPublishFailed(topic string) {
	if m == nil {
		return
	}
	m.eventPublishFailure.WithLabelValues(topic).Inc()
}
