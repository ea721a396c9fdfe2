package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for the gateway, backed by any go-utils
// MetricFactory.
type Metrics struct {
	EventsReceivedTotal gu.Counter
	EventsDroppedTotal  gu.Counter
	DeliveriesTotal     gu.Counter
	DeliveryLatency     gu.Histogram
	DLQSize             gu.Gauge
	PendingDeliveries   gu.Gauge
}

// NewMetrics creates gateway metric instruments using the supplied factory.
// Pass metrics.NewMetricsCollector("hookline") for standalone usage.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		EventsReceivedTotal: factory.Counter("hookline_events_received_total"),
		EventsDroppedTotal:  factory.Counter("hookline_events_dropped_total"),
		DeliveriesTotal:     factory.Counter("hookline_deliveries_total"),
		DeliveryLatency:     factory.Histogram("hookline_delivery_latency_seconds"),
		DLQSize:             factory.Gauge("hookline_dlq_size"),
		PendingDeliveries:   factory.Gauge("hookline_pending_deliveries"),
	}
}

// RecordDelivery records a delivery attempt with the given status and latency.
func (m *Metrics) RecordDelivery(status string, latencySeconds float64) {
	m.DeliveriesTotal.WithLabels(map[string]string{"status": status}).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}
