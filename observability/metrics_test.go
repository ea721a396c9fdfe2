package observability

import (
	"testing"

	"github.com/xraph/go-utils/metrics"
)

func TestNewMetricsInstruments(t *testing.T) {
	m := NewMetrics(metrics.NewMetricsCollector("hookline"))

	if m.EventsReceivedTotal == nil {
		t.Fatal("EventsReceivedTotal should not be nil")
	}
	if m.EventsDroppedTotal == nil {
		t.Fatal("EventsDroppedTotal should not be nil")
	}
	if m.DeliveriesTotal == nil {
		t.Fatal("DeliveriesTotal should not be nil")
	}
	if m.DeliveryLatency == nil {
		t.Fatal("DeliveryLatency should not be nil")
	}
	if m.DLQSize == nil {
		t.Fatal("DLQSize should not be nil")
	}
	if m.PendingDeliveries == nil {
		t.Fatal("PendingDeliveries should not be nil")
	}
}

func TestRecordDelivery(t *testing.T) {
	m := NewMetrics(metrics.NewMetricsCollector("hookline"))

	m.RecordDelivery("delivered", 0.5)
	m.RecordDelivery("delivered", 1.2)
	m.RecordDelivery("failed", 0.3)
}

func TestCountersAndGauges(t *testing.T) {
	m := NewMetrics(metrics.NewMetricsCollector("hookline"))

	m.EventsReceivedTotal.Inc()
	m.EventsReceivedTotal.Inc()
	m.EventsDroppedTotal.Inc()

	m.DLQSize.Set(42)
	m.PendingDeliveries.Set(100)
}
