package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestObserveOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveOperation("checkout", "success", time.Millisecond)
	m.ObserveOperation("checkout", "insufficient_stock", time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "commerce_operations_total" {
			continue
		}
		if got := len(f.GetMetric()); got != 2 {
			t.Errorf("Expected 2 label sets, got %d", got)
		}
		return
	}
	t.Error("commerce_operations_total not gathered")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", "/ping", "200", time.Millisecond)
	m.ObserveWebhook("succeeded", "processed")
	m.EventPublishFailed("orders.paid")
}
