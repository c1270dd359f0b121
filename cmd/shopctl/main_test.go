package main

import (
	"bytes"
	"strings"
	"testing"

	"honnylove-backend/internal/inventory"
)

func TestPrintLowStock(t *testing.T) {
	var buf bytes.Buffer
	records := []inventory.Record{
		{ProductID: 12, LocationID: 1, LocationName: "main", Quantity: 0, MinStock: 5},
		{ProductID: 31, LocationID: 2, LocationName: "north-warehouse", Quantity: 2, MinStock: 3},
	}
	if err := printLowStock(&buf, records); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"north-warehouse", "31", "12"} {
		if !strings.Contains(out, want) {
			t.Fatalf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}
