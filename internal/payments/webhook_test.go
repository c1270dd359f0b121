package payments

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseNotificationNested(t *testing.T) {
	body := []byte(`{
		"event": "payment.succeeded",
		"object": {
			"id": "pay_1",
			"status": "succeeded",
			"amount": {"value": "2200.00", "currency": "RUB"},
			"metadata": {"order_id": "42", "attempt": 1},
			"captured_at": "2026-03-01T10:00:00.000Z"
		}
	}`)
	n, err := ParseNotification(body)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if n.RemoteID != "pay_1" || n.Status != StatusSucceeded || n.Event != "payment.succeeded" {
		t.Errorf("Unexpected notification: %+v", n)
	}
	if !n.Amount.Valid || !n.Amount.Decimal.Equal(decimal.NewFromInt(2200)) || n.Currency != "RUB" {
		t.Errorf("Expected amount 2200 RUB, got %+v %s", n.Amount, n.Currency)
	}
	if n.Metadata["order_id"] != "42" || n.Metadata["attempt"] != "1" {
		t.Errorf("Unexpected metadata: %v", n.Metadata)
	}
	if n.CapturedAt == nil || n.CapturedAt.Year() != 2026 {
		t.Errorf("Expected captured_at to be parsed, got %v", n.CapturedAt)
	}
}

func TestParseNotificationFlattened(t *testing.T) {
	n, err := ParseNotification([]byte(`{"event":"payment.canceled","id":"pay_2","status":"canceled","amount":"10.50"}`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if n.RemoteID != "pay_2" || n.Status != StatusCanceled {
		t.Errorf("Unexpected notification: %+v", n)
	}
	if !n.Amount.Valid || n.Amount.Decimal.String() != "10.5" {
		t.Errorf("Expected amount 10.5, got %+v", n.Amount)
	}
}

func TestParseNotificationStripeShape(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","status":"complete","payment_status":"paid","metadata":{"order_id":"7"}}}}`)
	n, err := ParseNotification(body)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if n.RemoteID != "cs_test_1" || n.Status != StatusSucceeded {
		t.Errorf("Unexpected notification: %+v", n)
	}

	unpaid := []byte(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_test_2","status":"complete","payment_status":"unpaid"}}}`)
	n, err = ParseNotification(unpaid)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if n.Status != StatusPending {
		t.Errorf("Expected unpaid session to stay pending, got %s", n.Status)
	}
}

func TestParseNotificationStatusFromEvent(t *testing.T) {
	n, err := ParseNotification([]byte(`{"event":"payment.succeeded","object":{"id":"pay_3"}}`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if n.Status != StatusSucceeded {
		t.Errorf("Expected succeeded, got %s", n.Status)
	}
}

func TestParseNotificationErrors(t *testing.T) {
	if _, err := ParseNotification([]byte(`{"event":"payment.succeeded","object":{}}`)); err != ErrNoRemoteID {
		t.Errorf("Expected ErrNoRemoteID, got %v", err)
	}
	if _, err := ParseNotification([]byte(`not json`)); err == nil {
		t.Error("Expected decode error")
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]Status{
		"succeeded":           StatusSucceeded,
		"PAID":                StatusSucceeded,
		"expired":             StatusCanceled,
		"requires_capture":    StatusWaitingForCapture,
		"waiting_for_capture": StatusWaitingForCapture,
		"open":                StatusPending,
		"":                    StatusPending,
	}
	for raw, want := range tests {
		if got := NormalizeStatus(raw); got != want {
			t.Errorf("NormalizeStatus(%q): expected %s, got %s", raw, want, got)
		}
	}
}
