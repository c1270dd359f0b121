package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNoRemoteID = errors.New("webhook payload carries no payment id")

// Notification is the part of a gateway webhook the service acts on.
type Notification struct {
	Event      string
	RemoteID   string
	Status     Status
	RawStatus  string
	Amount     decimal.NullDecimal
	Currency   string
	Metadata   map[string]string
	CapturedAt *time.Time
}

type webhookObject struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	Amount        json.RawMessage `json:"amount"`
	Currency      string          `json:"currency"`
	Metadata      map[string]any  `json:"metadata"`
	CapturedAt    json.RawMessage `json:"captured_at"`
}

type webhookEnvelope struct {
	webhookObject
	Event  string         `json:"event"`
	Type   string         `json:"type"`
	Object *webhookObject `json:"object"`
	Data   *struct {
		Object *webhookObject `json:"object"`
	} `json:"data"`
}

// ParseNotification accepts the nested {event, object} shape, the
// {type, data:{object}} shape, and a flattened shape with payment fields at
// the top level.
func ParseNotification(body []byte) (Notification, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Notification{}, fmt.Errorf("decode webhook payload: %w", err)
	}

	event := env.Event
	if event == "" {
		event = env.Type
	}
	obj := env.webhookObject
	switch {
	case env.Object != nil:
		obj = *env.Object
	case env.Data != nil && env.Data.Object != nil:
		obj = *env.Data.Object
	}
	if obj.ID == "" {
		return Notification{}, ErrNoRemoteID
	}

	n := Notification{
		Event:     event,
		RemoteID:  obj.ID,
		RawStatus: obj.Status,
		Currency:  obj.Currency,
		Metadata:  flattenMetadata(obj.Metadata),
	}
	if s, ok := statusFromEvent(event); ok && (obj.Status == "" || NormalizeStatus(obj.Status) == StatusPending) {
		n.Status = s
	} else {
		n.Status = NormalizeStatus(obj.Status)
	}
	// a completed checkout can still be awaiting an asynchronous payment
	if n.Status == StatusSucceeded && obj.PaymentStatus != "" &&
		obj.PaymentStatus != "paid" && obj.PaymentStatus != "no_payment_required" {
		n.Status = StatusPending
	}
	amount, currency := parseAmount(obj.Amount)
	n.Amount = amount
	if currency != "" {
		n.Currency = currency
	}
	n.CapturedAt = parseTime(obj.CapturedAt)
	return n, nil
}

// parseAmount understands {"value": "10.00", "currency": "RUB"}, a bare
// decimal string, and a bare number.
func parseAmount(raw json.RawMessage) (decimal.NullDecimal, string) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.NullDecimal{}, ""
	}
	var nested struct {
		Value    json.RawMessage `json:"value"`
		Currency string          `json:"currency"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested.Value) > 0 {
		v, _ := parseAmount(nested.Value)
		return v, nested.Currency
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err == nil {
		return decimal.NewNullDecimal(d), ""
	}
	return decimal.NullDecimal{}, ""
}

// parseTime accepts RFC 3339 strings and unix seconds.
func parseTime(raw json.RawMessage) *time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			t = t.UTC()
			return &t
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			t := time.Unix(secs, 0).UTC()
			return &t
		}
		return nil
	}
	var secs int64
	if err := json.Unmarshal(raw, &secs); err == nil && secs > 0 {
		t := time.Unix(secs, 0).UTC()
		return &t
	}
	return nil
}

func flattenMetadata(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
		default:
			b, err := json.Marshal(val)
			if err == nil {
				out[k] = string(b)
			}
		}
	}
	return out
}
