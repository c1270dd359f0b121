package payments

import "strings"

// NormalizeStatus maps gateway status vocabularies onto Status.
func NormalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "succeeded", "paid", "complete", "captured":
		return StatusSucceeded
	case "canceled", "cancelled", "expired", "failed":
		return StatusCanceled
	case "waiting_for_capture", "requires_capture":
		return StatusWaitingForCapture
	default:
		return StatusPending
	}
}

// statusFromEvent infers the status from an event name when the payload
// object carries none.
func statusFromEvent(event string) (Status, bool) {
	switch strings.ToLower(event) {
	case "payment.succeeded", "checkout.session.completed", "checkout.session.async_payment_succeeded", "payment_intent.succeeded":
		return StatusSucceeded, true
	case "payment.canceled", "checkout.session.expired", "checkout.session.async_payment_failed", "payment_intent.canceled", "payment_intent.payment_failed":
		return StatusCanceled, true
	case "payment.waiting_for_capture", "payment_intent.amount_capturable_updated":
		return StatusWaitingForCapture, true
	}
	return "", false
}
