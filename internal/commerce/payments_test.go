package commerce

import (
	"context"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/inventory"
	"honnylove-backend/internal/orders"
	"honnylove-backend/internal/payments"
)

// placeOrder checks out one unit of a 1000 product for the customer.
func placeOrder(t *testing.T, f *fixture) int64 {
	t.Helper()
	a := f.product(t, "Rose toner", "1000")
	f.stock(t, a, inventory.DefaultLocationID, 5)
	f.addToCart(t, customer.UserID, a, 1)
	return f.checkout(t, customer.UserID, "0").Order.ID
}

func TestCreatePaymentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	orderID := placeOrder(t, f)
	ctx := context.Background()

	first, created, err := f.svc.CreatePayment(ctx, customer, orderID, decimal.NullDecimal{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !created {
		t.Errorf("Expected the first call to create a payment")
	}
	if !first.Amount.Equal(dec("1000")) {
		t.Errorf("Expected amount to default to the order total, got %s", first.Amount)
	}
	if first.ConfirmationURL == "" || first.RemoteID == "" {
		t.Errorf("Expected remote id and confirmation url, got %+v", first)
	}

	second, created, err := f.svc.CreatePayment(ctx, customer, orderID, decimal.NullDecimal{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if created || second.ID != first.ID {
		t.Errorf("Expected existing payment %d to be returned, got %d (created=%v)", first.ID, second.ID, created)
	}
	if f.gw.creates != 1 {
		t.Errorf("Expected one gateway call, got %d", f.gw.creates)
	}
}

func TestCreatePaymentRejections(t *testing.T) {
	f := newFixture(t)
	orderID := placeOrder(t, f)
	ctx := context.Background()

	_, _, err := f.svc.CreatePayment(ctx, stranger, orderID, decimal.NullDecimal{})
	expectCode(t, err, apperr.CodeAccessDenied)

	_, _, err = f.svc.CreatePayment(ctx, customer, orderID, decimal.NewNullDecimal(dec("0")))
	expectCode(t, err, apperr.CodeValidation)

	_, _, err = f.svc.CreatePayment(ctx, customer, orderID, decimal.NewNullDecimal(dec("1000.01")))
	expectCode(t, err, apperr.CodeValidation)

	if _, err := f.svc.CancelOrder(ctx, customer, orderID); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	_, _, err = f.svc.CreatePayment(ctx, customer, orderID, decimal.NullDecimal{})
	expectCode(t, err, apperr.CodeInvalidTransition)

	if f.gw.creates != 0 {
		t.Errorf("Expected no gateway calls, got %d", f.gw.creates)
	}
}

func TestWebhookMarksOrderPaidOnce(t *testing.T) {
	f := newFixture(t)
	orderID := placeOrder(t, f)
	ctx := context.Background()
	p, _, err := f.svc.CreatePayment(ctx, customer, orderID, decimal.NullDecimal{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	n := payments.Notification{Event: "payment.succeeded", RemoteID: p.RemoteID, Status: payments.StatusSucceeded}

	outcome, err := f.svc.HandleNotification(ctx, n)
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("Expected applied, got %q (%v)", outcome, err)
	}
	outcome, err = f.svc.HandleNotification(ctx, n)
	if err != nil || outcome != OutcomeUnchanged {
		t.Fatalf("Expected unchanged, got %q (%v)", outcome, err)
	}

	d := f.order(t, orderID)
	if d.Order.Status != orders.StatusPaid {
		t.Fatalf("Expected paid, got %s", d.Order.Status)
	}
	if got := historyCount(d, orders.StatusPaid); got != 1 {
		t.Errorf("Expected one paid history row, got %d", got)
	}

	if _, err := f.svc.UpdateOrderStatus(ctx, staff, orderID, orders.StatusProcessing); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := f.svc.HandleNotification(ctx, n); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	d = f.order(t, orderID)
	if d.Order.Status != orders.StatusProcessing {
		t.Errorf("Expected late webhook to leave processing, got %s", d.Order.Status)
	}
	if got := historyCount(d, orders.StatusPaid); got != 1 {
		t.Errorf("Expected one paid history row, got %d", got)
	}
}

func TestWebhookReplayCacheShortCircuits(t *testing.T) {
	replay := &memoryReplay{keys: map[string]bool{}}
	f := newFixture(t, WithReplayCache(replay))
	orderID := placeOrder(t, f)
	ctx := context.Background()
	p, _, err := f.svc.CreatePayment(ctx, customer, orderID, decimal.NullDecimal{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	n := payments.Notification{Event: "payment.succeeded", RemoteID: p.RemoteID, Status: payments.StatusSucceeded}

	if _, err := f.svc.HandleNotification(ctx, n); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !replay.keys[p.RemoteID+":succeeded"] {
		t.Fatalf("Expected replay key to be stored after commit")
	}
	outcome, err := f.svc.HandleNotification(ctx, n)
	if err != nil || outcome != OutcomeReplayed {
		t.Errorf("Expected replayed, got %q (%v)", outcome, err)
	}
}

func TestWebhookUnknownPayment(t *testing.T) {
	f := newFixture(t)
	outcome, err := f.svc.HandleNotification(context.Background(), payments.Notification{
		Event: "payment.succeeded", RemoteID: "cs_test_missing", Status: payments.StatusSucceeded,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if outcome != OutcomeUnknownPayment {
		t.Errorf("Expected %q, got %q", OutcomeUnknownPayment, outcome)
	}
}

func TestWebhookCancelKeepsSucceededPayment(t *testing.T) {
	f := newFixture(t)
	orderID := placeOrder(t, f)
	p := f.pay(t, customer, orderID)

	outcome, err := f.svc.HandleNotification(context.Background(), payments.Notification{
		Event: "payment.canceled", RemoteID: p.RemoteID, Status: payments.StatusCanceled,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if outcome != OutcomeUnchanged {
		t.Errorf("Expected unchanged, got %q", outcome)
	}
	latest, err := f.svc.CheckPaymentStatus(context.Background(), customer, orderID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if latest.Payment.Status != payments.StatusSucceeded {
		t.Errorf("Expected payment to stay succeeded, got %s", latest.Payment.Status)
	}
}

func TestWebhookCancelAllowsNewPayment(t *testing.T) {
	f := newFixture(t)
	orderID := placeOrder(t, f)
	ctx := context.Background()
	p, _, err := f.svc.CreatePayment(ctx, customer, orderID, decimal.NullDecimal{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := f.svc.HandleNotification(ctx, payments.Notification{RemoteID: p.RemoteID, Status: payments.StatusCanceled}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := f.order(t, orderID).Order.Status; got != orders.StatusPending {
		t.Errorf("Expected cancelled payment to leave the order pending, got %s", got)
	}

	next, created, err := f.svc.CreatePayment(ctx, customer, orderID, decimal.NullDecimal{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !created || next.ID == p.ID {
		t.Errorf("Expected a new payment after cancellation, got %d (created=%v)", next.ID, created)
	}
}

func TestCheckPaymentStatusAppliesRemoteSuccess(t *testing.T) {
	f := newFixture(t)
	orderID := placeOrder(t, f)
	ctx := context.Background()
	p, _, err := f.svc.CreatePayment(ctx, customer, orderID, decimal.NullDecimal{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	view, err := f.svc.CheckPaymentStatus(ctx, customer, orderID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if view.OrderStatus != orders.StatusPending {
		t.Errorf("Expected pending before payment, got %s", view.OrderStatus)
	}

	f.gw.setRemoteStatus(p.RemoteID, payments.StatusSucceeded, "complete")
	view, err = f.svc.CheckPaymentStatus(ctx, customer, orderID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if view.OrderStatus != orders.StatusPaid || view.Payment.Status != payments.StatusSucceeded {
		t.Errorf("Expected paid order and succeeded payment, got %s / %s", view.OrderStatus, view.Payment.Status)
	}
	if view.RemoteStatus != "complete" {
		t.Errorf("Expected remote status complete, got %q", view.RemoteStatus)
	}

	// the webhook arriving afterwards changes nothing
	if _, err := f.svc.HandleNotification(ctx, payments.Notification{RemoteID: p.RemoteID, Status: payments.StatusSucceeded}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := historyCount(f.order(t, orderID), orders.StatusPaid); got != 1 {
		t.Errorf("Expected one paid history row, got %d", got)
	}

	_, err = f.svc.CheckPaymentStatus(ctx, stranger, orderID)
	expectCode(t, err, apperr.CodeAccessDenied)
}

func nullAmount() decimal.NullDecimal {
	return decimal.NullDecimal{}
}

func TestCreatePaymentRejectsFractionsOfACent(t *testing.T) {
	f := newFixture(t)
	orderID := placeOrder(t, f)

	_, _, err := f.svc.CreatePayment(context.Background(), customer, orderID, decimal.NewNullDecimal(dec("10.001")))
	expectCode(t, err, apperr.CodeValidation)
	if f.gw.creates != 0 {
		t.Errorf("Expected no gateway calls, got %d", f.gw.creates)
	}
}

func TestWebhookMatchesPaymentIntentByOrderMetadata(t *testing.T) {
	f := newFixture(t)
	orderID := placeOrder(t, f)
	ctx := context.Background()
	if _, _, err := f.svc.CreatePayment(ctx, customer, orderID, decimal.NullDecimal{}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	n := payments.Notification{Event: "payment_intent.succeeded", RemoteID: "pi_test_1", Status: payments.StatusSucceeded}
	outcome, err := f.svc.HandleNotification(ctx, n)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if outcome != OutcomeUnknownPayment {
		t.Errorf("Expected %q without metadata, got %q", OutcomeUnknownPayment, outcome)
	}

	n.Metadata = map[string]string{"order_id": strconv.FormatInt(orderID, 10)}
	outcome, err = f.svc.HandleNotification(ctx, n)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Errorf("Expected %q, got %q", OutcomeApplied, outcome)
	}
	if got := f.order(t, orderID).Order.Status; got != orders.StatusPaid {
		t.Errorf("Expected paid, got %s", got)
	}
}
