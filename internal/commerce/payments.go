package commerce

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/gateway"
	"honnylove-backend/internal/orders"
	"honnylove-backend/internal/payments"
	"honnylove-backend/internal/store"
	"honnylove-backend/internal/stores/kafka"
	"honnylove-backend/pkg/logging"
	"honnylove-backend/pkg/logkey"
)

// Webhook outcomes, also used as the metrics label.
const (
	OutcomeApplied        = "applied"
	OutcomeUnchanged      = "unchanged"
	OutcomeReplayed       = "replayed"
	OutcomeUnknownPayment = "unknown_payment"
	OutcomeFailed         = "failed"
)

// PaymentView merges the local payment with what the gateway reports.
type PaymentView struct {
	Payment      payments.Payment `json:"payment"`
	RemoteStatus string           `json:"remote_status"`
	OrderStatus  orders.Status    `json:"order_status"`
}

// CreatePayment opens a gateway transaction for the order. An existing
// payment that is not canceled is returned instead of creating another one;
// created reports which case happened. A zero amount means the order total.
func (s *Service) CreatePayment(ctx context.Context, actor Actor, orderID int64, amount decimal.NullDecimal) (_ *payments.Payment, created bool, err error) {
	ctx, done := s.begin(ctx, "create_payment", attribute.Int64("order.id", orderID))
	defer done(&err)

	if amount.Valid {
		if !amount.Decimal.IsPositive() {
			return nil, false, apperr.New(apperr.CodeValidation, "amount must be greater than zero")
		}
		if err := checkMoney("amount", amount.Decimal); err != nil {
			return nil, false, err
		}
	}

	var payment *payments.Payment
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.canAccess(o.UserID) {
			return apperr.AccessDenied()
		}
		existing, err := tx.LatestPayment(ctx, orderID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status != payments.StatusCanceled {
			payment = existing
			return nil
		}
		if o.Status != orders.StatusPending {
			return apperr.Newf(apperr.CodeInvalidTransition, "order in status %s cannot be paid", o.Status)
		}

		value := o.Total
		if amount.Valid {
			value = amount.Decimal
		}
		if !value.IsPositive() {
			return apperr.New(apperr.CodeValidation, "amount must be greater than zero")
		}
		if value.GreaterThan(o.Total) {
			return apperr.Newf(apperr.CodeValidation, "amount %s exceeds order total %s", value.StringFixed(2), o.Total.StringFixed(2))
		}

		metadata := map[string]string{
			"order_id": strconv.FormatInt(o.ID, 10),
			"user_id":  strconv.FormatInt(o.UserID, 10),
		}
		key := uuid.NewString()
		remote, err := s.gateway.CreatePayment(ctx, gateway.CreatePaymentParams{
			Amount:         value,
			Currency:       s.currency,
			Description:    "Order #" + o.Number(),
			Metadata:       metadata,
			ReturnURL:      s.returnURL,
			IdempotencyKey: key,
		})
		if err != nil {
			return apperr.Gateway(err, "payment gateway could not create the payment")
		}

		payment = &payments.Payment{
			OrderID:         o.ID,
			RemoteID:        remote.ID,
			IdempotencyKey:  key,
			Amount:          value,
			Currency:        s.currency,
			Status:          remote.Status,
			RefundAmount:    decimal.Zero,
			ConfirmationURL: remote.ConfirmationURL,
			Metadata:        metadata,
			CapturedAt:      remote.CapturedAt,
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			logging.FromContext(ctx).Error("remote payment created but not stored",
				zap.Int64(logkey.OrderID, o.ID), zap.String(logkey.RemoteID, remote.ID), zap.Error(err))
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, apperr.Wrap(apperr.CodeInternal, err, "create payment")
	}
	return payment, created, nil
}

// HandleNotification applies one gateway notification. The returned outcome
// describes what happened; callers acknowledge the gateway regardless.
func (s *Service) HandleNotification(ctx context.Context, n payments.Notification) (outcome string, err error) {
	ctx, done := s.begin(ctx, "webhook", attribute.String("payment.remote_id", n.RemoteID), attribute.String("payment.status", string(n.Status)))
	defer func() {
		if err != nil {
			outcome = OutcomeFailed
		}
		s.metrics.ObserveWebhook(string(n.Status), outcome)
		done(&err)
	}()

	log := logging.FromContext(ctx).With(
		zap.String(logkey.RemoteID, n.RemoteID),
		zap.String(logkey.Event, n.Event),
		zap.String(logkey.Status, string(n.Status)),
	)
	replayKey := n.RemoteID + ":" + string(n.Status)
	if s.replay != nil {
		seen, err := s.replay.Seen(ctx, replayKey)
		if err != nil {
			log.Warn("replay cache lookup failed", zap.Error(err))
		} else if seen {
			log.Debug("webhook already processed")
			return OutcomeReplayed, nil
		}
	}

	var paid *orders.Order
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		o, p, err := lockNotifiedPayment(ctx, tx, n)
		if err != nil {
			return err
		}
		if p == nil {
			outcome = OutcomeUnknownPayment
			return nil
		}
		if n.Status == payments.StatusSucceeded && n.Amount.Valid && !n.Amount.Decimal.Equal(p.Amount) {
			log.Warn("webhook amount differs from stored payment",
				zap.String("expected", p.Amount.StringFixed(2)), zap.String("got", n.Amount.Decimal.StringFixed(2)))
		}
		var changed bool
		changed, paid, err = applyPaymentStatus(ctx, tx, o, p, n.Status, n.CapturedAt)
		if err != nil {
			return err
		}
		outcome = OutcomeUnchanged
		if changed {
			outcome = OutcomeApplied
		}
		return nil
	})
	if err != nil {
		log.Error("webhook processing failed", zap.Error(err))
		return OutcomeFailed, apperr.Wrap(apperr.CodeInternal, err, "handle webhook")
	}
	if outcome == OutcomeUnknownPayment {
		log.Warn("webhook for unknown payment")
		return outcome, nil
	}

	if s.replay != nil {
		if err := s.replay.Mark(ctx, replayKey); err != nil {
			log.Warn("replay cache write failed", zap.Error(err))
		}
	}
	if paid != nil {
		log.Info("order paid", zap.Int64(logkey.OrderID, paid.ID))
		s.publish(ctx, kafka.TopicOrderPaid, *paid, decimal.Zero)
	}
	return outcome, nil
}

// CheckPaymentStatus re-reads the latest payment from the gateway and applies
// it the same way a webhook would.
func (s *Service) CheckPaymentStatus(ctx context.Context, actor Actor, orderID int64) (_ *PaymentView, err error) {
	ctx, done := s.begin(ctx, "check_payment_status", attribute.Int64("order.id", orderID))
	defer done(&err)

	var local *payments.Payment
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.canAccess(o.UserID) {
			return apperr.AccessDenied()
		}
		local, err = tx.LatestPayment(ctx, orderID)
		if err != nil {
			return err
		}
		if local == nil {
			return apperr.NotFound("payment")
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "check payment status")
	}

	remote, err := s.gateway.GetPayment(ctx, local.RemoteID)
	if err != nil {
		return nil, apperr.Gateway(err, "payment gateway could not report the payment status")
	}

	var (
		view PaymentView
		paid *orders.Order
	)
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		p, err := tx.LockPaymentByRemoteID(ctx, local.RemoteID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperr.NotFound("payment")
		}
		if _, paid, err = applyPaymentStatus(ctx, tx, o, p, remote.Status, remote.CapturedAt); err != nil {
			return err
		}
		view = PaymentView{Payment: *p, RemoteStatus: remote.RawStatus, OrderStatus: o.Status}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "check payment status")
	}
	if paid != nil {
		s.publish(ctx, kafka.TopicOrderPaid, *paid, decimal.Zero)
	}
	return &view, nil
}

// lockNotifiedPayment finds the payment a notification refers to and locks
// its order and then the payment row, the same order refunds use. Events
// keyed by a payment intent id fall back to the order_id the checkout session
// copies into the intent metadata. A nil payment means none matched.
func lockNotifiedPayment(ctx context.Context, tx store.Tx, n payments.Notification) (*orders.Order, *payments.Payment, error) {
	found, err := tx.FindPaymentByRemoteID(ctx, n.RemoteID)
	if err != nil {
		return nil, nil, err
	}
	if found == nil {
		orderID, perr := strconv.ParseInt(n.Metadata["order_id"], 10, 64)
		if perr != nil {
			return nil, nil, nil
		}
		if found, err = tx.LatestPayment(ctx, orderID); err != nil || found == nil {
			return nil, nil, err
		}
	}
	o, err := tx.LockOrder(ctx, found.OrderID)
	if err != nil {
		return nil, nil, err
	}
	p, err := tx.LockPaymentByRemoteID(ctx, found.RemoteID)
	if err != nil || p == nil {
		return nil, nil, err
	}
	return o, p, nil
}

// applyPaymentStatus moves the locked payment to status. On success the
// locked order o is moved to paid only while it is still pending, so replays
// and late notifications never move it again. A succeeded payment is never
// downgraded. paid is the order when this call transitioned it.
func applyPaymentStatus(ctx context.Context, tx store.Tx, o *orders.Order, p *payments.Payment, status payments.Status, capturedAt *time.Time) (changed bool, paid *orders.Order, err error) {
	switch status {
	case payments.StatusSucceeded:
		if p.Status != payments.StatusSucceeded {
			p.Status = payments.StatusSucceeded
			if capturedAt == nil {
				now := time.Now().UTC()
				capturedAt = &now
			}
			p.CapturedAt = capturedAt
			if err := tx.UpdatePayment(ctx, p); err != nil {
				return false, nil, err
			}
			changed = true
		}
		if o.Status == orders.StatusPending {
			if _, err := transition(ctx, tx, o, orders.StatusPaid, nil); err != nil {
				return false, nil, err
			}
			return true, o, nil
		}
		return changed, nil, nil

	case payments.StatusCanceled:
		if p.Status == payments.StatusSucceeded || p.Status == payments.StatusCanceled {
			return false, nil, nil
		}
		p.Status = payments.StatusCanceled
		return true, nil, tx.UpdatePayment(ctx, p)

	case payments.StatusWaitingForCapture:
		if p.Status != payments.StatusPending {
			return false, nil, nil
		}
		p.Status = payments.StatusWaitingForCapture
		return true, nil, tx.UpdatePayment(ctx, p)
	}
	return false, nil, nil
}
