package commerce

import (
	"context"
	"strings"

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

const defaultCancelReason = "order cancelled by request"

type RefundResult struct {
	Refund payments.Refund `json:"refund"`
	Order  orders.Order    `json:"order"`
	Full   bool            `json:"full"`
}

// Refund issues a gateway refund against the order's succeeded payment. An
// invalid amount means the whole remaining refundable balance. Reaching the
// full payment amount moves the order to returned and restocks every line.
func (s *Service) Refund(ctx context.Context, actor Actor, orderID int64, amount decimal.NullDecimal, reason string) (_ *RefundResult, err error) {
	ctx, done := s.begin(ctx, "refund", attribute.Int64("order.id", orderID))
	defer done(&err)

	if !actor.Staff {
		return nil, apperr.AccessDenied()
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.New(apperr.CodeValidation, "reason value missing")
	}
	if amount.Valid {
		if !amount.Decimal.IsPositive() {
			return nil, apperr.New(apperr.CodeValidation, "amount must be greater than zero")
		}
		if err := checkMoney("amount", amount.Decimal); err != nil {
			return nil, err
		}
	}
	return s.refund(ctx, actor, orderID, amount, reason, false)
}

// CancelPaidOrder refunds a paid order in full, which returns it and its stock.
func (s *Service) CancelPaidOrder(ctx context.Context, actor Actor, orderID int64, reason string) (_ *RefundResult, err error) {
	ctx, done := s.begin(ctx, "cancel_paid_order", attribute.Int64("order.id", orderID))
	defer done(&err)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultCancelReason
	}
	return s.refund(ctx, actor, orderID, decimal.NullDecimal{}, reason, true)
}

func (s *Service) refund(ctx context.Context, actor Actor, orderID int64, amount decimal.NullDecimal, reason string, requirePaid bool) (*RefundResult, error) {
	log := logging.FromContext(ctx).With(zap.Int64(logkey.OrderID, orderID))

	var result RefundResult
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.canAccess(o.UserID) {
			return apperr.AccessDenied()
		}
		switch {
		case requirePaid && o.Status != orders.StatusPaid:
			return apperr.Newf(apperr.CodeInvalidTransition, "only paid orders can be cancelled with a refund (status %s)", o.Status)
		case !o.Status.Refundable():
			return apperr.InvalidTransition(string(o.Status), string(orders.StatusReturned), orders.StatusStrings(o.Status.Next()))
		}

		p, err := tx.LockSucceededPayment(ctx, orderID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperr.NotFound("succeeded payment")
		}

		// the payment row is locked, so the balance cannot move under us
		refundable := p.Refundable()
		value := refundable
		if amount.Valid {
			value = amount.Decimal
		}
		if !refundable.IsPositive() || value.GreaterThan(refundable) {
			return apperr.ExceedsRefundable(value, refundable)
		}

		remote, err := s.gateway.CreateRefund(ctx, gateway.CreateRefundParams{
			RemotePaymentID: p.RemoteID,
			Amount:          value,
			Currency:        p.Currency,
			Reason:          reason,
			IdempotencyKey:  uuid.NewString(),
		})
		if err != nil {
			return apperr.Gateway(err, "payment gateway could not create the refund")
		}

		if err := s.recordRefund(ctx, tx, o, p, remote, value, reason, actor, &result); err != nil {
			log.Error("remote refund created but local update failed",
				zap.Int64(logkey.PaymentID, p.ID), zap.String("remote_refund_id", remote.ID), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "refund")
	}

	log.Info("refund issued",
		zap.String("amount", result.Refund.Amount.StringFixed(2)),
		zap.Bool("full", result.Full),
		zap.String(logkey.Status, string(result.Order.Status)))
	if result.Full {
		s.publish(ctx, kafka.TopicOrderReturned, result.Order, result.Refund.Amount)
	}
	return &result, nil
}

func (s *Service) recordRefund(ctx context.Context, tx store.Tx, o *orders.Order, p *payments.Payment, remote *gateway.RemoteRefund, value decimal.Decimal, reason string, actor Actor, result *RefundResult) error {
	r := payments.Refund{
		PaymentID: p.ID,
		RemoteID:  remote.ID,
		Amount:    value,
		Status:    remote.Status,
		Reason:    reason,
	}
	if err := tx.InsertRefund(ctx, &r); err != nil {
		return err
	}
	p.RefundAmount = p.RefundAmount.Add(value)
	if err := tx.UpdatePayment(ctx, p); err != nil {
		return err
	}

	full := p.RefundAmount.GreaterThanOrEqual(p.Amount)
	if full {
		if err := restock(ctx, tx, o.ID); err != nil {
			return err
		}
		if _, err := transition(ctx, tx, o, orders.StatusReturned, actor.id()); err != nil {
			return err
		}
	}
	*result = RefundResult{Refund: r, Order: *o, Full: full}
	return nil
}

// ListRefunds returns the refunds recorded against the order's payment.
func (s *Service) ListRefunds(ctx context.Context, actor Actor, orderID int64) ([]payments.Refund, error) {
	var refunds []payments.Refund
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.canAccess(o.UserID) {
			return apperr.AccessDenied()
		}
		p, err := tx.LatestPayment(ctx, orderID)
		if err != nil || p == nil {
			return err
		}
		refunds, err = tx.ListRefunds(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list refunds")
	}
	if refunds == nil {
		refunds = []payments.Refund{}
	}
	return refunds, nil
}
