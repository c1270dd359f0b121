package commerce

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/inventory"
	"honnylove-backend/internal/orders"
	"honnylove-backend/internal/store"
	"honnylove-backend/internal/stores/kafka"
	"honnylove-backend/pkg/logging"
	"honnylove-backend/pkg/logkey"
)

type CheckoutInput struct {
	ShippingAddress string               `json:"shipping_address" validate:"required,min=10,max=500"`
	PaymentMethod   orders.PaymentMethod `json:"payment_method" validate:"required,oneof=card cash online"`
	ShippingCost    decimal.Decimal      `json:"shipping_cost" validate:"-"`
	TaxAmount       decimal.Decimal      `json:"tax_amount" validate:"-"`
	DiscountAmount  decimal.Decimal      `json:"discount_amount" validate:"-"`
	Notes           string               `json:"notes" validate:"max=2000"`
}

func (s *Service) validateCheckout(in *CheckoutInput) error {
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	if err := s.check(in); err != nil {
		return err
	}
	for name, v := range map[string]decimal.Decimal{
		"shipping_cost":   in.ShippingCost,
		"tax_amount":      in.TaxAmount,
		"discount_amount": in.DiscountAmount,
	} {
		if v.IsNegative() {
			return &apperr.Error{
				Code:    apperr.CodeValidation,
				Message: name + " must not be negative",
				Details: map[string]any{"fields": map[string]any{name: name + " must not be negative"}},
			}
		}
		if err := checkMoney(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Checkout turns the user's cart into a pending order. Stock is reserved and
// the cart cleared in the same transaction; on any error nothing changes.
func (s *Service) Checkout(ctx context.Context, userID int64, in CheckoutInput) (_ *orders.Details, err error) {
	ctx, done := s.begin(ctx, "checkout", attribute.Int64("user.id", userID))
	defer done(&err)

	if err := s.validateCheckout(&in); err != nil {
		return nil, err
	}

	var details *orders.Details
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		lines, err := tx.CartLines(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperr.New(apperr.CodeEmptyCart, "cart is empty")
		}
		for _, line := range lines {
			if !line.Active {
				return &apperr.Error{
					Code:    apperr.CodeEmptyCart,
					Message: "cart contains a product that is no longer available",
					Details: map[string]any{"product_id": line.ProductID},
				}
			}
		}

		// lines arrive ordered by product id, so stock rows are locked in a
		// consistent order across concurrent checkouts
		for _, line := range lines {
			records, err := tx.LockStock(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if avail := inventory.Available(records); avail < line.Quantity {
				return apperr.InsufficientStock(line.ProductID, line.Quantity, avail)
			}
		}

		items := make([]orders.Item, 0, len(lines))
		for _, line := range lines {
			items = append(items, orders.Item{
				ProductID:     line.ProductID,
				ProductName:   line.ProductName,
				Quantity:      line.Quantity,
				UnitPrice:     line.Price,
				DiscountPrice: line.DiscountPrice,
			})
		}
		o := &orders.Order{
			UserID:          userID,
			Status:          orders.StatusPending,
			ShippingCost:    in.ShippingCost,
			TaxAmount:       in.TaxAmount,
			DiscountAmount:  in.DiscountAmount,
			ShippingAddress: in.ShippingAddress,
			PaymentMethod:   in.PaymentMethod,
			Notes:           in.Notes,
		}
		o.Recalculate(items)
		if o.Total.IsNegative() {
			return apperr.New(apperr.CodeValidation, "discount_amount exceeds the order value")
		}

		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = o.ID
			if err := tx.InsertOrderItem(ctx, &items[i]); err != nil {
				return err
			}
		}
		h := orders.StatusHistory{OrderID: o.ID, Status: orders.StatusPending, ActorID: &userID}
		if err := tx.AppendStatusHistory(ctx, &h); err != nil {
			return err
		}
		for _, item := range items {
			taken, err := inventory.Decrement(ctx, tx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			logging.FromContext(ctx).Debug("stock reserved",
				zap.Int64(logkey.OrderID, o.ID), zap.Int64(logkey.ProductID, item.ProductID), zap.Any("allocations", taken))
		}
		if err := tx.ClearCart(ctx, userID); err != nil {
			return err
		}

		details = &orders.Details{Order: *o, Number: o.Number(), Items: items, History: []orders.StatusHistory{h}}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "checkout")
	}

	logging.FromContext(ctx).Info("order created",
		zap.Int64(logkey.OrderID, details.Order.ID), zap.Int64(logkey.UserID, userID), zap.String("total", details.Order.Total.StringFixed(2)))
	s.publish(ctx, kafka.TopicOrderCreated, details.Order, decimal.Zero)
	return details, nil
}
