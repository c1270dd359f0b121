package commerce

import (
	"context"
	"errors"
	"slices"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/inventory"
	"honnylove-backend/internal/orders"
	"honnylove-backend/internal/store"
	"honnylove-backend/internal/stores/kafka"
)

// GetOrder returns the order with its lines and history. Ownership is
// checked before anything beyond the header is loaded.
func (s *Service) GetOrder(ctx context.Context, actor Actor, id int64) (*orders.Details, error) {
	var details *orders.Details
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if !actor.canAccess(o.UserID) {
			return apperr.AccessDenied()
		}
		details, err = loadDetails(ctx, tx, o)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "get order")
	}
	return details, nil
}

func (s *Service) OrderHistory(ctx context.Context, actor Actor, id int64) ([]orders.StatusHistory, error) {
	var history []orders.StatusHistory
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if !actor.canAccess(o.UserID) {
			return apperr.AccessDenied()
		}
		history, err = tx.ListStatusHistory(ctx, id)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "order history")
	}
	return history, nil
}

// ListOrders returns the caller's orders, or every order for staff.
func (s *Service) ListOrders(ctx context.Context, actor Actor, filter orders.ListFilter) ([]orders.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Newf(apperr.CodeValidation, "unknown status %q", filter.Status)
	}
	if !actor.Staff {
		filter.UserID = actor.UserID
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	filter.Offset = max(filter.Offset, 0)

	var list []orders.Order
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		list, err = tx.ListOrders(ctx, filter)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list orders")
	}
	if list == nil {
		list = []orders.Order{}
	}
	return list, nil
}

// UpdateOrderStatus is the staff entry point to the status machine.
// Cancelling restocks; returned is reachable only through a refund.
func (s *Service) UpdateOrderStatus(ctx context.Context, actor Actor, id int64, target orders.Status) (_ *orders.Order, err error) {
	ctx, done := s.begin(ctx, "update_order_status", attribute.Int64("order.id", id), attribute.String("order.target", string(target)))
	defer done(&err)

	if !actor.Staff {
		return nil, apperr.AccessDenied()
	}
	if !target.Valid() {
		return nil, apperr.Newf(apperr.CodeValidation, "unknown status %q", target)
	}

	var (
		updated *orders.Order
		changed bool
	)
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case target == orders.StatusCancelled:
			changed, err = cancelInTx(ctx, tx, o, actor.id())
		case target == orders.StatusReturned && o.Status != orders.StatusReturned:
			allowed := slices.DeleteFunc(o.Status.Next(), func(st orders.Status) bool { return st == orders.StatusReturned })
			err = apperr.InvalidTransition(string(o.Status), string(target), orders.StatusStrings(allowed))
		default:
			changed, err = transition(ctx, tx, o, target, actor.id())
		}
		updated = o
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "update order status")
	}
	if changed {
		switch target {
		case orders.StatusPaid:
			s.publish(ctx, kafka.TopicOrderPaid, *updated, decimal.Zero)
		case orders.StatusCancelled:
			s.publish(ctx, kafka.TopicOrderCancelled, *updated, decimal.Zero)
		}
	}
	return updated, nil
}

// CancelOrder cancels and restocks. Customers may cancel their own pending
// orders; staff may cancel anything the status machine allows.
func (s *Service) CancelOrder(ctx context.Context, actor Actor, id int64) (_ *orders.Order, err error) {
	ctx, done := s.begin(ctx, "cancel_order", attribute.Int64("order.id", id))
	defer done(&err)

	var (
		updated *orders.Order
		changed bool
	)
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if !actor.canAccess(o.UserID) {
			return apperr.AccessDenied()
		}
		if !actor.Staff && o.Status != orders.StatusPending && o.Status != orders.StatusCancelled {
			return apperr.Newf(apperr.CodeInvalidTransition, "order in status %s can only be cancelled by staff or through a refund", o.Status)
		}
		changed, err = cancelInTx(ctx, tx, o, actor.id())
		updated = o
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "cancel order")
	}
	if changed {
		s.publish(ctx, kafka.TopicOrderCancelled, *updated, decimal.Zero)
	}
	return updated, nil
}

// cancelInTx flips o to cancelled and returns every line to the default location.
func cancelInTx(ctx context.Context, tx store.Tx, o *orders.Order, actor *int64) (bool, error) {
	if o.Status == orders.StatusCancelled {
		return false, nil
	}
	if !o.Status.Cancellable() {
		return false, apperr.InvalidTransition(string(o.Status), string(orders.StatusCancelled), orders.StatusStrings(o.Status.Next()))
	}
	if err := restock(ctx, tx, o.ID); err != nil {
		return false, err
	}
	return transition(ctx, tx, o, orders.StatusCancelled, actor)
}

func restock(ctx context.Context, tx store.Tx, orderID int64) error {
	items, err := tx.ListOrderItems(ctx, orderID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := inventory.Increment(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) PatchOrder(ctx context.Context, actor Actor, id int64, patch orders.Patch) (_ *orders.Order, err error) {
	ctx, done := s.begin(ctx, "patch_order", attribute.Int64("order.id", id))
	defer done(&err)

	if !actor.Staff {
		return nil, apperr.AccessDenied()
	}
	if err := s.check(patch); err != nil {
		return nil, err
	}
	for name, v := range map[string]*decimal.Decimal{
		"shipping_cost":   patch.ShippingCost,
		"tax_amount":      patch.TaxAmount,
		"discount_amount": patch.DiscountAmount,
	} {
		if v == nil {
			continue
		}
		if err := checkMoney(name, *v); err != nil {
			return nil, err
		}
	}
	var updated *orders.Order
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		items, err := tx.ListOrderItems(ctx, id)
		if err != nil {
			return err
		}
		if err := patch.Apply(o, items); err != nil {
			if errors.Is(err, orders.ErrAmountsNotPending) {
				return apperr.New(apperr.CodeInvalidTransition, err.Error())
			}
			return apperr.New(apperr.CodeValidation, err.Error())
		}
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "patch order")
	}
	return updated, nil
}

// AddOrderItem appends a line at the product's current price, reserves its
// stock and recomputes the total. Only pending orders can change.
func (s *Service) AddOrderItem(ctx context.Context, actor Actor, orderID, productID int64, quantity int) (_ *orders.Details, err error) {
	ctx, done := s.begin(ctx, "add_order_item", attribute.Int64("order.id", orderID), attribute.Int64("product.id", productID))
	defer done(&err)

	if !actor.Staff {
		return nil, apperr.AccessDenied()
	}
	if quantity <= 0 {
		return nil, apperr.New(apperr.CodeValidation, "quantity must be positive")
	}
	var details *orders.Details
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := lockPendingOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		p, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !p.Active {
			return apperr.Newf(apperr.CodeValidation, "product %d is not available", productID)
		}
		if _, err := inventory.Decrement(ctx, tx, productID, quantity); err != nil {
			return err
		}
		item := orders.Item{
			OrderID:       orderID,
			ProductID:     productID,
			ProductName:   p.Name,
			Quantity:      quantity,
			UnitPrice:     p.Price,
			DiscountPrice: p.DiscountPrice,
		}
		if err := tx.InsertOrderItem(ctx, &item); err != nil {
			return err
		}
		if err := recalculate(ctx, tx, o); err != nil {
			return err
		}
		details, err = loadDetails(ctx, tx, o)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "add order item")
	}
	return details, nil
}

// RemoveOrderItem deletes a line, restocks it and recomputes the total. The
// last line cannot be removed; cancel the order instead.
func (s *Service) RemoveOrderItem(ctx context.Context, actor Actor, orderID, itemID int64) (_ *orders.Details, err error) {
	ctx, done := s.begin(ctx, "remove_order_item", attribute.Int64("order.id", orderID))
	defer done(&err)

	if !actor.Staff {
		return nil, apperr.AccessDenied()
	}
	var details *orders.Details
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := lockPendingOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		items, err := tx.ListOrderItems(ctx, orderID)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(items, func(it orders.Item) bool { return it.ID == itemID })
		if idx < 0 {
			return apperr.NotFound("order item")
		}
		if len(items) == 1 {
			return apperr.New(apperr.CodeConflict, "cannot remove the last item of an order; cancel the order instead")
		}
		if err := tx.DeleteOrderItem(ctx, orderID, itemID); err != nil {
			return err
		}
		if err := inventory.Increment(ctx, tx, items[idx].ProductID, items[idx].Quantity); err != nil {
			return err
		}
		if err := recalculate(ctx, tx, o); err != nil {
			return err
		}
		details, err = loadDetails(ctx, tx, o)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "remove order item")
	}
	return details, nil
}

// DeleteOrder removes a pending or cancelled order that never had a payment.
// Pending orders are restocked first.
func (s *Service) DeleteOrder(ctx context.Context, actor Actor, id int64) (err error) {
	ctx, done := s.begin(ctx, "delete_order", attribute.Int64("order.id", id))
	defer done(&err)

	if !actor.Staff {
		return apperr.AccessDenied()
	}
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if o.Status != orders.StatusPending && o.Status != orders.StatusCancelled {
			return apperr.Newf(apperr.CodeConflict, "order in status %s cannot be deleted", o.Status)
		}
		n, err := tx.CountPayments(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.New(apperr.CodeConflict, "order has payment records and cannot be deleted")
		}
		if o.Status == orders.StatusPending {
			if err := restock(ctx, tx, id); err != nil {
				return err
			}
		}
		return tx.DeleteOrder(ctx, id)
	})
	return apperr.Wrap(apperr.CodeInternal, err, "delete order")
}

func lockPendingOrder(ctx context.Context, tx store.Tx, id int64) (*orders.Order, error) {
	o, err := tx.LockOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != orders.StatusPending {
		return nil, apperr.Newf(apperr.CodeConflict, "items can only change while the order is pending (status %s)", o.Status)
	}
	return o, nil
}

func recalculate(ctx context.Context, tx store.Tx, o *orders.Order) error {
	items, err := tx.ListOrderItems(ctx, o.ID)
	if err != nil {
		return err
	}
	o.Recalculate(items)
	if o.Total.IsNegative() {
		return apperr.New(apperr.CodeValidation, "order total would become negative")
	}
	return tx.UpdateOrder(ctx, o)
}

func loadDetails(ctx context.Context, tx store.Tx, o *orders.Order) (*orders.Details, error) {
	items, err := tx.ListOrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	history, err := tx.ListStatusHistory(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []orders.Item{}
	}
	if history == nil {
		history = []orders.StatusHistory{}
	}
	return &orders.Details{Order: *o, Number: o.Number(), Items: items, History: history}, nil
}
