package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/cart"
	"honnylove-backend/internal/inventory"
	"honnylove-backend/internal/orders"
	"honnylove-backend/internal/payments"
	"honnylove-backend/internal/products"
	"honnylove-backend/internal/users"
)

type tx struct {
	st  *state
	now time.Time
}

// users

func (t *tx) InsertUser(_ context.Context, u *users.User) error {
	email := strings.ToLower(u.Email)
	for _, existing := range t.st.users {
		if strings.ToLower(existing.Email) == email {
			return apperr.New(apperr.CodeConflict, "email already registered")
		}
	}
	u.ID = t.st.next("users")
	u.CreatedAt = t.now
	t.st.users[u.ID] = *u
	return nil
}

func (t *tx) GetUserByEmail(_ context.Context, email string) (*users.User, error) {
	email = strings.ToLower(email)
	for _, u := range t.st.users {
		if strings.ToLower(u.Email) == email {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (t *tx) GetUser(_ context.Context, id int64) (*users.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return &u, nil
}

// products

func (t *tx) InsertProduct(_ context.Context, p *products.Product) error {
	p.ID = t.st.next("products")
	p.CreatedAt, p.UpdatedAt = t.now, t.now
	t.st.products[p.ID] = *p
	return nil
}

func (t *tx) GetProduct(_ context.Context, id int64) (*products.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return nil, apperr.NotFound("product")
	}
	return &p, nil
}

func (t *tx) UpdateProduct(_ context.Context, p *products.Product) error {
	if _, ok := t.st.products[p.ID]; !ok {
		return apperr.NotFound("product")
	}
	p.UpdatedAt = t.now
	t.st.products[p.ID] = *p
	return nil
}

func (t *tx) ListProducts(_ context.Context, activeOnly bool) ([]products.Product, error) {
	var out []products.Product
	for _, p := range sortedValues(t.st.products) {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// cart

func (t *tx) CartLines(_ context.Context, userID int64) ([]cart.Line, error) {
	var lines []cart.Line
	for key, qty := range t.st.cart {
		if key.userID != userID {
			continue
		}
		line := cart.Line{ProductID: key.productID, Quantity: qty}
		if p, ok := t.st.products[key.productID]; ok {
			line.ProductName = p.Name
			line.Price = p.Price
			line.DiscountPrice = p.DiscountPrice
			line.Active = p.Active
		}
		lines = append(lines, line)
	}
	slices.SortFunc(lines, func(a, b cart.Line) int { return cmp.Compare(a.ProductID, b.ProductID) })
	return lines, nil
}

func (t *tx) CartQuantity(_ context.Context, userID, productID int64) (int, error) {
	return t.st.cart[cartKey{userID, productID}], nil
}

func (t *tx) SetCartItem(_ context.Context, userID, productID int64, quantity int) error {
	if _, ok := t.st.products[productID]; !ok {
		return apperr.NotFound("product")
	}
	t.st.cart[cartKey{userID, productID}] = quantity
	return nil
}

func (t *tx) DeleteCartItem(_ context.Context, userID, productID int64) (bool, error) {
	key := cartKey{userID, productID}
	if _, ok := t.st.cart[key]; !ok {
		return false, nil
	}
	delete(t.st.cart, key)
	return true, nil
}

func (t *tx) ClearCart(_ context.Context, userID int64) error {
	for key := range t.st.cart {
		if key.userID == userID {
			delete(t.st.cart, key)
		}
	}
	return nil
}

// inventory

func (t *tx) withLocation(rec inventory.Record) inventory.Record {
	loc := t.st.locations[rec.LocationID]
	rec.LocationName = loc.Name
	rec.LocationActive = loc.Active
	return rec
}

func (t *tx) LockStock(_ context.Context, productID int64) ([]inventory.Record, error) {
	var out []inventory.Record
	for key, rec := range t.st.stock {
		if key.productID != productID || !t.st.locations[key.locationID].Active {
			continue
		}
		out = append(out, t.withLocation(rec))
	}
	slices.SortFunc(out, func(a, b inventory.Record) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.LocationID, b.LocationID)
	})
	return out, nil
}

func (t *tx) LockRecord(_ context.Context, productID, locationID int64) (*inventory.Record, error) {
	rec, ok := t.st.stock[stockKey{productID, locationID}]
	if !ok {
		return nil, nil
	}
	rec = t.withLocation(rec)
	return &rec, nil
}

func (t *tx) SaveRecord(_ context.Context, rec inventory.Record) error {
	if _, ok := t.st.locations[rec.LocationID]; !ok {
		return apperr.NotFound("location")
	}
	if _, ok := t.st.products[rec.ProductID]; !ok {
		return apperr.NotFound("product")
	}
	if rec.Quantity < 0 {
		return apperr.InsufficientStock(rec.ProductID, -rec.Quantity, 0)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = t.now
	}
	t.st.stock[stockKey{rec.ProductID, rec.LocationID}] = rec
	return nil
}

func (t *tx) ListStock(_ context.Context, productID int64) ([]inventory.Record, error) {
	var out []inventory.Record
	for key, rec := range t.st.stock {
		if key.productID == productID {
			out = append(out, t.withLocation(rec))
		}
	}
	slices.SortFunc(out, func(a, b inventory.Record) int { return cmp.Compare(a.LocationID, b.LocationID) })
	return out, nil
}

func (t *tx) LowStock(_ context.Context) ([]inventory.Record, error) {
	var out []inventory.Record
	for key, rec := range t.st.stock {
		if !t.st.locations[key.locationID].Active || rec.Quantity > rec.MinStock {
			continue
		}
		out = append(out, t.withLocation(rec))
	}
	slices.SortFunc(out, func(a, b inventory.Record) int {
		if c := cmp.Compare(a.ProductID, b.ProductID); c != 0 {
			return c
		}
		return cmp.Compare(a.LocationID, b.LocationID)
	})
	return out, nil
}

func (t *tx) LocationExists(_ context.Context, locationID int64) (bool, error) {
	_, ok := t.st.locations[locationID]
	return ok, nil
}

// orders

func (t *tx) InsertOrder(_ context.Context, o *orders.Order) error {
	o.ID = t.st.next("orders")
	o.CreatedAt, o.UpdatedAt = t.now, t.now
	t.st.orders[o.ID] = *o
	return nil
}

func (t *tx) GetOrder(_ context.Context, id int64) (*orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return nil, apperr.NotFound("order")
	}
	return &o, nil
}

func (t *tx) LockOrder(ctx context.Context, id int64) (*orders.Order, error) {
	return t.GetOrder(ctx, id)
}

func (t *tx) UpdateOrder(_ context.Context, o *orders.Order) error {
	if _, ok := t.st.orders[o.ID]; !ok {
		return apperr.NotFound("order")
	}
	o.UpdatedAt = t.now
	t.st.orders[o.ID] = *o
	return nil
}

func (t *tx) DeleteOrder(_ context.Context, id int64) error {
	if _, ok := t.st.orders[id]; !ok {
		return apperr.NotFound("order")
	}
	delete(t.st.orders, id)
	for itemID, item := range t.st.items {
		if item.OrderID == id {
			delete(t.st.items, itemID)
		}
	}
	t.st.history = slices.DeleteFunc(t.st.history, func(h orders.StatusHistory) bool { return h.OrderID == id })
	return nil
}

func (t *tx) ListOrders(_ context.Context, filter orders.ListFilter) ([]orders.Order, error) {
	var out []orders.Order
	for _, o := range t.st.orders {
		if filter.UserID != 0 && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b orders.Order) int { return cmp.Compare(b.ID, a.ID) })
	return paginate(out, filter.Offset, filter.Limit), nil
}

func (t *tx) InsertOrderItem(_ context.Context, item *orders.Item) error {
	if _, ok := t.st.orders[item.OrderID]; !ok {
		return apperr.NotFound("order")
	}
	item.ID = t.st.next("order_items")
	t.st.items[item.ID] = *item
	return nil
}

func (t *tx) ListOrderItems(_ context.Context, orderID int64) ([]orders.Item, error) {
	var out []orders.Item
	for _, item := range sortedValues(t.st.items) {
		if item.OrderID == orderID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (t *tx) DeleteOrderItem(_ context.Context, orderID, itemID int64) error {
	item, ok := t.st.items[itemID]
	if !ok || item.OrderID != orderID {
		return apperr.NotFound("order item")
	}
	delete(t.st.items, itemID)
	return nil
}

func (t *tx) AppendStatusHistory(_ context.Context, h *orders.StatusHistory) error {
	h.ID = t.st.next("order_status_history")
	if h.CreatedAt.IsZero() {
		h.CreatedAt = t.now
	}
	t.st.history = append(t.st.history, *h)
	return nil
}

func (t *tx) ListStatusHistory(_ context.Context, orderID int64) ([]orders.StatusHistory, error) {
	var out []orders.StatusHistory
	for _, h := range t.st.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

// payments

func (t *tx) InsertPayment(_ context.Context, p *payments.Payment) error {
	for _, existing := range t.st.payments {
		if p.RemoteID != "" && existing.RemoteID == p.RemoteID {
			return apperr.New(apperr.CodeConflict, "payment remote id already recorded")
		}
	}
	p.ID = t.st.next("payments")
	p.CreatedAt, p.UpdatedAt = t.now, t.now
	p.Metadata = maps.Clone(p.Metadata)
	t.st.payments[p.ID] = *p
	return nil
}

func (t *tx) UpdatePayment(_ context.Context, p *payments.Payment) error {
	if _, ok := t.st.payments[p.ID]; !ok {
		return apperr.NotFound("payment")
	}
	p.UpdatedAt = t.now
	t.st.payments[p.ID] = *p
	return nil
}

func (t *tx) LatestPayment(_ context.Context, orderID int64) (*payments.Payment, error) {
	var latest *payments.Payment
	for _, p := range sortedValues(t.st.payments) {
		if p.OrderID == orderID {
			latest = &p
		}
	}
	return latest, nil
}

func (t *tx) FindPaymentByRemoteID(ctx context.Context, remoteID string) (*payments.Payment, error) {
	return t.LockPaymentByRemoteID(ctx, remoteID)
}

func (t *tx) LockPaymentByRemoteID(_ context.Context, remoteID string) (*payments.Payment, error) {
	for _, p := range t.st.payments {
		if p.RemoteID == remoteID {
			return &p, nil
		}
	}
	return nil, nil
}

func (t *tx) LockSucceededPayment(_ context.Context, orderID int64) (*payments.Payment, error) {
	var found *payments.Payment
	for _, p := range sortedValues(t.st.payments) {
		if p.OrderID == orderID && p.Status == payments.StatusSucceeded {
			found = &p
		}
	}
	return found, nil
}

func (t *tx) CountPayments(_ context.Context, orderID int64) (int, error) {
	n := 0
	for _, p := range t.st.payments {
		if p.OrderID == orderID {
			n++
		}
	}
	return n, nil
}

func (t *tx) InsertRefund(_ context.Context, r *payments.Refund) error {
	if _, ok := t.st.payments[r.PaymentID]; !ok {
		return apperr.NotFound("payment")
	}
	r.ID = t.st.next("refunds")
	r.CreatedAt = t.now
	t.st.refunds = append(t.st.refunds, *r)
	return nil
}

func (t *tx) ListRefunds(_ context.Context, paymentID int64) ([]payments.Refund, error) {
	var out []payments.Refund
	for _, r := range t.st.refunds {
		if r.PaymentID == paymentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func sortedValues[V any](m map[int64]V) []V {
	keys := slices.Sorted(maps.Keys(m))
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
