package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/orders"
)

const orderColumns = `id, user_id, status, subtotal, shipping_cost, tax_amount, discount_amount, total,
	shipping_address, payment_method, tracking_number, notes, created_at, updated_at`

func (t *tx) InsertOrder(ctx context.Context, o *orders.Order) error {
	query := `
		INSERT INTO orders (user_id, status, subtotal, shipping_cost, tax_amount, discount_amount, total,
			shipping_address, payment_method, tracking_number, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`
	err := t.tx.QueryRowContext(ctx, query,
		o.UserID, o.Status, o.Subtotal, o.ShippingCost, o.TaxAmount, o.DiscountAmount, o.Total,
		o.ShippingAddress, o.PaymentMethod, o.TrackingNumber, o.Notes,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", translate(err, "order"))
	}
	return nil
}

func (t *tx) GetOrder(ctx context.Context, id int64) (*orders.Order, error) {
	return t.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (t *tx) LockOrder(ctx context.Context, id int64) (*orders.Order, error) {
	return t.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (t *tx) getOrder(ctx context.Context, query string, id int64) (*orders.Order, error) {
	o, err := scanOrder(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("order")
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (t *tx) UpdateOrder(ctx context.Context, o *orders.Order) error {
	query := `
		UPDATE orders
		SET status = $2, subtotal = $3, shipping_cost = $4, tax_amount = $5, discount_amount = $6, total = $7,
			shipping_address = $8, tracking_number = $9, notes = $10, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := t.tx.QueryRowContext(ctx, query,
		o.ID, o.Status, o.Subtotal, o.ShippingCost, o.TaxAmount, o.DiscountAmount, o.Total,
		o.ShippingAddress, o.TrackingNumber, o.Notes,
	).Scan(&o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("order")
		}
		return fmt.Errorf("failed to update order: %w", translate(err, "order"))
	}
	return nil
}

func (t *tx) DeleteOrder(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", translate(err, "order"))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("order")
	}
	return nil
}

func (t *tx) ListOrders(ctx context.Context, filter orders.ListFilter) ([]orders.Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != 0 {
		args = append(args, filter.UserID)
		where = append(where, "user_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var out []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return out, nil
}

func scanOrder(row scanner) (*orders.Order, error) {
	var (
		o        orders.Order
		tracking sql.NullString
	)
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.Subtotal, &o.ShippingCost, &o.TaxAmount, &o.DiscountAmount, &o.Total,
		&o.ShippingAddress, &o.PaymentMethod, &tracking, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if tracking.Valid {
		o.TrackingNumber = &tracking.String
	}
	return &o, nil
}

// items

func (t *tx) InsertOrderItem(ctx context.Context, item *orders.Item) error {
	query := `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, discount_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := t.tx.QueryRowContext(ctx, query,
		item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.DiscountPrice,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order item: %w", translate(err, "order item"))
	}
	return nil
}

func (t *tx) ListOrderItems(ctx context.Context, orderID int64) ([]orders.Item, error) {
	query := `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, discount_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := t.tx.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var out []orders.Item
	for rows.Next() {
		var it orders.Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.DiscountPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}
	return out, nil
}

func (t *tx) DeleteOrderItem(ctx context.Context, orderID, itemID int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM order_items WHERE id = $1 AND order_id = $2`, itemID, orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("order item")
	}
	return nil
}

// history

func (t *tx) AppendStatusHistory(ctx context.Context, h *orders.StatusHistory) error {
	query := `
		INSERT INTO order_status_history (order_id, status, actor_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	if err := t.tx.QueryRowContext(ctx, query, h.OrderID, h.Status, h.ActorID).Scan(&h.ID, &h.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert status history: %w", translate(err, "status history"))
	}
	return nil
}

func (t *tx) ListStatusHistory(ctx context.Context, orderID int64) ([]orders.StatusHistory, error) {
	query := `
		SELECT id, order_id, status, actor_id, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := t.tx.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var out []orders.StatusHistory
	for rows.Next() {
		var (
			h     orders.StatusHistory
			actor sql.NullInt64
		)
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Status, &actor, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		if actor.Valid {
			h.ActorID = &actor.Int64
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status history: %w", err)
	}
	return out, nil
}
