package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/cart"
	"honnylove-backend/internal/products"
)

const productColumns = `id, name, description, price, discount_price, is_active, created_at, updated_at`

func (t *tx) InsertProduct(ctx context.Context, p *products.Product) error {
	query := `
		INSERT INTO products (name, description, price, discount_price, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := t.tx.QueryRowContext(ctx, query, p.Name, p.Description, p.Price, p.DiscountPrice, p.Active).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", translate(err, "product"))
	}
	return nil
}

func (t *tx) GetProduct(ctx context.Context, id int64) (*products.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("product")
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (t *tx) UpdateProduct(ctx context.Context, p *products.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, discount_price = $5, is_active = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := t.tx.QueryRowContext(ctx, query, p.ID, p.Name, p.Description, p.Price, p.DiscountPrice, p.Active).
		Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("product")
		}
		return fmt.Errorf("failed to update product: %w", translate(err, "product"))
	}
	return nil
}

func (t *tx) ListProducts(ctx context.Context, activeOnly bool) ([]products.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE is_active OR NOT $1
		ORDER BY id
	`
	rows, err := t.tx.QueryContext(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []products.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return out, nil
}

func scanProduct(row scanner) (*products.Product, error) {
	var p products.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.DiscountPrice, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// cart

func (t *tx) CartLines(ctx context.Context, userID int64) ([]cart.Line, error) {
	query := `
		SELECT ci.product_id, p.name, ci.quantity, p.price, p.discount_price, p.is_active
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.product_id
	`
	rows, err := t.tx.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var lines []cart.Line
	for rows.Next() {
		var l cart.Line
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.Quantity, &l.Price, &l.DiscountPrice, &l.Active); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}
	return lines, nil
}

func (t *tx) CartQuantity(ctx context.Context, userID, productID int64) (int, error) {
	query := `SELECT quantity FROM cart_items WHERE user_id = $1 AND product_id = $2 FOR UPDATE`
	var qty int
	err := t.tx.QueryRowContext(ctx, query, userID, productID).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query cart item: %w", err)
	}
	return qty, nil
}

func (t *tx) SetCartItem(ctx context.Context, userID, productID int64, quantity int) error {
	query := `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()
	`
	if _, err := t.tx.ExecContext(ctx, query, userID, productID, quantity); err != nil {
		err = translate(err, "cart item")
		if apperr.Is(err, apperr.CodeNotFound) {
			return apperr.NotFound("product")
		}
		return fmt.Errorf("failed to save cart item: %w", err)
	}
	return nil
}

func (t *tx) DeleteCartItem(ctx context.Context, userID, productID int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return false, fmt.Errorf("failed to delete cart item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (t *tx) ClearCart(ctx context.Context, userID int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
