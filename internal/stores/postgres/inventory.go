package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/inventory"
)

const stockColumns = `i.product_id, i.location_id, l.name, l.is_active, i.quantity, i.min_stock, i.updated_at`

func (t *tx) LockStock(ctx context.Context, productID int64) ([]inventory.Record, error) {
	query := `
		SELECT ` + stockColumns + `
		FROM inventory i
		JOIN locations l ON l.id = i.location_id
		WHERE i.product_id = $1 AND l.is_active
		ORDER BY i.quantity DESC, i.location_id
		FOR UPDATE OF i
	`
	return t.queryStock(ctx, query, productID)
}

// LockRecord creates a zero row when none exists so that concurrent first
// writes to the same location serialize on the row lock.
func (t *tx) LockRecord(ctx context.Context, productID, locationID int64) (*inventory.Record, error) {
	insert := `
		INSERT INTO inventory (product_id, location_id, quantity)
		VALUES ($1, $2, 0)
		ON CONFLICT (product_id, location_id) DO NOTHING
	`
	if _, err := t.tx.ExecContext(ctx, insert, productID, locationID); err != nil {
		err = translate(err, "inventory record")
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "product or location not found")
		}
		return nil, fmt.Errorf("failed to create inventory record: %w", err)
	}

	query := `
		SELECT ` + stockColumns + `
		FROM inventory i
		JOIN locations l ON l.id = i.location_id
		WHERE i.product_id = $1 AND i.location_id = $2
		FOR UPDATE OF i
	`
	rec, err := scanRecord(t.tx.QueryRowContext(ctx, query, productID, locationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock inventory record: %w", err)
	}
	return rec, nil
}

func (t *tx) SaveRecord(ctx context.Context, rec inventory.Record) error {
	if rec.Quantity < 0 {
		return apperr.InsufficientStock(rec.ProductID, -rec.Quantity, 0)
	}
	query := `
		INSERT INTO inventory (product_id, location_id, quantity, min_stock, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (product_id, location_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()
	`
	if _, err := t.tx.ExecContext(ctx, query, rec.ProductID, rec.LocationID, rec.Quantity, rec.MinStock); err != nil {
		return fmt.Errorf("failed to save inventory record: %w", translate(err, "inventory record"))
	}
	return nil
}

func (t *tx) ListStock(ctx context.Context, productID int64) ([]inventory.Record, error) {
	query := `
		SELECT ` + stockColumns + `
		FROM inventory i
		JOIN locations l ON l.id = i.location_id
		WHERE i.product_id = $1
		ORDER BY i.location_id
	`
	return t.queryStock(ctx, query, productID)
}

func (t *tx) LowStock(ctx context.Context) ([]inventory.Record, error) {
	query := `
		SELECT ` + stockColumns + `
		FROM inventory i
		JOIN locations l ON l.id = i.location_id
		WHERE l.is_active AND i.quantity <= i.min_stock
		ORDER BY i.product_id, i.location_id
	`
	return t.queryStock(ctx, query)
}

func (t *tx) LocationExists(ctx context.Context, locationID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM locations WHERE id = $1)`, locationID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query location: %w", err)
	}
	return exists, nil
}

func (t *tx) queryStock(ctx context.Context, query string, args ...any) ([]inventory.Record, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	defer rows.Close()

	var out []inventory.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory: %w", err)
	}
	return out, nil
}

func scanRecord(row scanner) (*inventory.Record, error) {
	var rec inventory.Record
	err := row.Scan(&rec.ProductID, &rec.LocationID, &rec.LocationName, &rec.LocationActive, &rec.Quantity, &rec.MinStock, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
