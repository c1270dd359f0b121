// Package store defines the transactional persistence contract shared by the
// postgres and in-memory implementations.
package store

import (
	"context"

	"honnylove-backend/internal/cart"
	"honnylove-backend/internal/inventory"
	"honnylove-backend/internal/orders"
	"honnylove-backend/internal/payments"
	"honnylove-backend/internal/products"
	"honnylove-backend/internal/users"
)

// Store runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back on error or panic.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes every repository bound to a single transaction.
type Tx interface {
	cart.Repository
	inventory.Repository
	orders.Repository
	payments.Repository
	products.Repository
	users.Repository
	StockReader
}

// StockReader covers read-only inventory queries used by admin reports.
type StockReader interface {
	// ListStock returns all records of the product, including inactive locations.
	ListStock(ctx context.Context, productID int64) ([]inventory.Record, error)
	// LowStock returns records at active locations with quantity <= min stock.
	LowStock(ctx context.Context) ([]inventory.Record, error)
	LocationExists(ctx context.Context, locationID int64) (bool, error)
}
