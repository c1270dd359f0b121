package orders

import "context"

// Repository persists orders inside a transaction. Lookups of missing rows
// return an apperr not_found error.
type Repository interface {
	InsertOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id int64) (*Order, error)
	// LockOrder reads the order and holds a row lock until the transaction ends.
	LockOrder(ctx context.Context, id int64) (*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error
	DeleteOrder(ctx context.Context, id int64) error
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, error)

	InsertOrderItem(ctx context.Context, item *Item) error
	ListOrderItems(ctx context.Context, orderID int64) ([]Item, error)
	DeleteOrderItem(ctx context.Context, orderID, itemID int64) error

	AppendStatusHistory(ctx context.Context, h *StatusHistory) error
	ListStatusHistory(ctx context.Context, orderID int64) ([]StatusHistory, error)
}
