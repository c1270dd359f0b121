package kafka

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicOrderCreated   = `orders.created`
	TopicOrderPaid      = `orders.paid`
	TopicOrderCancelled = `orders.cancelled`
	TopicOrderReturned  = `orders.returned`
)

// OrderEvent is published after an order lifecycle change commits.
type OrderEvent struct {
	OrderID    int64           `json:"order_id"`
	UserID     int64           `json:"user_id"`
	Status     string          `json:"status"`
	Total      decimal.Decimal `json:"total"`
	Refunded   decimal.Decimal `json:"refunded,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"` // Commit time, UTC
}
