package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order represents an order header in the database
type Order struct {
	ID              int64           `json:"id"`                        // Auto-incrementing ID
	UserID          int64           `json:"user_id"`                   // Owner of the order
	Status          Status          `json:"status"`                    // Lifecycle status, see status.go
	Subtotal        decimal.Decimal `json:"subtotal"`                  // Sum of line totals at effective prices
	ShippingCost    decimal.Decimal `json:"shipping_cost"`             // Non-negative
	TaxAmount       decimal.Decimal `json:"tax_amount"`                // Non-negative
	DiscountAmount  decimal.Decimal `json:"discount_amount"`           // Non-negative
	Total           decimal.Decimal `json:"total"`                     // Subtotal + shipping + tax - discount
	ShippingAddress string          `json:"shipping_address"`          // Opaque address text
	PaymentMethod   PaymentMethod   `json:"payment_method"`            // card, cash or online
	TrackingNumber  *string         `json:"tracking_number,omitempty"` // Set once shipped
	Notes           string          `json:"notes"`                     // Free-text notes
	CreatedAt       time.Time       `json:"created_at"`                // When the order was created
	UpdatedAt       time.Time       `json:"updated_at"`                // When the order was last updated
}

// Number is the human-readable order number.
func (o Order) Number() string {
	return FormatNumber(o.ID)
}

func FormatNumber(id int64) string {
	return fmt.Sprintf("%08d", id)
}

// Item is an order line with prices frozen at the time it was added.
type Item struct {
	ID            int64               `json:"id"`
	OrderID       int64               `json:"order_id"`
	ProductID     int64               `json:"product_id"`
	ProductName   string              `json:"product_name"`
	Quantity      int                 `json:"quantity"`
	UnitPrice     decimal.Decimal     `json:"unit_price"`     // Retail price at purchase time
	DiscountPrice decimal.NullDecimal `json:"discount_price"` // Discount price at purchase time, if any
}

// EffectivePrice is the discount price when set, the unit price otherwise.
func (i Item) EffectivePrice() decimal.Decimal {
	if i.DiscountPrice.Valid {
		return i.DiscountPrice.Decimal
	}
	return i.UnitPrice
}

func (i Item) LineTotal() decimal.Decimal {
	return i.EffectivePrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// StatusHistory is an append-only record of a status the order entered.
type StatusHistory struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	Status    Status    `json:"status"`
	ActorID   *int64    `json:"actor_id,omitempty"` // nil for system-driven transitions
	CreatedAt time.Time `json:"created_at"`
}

// Details is an order with its lines and history.
type Details struct {
	Order   Order           `json:"order"`
	Number  string          `json:"order_number"`
	Items   []Item          `json:"items"`
	History []StatusHistory `json:"history"`
}

type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentCash, PaymentOnline:
		return true
	}
	return false
}

// ListFilter narrows order listings. A zero UserID lists every user's orders.
type ListFilter struct {
	UserID int64
	Status Status
	Limit  int
	Offset int
}
