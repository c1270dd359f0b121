package cart

import (
	"context"

	"github.com/shopspring/decimal"
)

// Line is a cart row joined with the product's current price and status.
type Line struct {
	ProductID     int64               `json:"product_id"`
	ProductName   string              `json:"product_name"`
	Quantity      int                 `json:"quantity"`
	Price         decimal.Decimal     `json:"price"`
	DiscountPrice decimal.NullDecimal `json:"discount_price"`
	Active        bool                `json:"active"`
}

func (l Line) EffectivePrice() decimal.Decimal {
	if l.DiscountPrice.Valid {
		return l.DiscountPrice.Decimal
	}
	return l.Price
}

func (l Line) LineTotal() decimal.Decimal {
	return l.EffectivePrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type CartResponse struct {
	Items    []Line          `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

func NewCartResponse(lines []Line) CartResponse {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal())
	}
	if lines == nil {
		lines = []Line{}
	}
	return CartResponse{Items: lines, Subtotal: subtotal}
}

type Repository interface {
	// CartLines returns the user's cart ordered by product id.
	CartLines(ctx context.Context, userID int64) ([]Line, error)
	CartQuantity(ctx context.Context, userID, productID int64) (int, error)
	SetCartItem(ctx context.Context, userID, productID int64, quantity int) error
	// DeleteCartItem reports whether a row was removed.
	DeleteCartItem(ctx context.Context, userID, productID int64) (bool, error)
	ClearCart(ctx context.Context, userID int64) error
}
