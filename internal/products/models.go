package products

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64               `json:"id"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Price         decimal.Decimal     `json:"price"`          // Retail price
	DiscountPrice decimal.NullDecimal `json:"discount_price"` // Overrides Price when set
	Active        bool                `json:"is_active"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type NewProduct struct {
	Name          string              `json:"name" validate:"required,min=2,max=255"`
	Description   string              `json:"description" validate:"max=5000"`
	Price         decimal.Decimal     `json:"price" validate:"-"`
	DiscountPrice decimal.NullDecimal `json:"discount_price" validate:"-"`
	Active        *bool               `json:"is_active"`
}

// Patch lists the product fields staff may edit. Nil fields are left unchanged.
type Patch struct {
	Name          *string          `json:"name" validate:"omitempty,min=2,max=255"`
	Description   *string          `json:"description" validate:"omitempty,max=5000"`
	Price         *decimal.Decimal `json:"price" validate:"-"`
	DiscountPrice *decimal.Decimal `json:"discount_price" validate:"-"`
	ClearDiscount bool             `json:"clear_discount"`
	Active        *bool            `json:"is_active"`
}

var (
	ErrEmptyPatch        = errors.New("no updatable fields supplied")
	ErrNegativePrice     = errors.New("prices must not be negative")
	ErrDiscountTooHigh   = errors.New("discount price must not exceed price")
	ErrPricePrecision    = errors.New("prices must have at most two decimal places")
	ErrConflictingFields = errors.New("discount_price and clear_discount are mutually exclusive")
)

func (p Patch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil &&
		p.DiscountPrice == nil && !p.ClearDiscount && p.Active == nil
}

// Apply writes the patch onto prod after checking price rules.
func (p Patch) Apply(prod *Product) error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	if p.DiscountPrice != nil && p.ClearDiscount {
		return ErrConflictingFields
	}
	next := *prod
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Price != nil {
		next.Price = *p.Price
	}
	if p.DiscountPrice != nil {
		next.DiscountPrice = decimal.NewNullDecimal(*p.DiscountPrice)
	}
	if p.ClearDiscount {
		next.DiscountPrice = decimal.NullDecimal{}
	}
	if p.Active != nil {
		next.Active = *p.Active
	}
	if err := CheckPrices(next.Price, next.DiscountPrice); err != nil {
		return err
	}
	*prod = next
	return nil
}

func CheckPrices(price decimal.Decimal, discount decimal.NullDecimal) error {
	if price.IsNegative() || (discount.Valid && discount.Decimal.IsNegative()) {
		return ErrNegativePrice
	}
	if !price.Equal(price.Truncate(2)) || (discount.Valid && !discount.Decimal.Equal(discount.Decimal.Truncate(2))) {
		return ErrPricePrecision
	}
	if discount.Valid && discount.Decimal.GreaterThan(price) {
		return ErrDiscountTooHigh
	}
	return nil
}

type Repository interface {
	InsertProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id int64) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	ListProducts(ctx context.Context, activeOnly bool) ([]Product, error)
}
