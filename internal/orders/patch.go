package orders

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Patch lists the order fields staff may edit. Nil fields are left unchanged.
type Patch struct {
	TrackingNumber  *string          `json:"tracking_number" validate:"omitempty,max=128"`
	Notes           *string          `json:"notes" validate:"omitempty,max=2000"`
	ShippingAddress *string          `json:"shipping_address" validate:"omitempty,min=10,max=500"`
	ShippingCost    *decimal.Decimal `json:"shipping_cost" validate:"-"`
	TaxAmount       *decimal.Decimal `json:"tax_amount" validate:"-"`
	DiscountAmount  *decimal.Decimal `json:"discount_amount" validate:"-"`
}

var (
	ErrEmptyPatch        = errors.New("no updatable fields supplied")
	ErrNegativeAmount    = errors.New("amounts must not be negative")
	ErrAmountsNotPending = errors.New("amounts can only change while the order is pending")
	ErrNegativeTotal     = errors.New("order total must not be negative")
)

func (p Patch) Empty() bool {
	return p.TrackingNumber == nil && p.Notes == nil && p.ShippingAddress == nil &&
		p.ShippingCost == nil && p.TaxAmount == nil && p.DiscountAmount == nil
}

func (p Patch) touchesAmounts() bool {
	return p.ShippingCost != nil || p.TaxAmount != nil || p.DiscountAmount != nil
}

// Apply writes the patch onto o and recomputes totals from items when amounts change.
func (p Patch) Apply(o *Order, items []Item) error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	if p.touchesAmounts() {
		if o.Status != StatusPending {
			return ErrAmountsNotPending
		}
		for _, v := range []*decimal.Decimal{p.ShippingCost, p.TaxAmount, p.DiscountAmount} {
			if v != nil && v.IsNegative() {
				return ErrNegativeAmount
			}
		}
	}

	next := *o
	if p.TrackingNumber != nil {
		tracking := *p.TrackingNumber
		next.TrackingNumber = &tracking
	}
	if p.Notes != nil {
		next.Notes = *p.Notes
	}
	if p.ShippingAddress != nil {
		next.ShippingAddress = *p.ShippingAddress
	}
	if p.ShippingCost != nil {
		next.ShippingCost = *p.ShippingCost
	}
	if p.TaxAmount != nil {
		next.TaxAmount = *p.TaxAmount
	}
	if p.DiscountAmount != nil {
		next.DiscountAmount = *p.DiscountAmount
	}
	if p.touchesAmounts() {
		next.Recalculate(items)
		if next.Total.IsNegative() {
			return ErrNegativeTotal
		}
	}
	*o = next
	return nil
}
