package orders

import "github.com/shopspring/decimal"

// Recalculate sets Subtotal and Total from items and the order's adjustments.
func (o *Order) Recalculate(items []Item) {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	o.Subtotal = subtotal
	o.Total = subtotal.Add(o.ShippingCost).Add(o.TaxAmount).Sub(o.DiscountAmount)
}
