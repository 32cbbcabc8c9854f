// Package pricing computes sale totals from cart state. It is stateless:
// every read recomputes from the lines, the discount configuration, and the
// tax rate passed in. No rounding is applied here; currency display rounding
// belongs to the presentation layer.
package pricing

import "studiopos/backend/internal/domain"

type Breakdown struct {
	Subtotal float64
	Discount float64
	Taxable  float64
	Tax      float64
	Total    float64
}

// Totals derives subtotal, discount, tax, and total for the given lines.
// Discount semantics: an "amount" discount is the raw value, a "percent"
// discount is subtotal*value/100. The taxable base is subtotal minus
// discount, floored at zero; tax applies to the discounted amount.
func Totals(items []domain.CartLineItem, discount domain.DiscountConfig, taxRate float64) Breakdown {
	subtotal := 0.0
	for _, item := range items {
		subtotal += item.UnitPrice * float64(item.Quantity)
	}

	amount := DiscountAmount(subtotal, discount)

	taxable := subtotal - amount
	if taxable < 0 {
		taxable = 0
	}
	tax := taxable * taxRate

	return Breakdown{
		Subtotal: subtotal,
		Discount: amount,
		Taxable:  taxable,
		Tax:      tax,
		Total:    taxable + tax,
	}
}

// DiscountAmount resolves a discount configuration into a currency amount
// for the given subtotal. Negative values are treated as zero; the UI is
// expected to reject them, this is the engine-side defense.
func DiscountAmount(subtotal float64, discount domain.DiscountConfig) float64 {
	if discount.Value <= 0 {
		return 0
	}
	switch discount.Kind {
	case domain.DiscountPercent:
		return subtotal * discount.Value / 100
	case domain.DiscountAmount:
		return discount.Value
	default:
		return 0
	}
}
