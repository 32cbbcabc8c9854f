package pricing

import (
	"math"
	"testing"

	"studiopos/backend/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestTotalsPercentDiscountWithTax(t *testing.T) {
	items := []domain.CartLineItem{
		{ProductID: "p1", UnitPrice: 10, Quantity: 2},
		{ProductID: "p2", UnitPrice: 5, Quantity: 1},
	}

	got := Totals(items, domain.DiscountConfig{Kind: domain.DiscountPercent, Value: 10}, 0.08)

	if !almostEqual(got.Subtotal, 25) {
		t.Fatalf("subtotal = %v, want 25", got.Subtotal)
	}
	if !almostEqual(got.Discount, 2.5) {
		t.Fatalf("discount = %v, want 2.5", got.Discount)
	}
	if !almostEqual(got.Tax, 1.8) {
		t.Fatalf("tax = %v, want 1.8", got.Tax)
	}
	if !almostEqual(got.Total, 24.3) {
		t.Fatalf("total = %v, want 24.3", got.Total)
	}
}

func TestTotalsAmountDiscountExceedingSubtotal(t *testing.T) {
	items := []domain.CartLineItem{
		{ProductID: "p1", UnitPrice: 10, Quantity: 1},
	}

	got := Totals(items, domain.DiscountConfig{Kind: domain.DiscountAmount, Value: 15}, 0.08)

	if !almostEqual(got.Taxable, 0) {
		t.Fatalf("taxable = %v, want 0", got.Taxable)
	}
	if !almostEqual(got.Tax, 0) {
		t.Fatalf("tax = %v, want 0 when discount exceeds subtotal", got.Tax)
	}
	if !almostEqual(got.Total, 0) {
		t.Fatalf("total = %v, want 0", got.Total)
	}
}

func TestTotalsEmptyCart(t *testing.T) {
	got := Totals(nil, domain.DiscountConfig{Kind: domain.DiscountPercent, Value: 50}, 0.08)

	if !almostEqual(got.Subtotal, 0) || !almostEqual(got.Total, 0) {
		t.Fatalf("empty cart totals = %+v, want all zero", got)
	}
}

func TestTotalsZeroTaxRate(t *testing.T) {
	items := []domain.CartLineItem{
		{ProductID: "p1", UnitPrice: 12.5, Quantity: 2},
	}

	got := Totals(items, domain.DiscountConfig{Kind: domain.DiscountAmount}, 0)

	if !almostEqual(got.Tax, 0) {
		t.Fatalf("tax = %v, want 0", got.Tax)
	}
	if !almostEqual(got.Total, 25) {
		t.Fatalf("total = %v, want 25", got.Total)
	}
}

func TestDiscountAmountNegativeValueIgnored(t *testing.T) {
	if got := DiscountAmount(100, domain.DiscountConfig{Kind: domain.DiscountAmount, Value: -5}); got != 0 {
		t.Fatalf("negative amount discount = %v, want 0", got)
	}
	if got := DiscountAmount(100, domain.DiscountConfig{Kind: domain.DiscountPercent, Value: -5}); got != 0 {
		t.Fatalf("negative percent discount = %v, want 0", got)
	}
}

func TestDiscountAmountUnknownKind(t *testing.T) {
	if got := DiscountAmount(100, domain.DiscountConfig{Kind: "bogus", Value: 10}); got != 0 {
		t.Fatalf("unknown discount kind = %v, want 0", got)
	}
}

func TestTotalsAmountAndPercentAgreeOnSameReduction(t *testing.T) {
	items := []domain.CartLineItem{
		{ProductID: "p1", UnitPrice: 100, Quantity: 2},
	}

	byAmount := Totals(items, domain.DiscountConfig{Kind: domain.DiscountAmount, Value: 20}, 0.1)
	byPercent := Totals(items, domain.DiscountConfig{Kind: domain.DiscountPercent, Value: 10}, 0.1)

	if !almostEqual(byAmount.Discount, 20) || !almostEqual(byPercent.Discount, 20) {
		t.Fatalf("discounts = %v, %v, want both 20", byAmount.Discount, byPercent.Discount)
	}
	if !almostEqual(byAmount.Tax, 18) {
		t.Fatalf("tax = %v, want 18", byAmount.Tax)
	}
	if !almostEqual(byAmount.Total, 198) || !almostEqual(byPercent.Total, 198) {
		t.Fatalf("totals = %v, %v, want both 198", byAmount.Total, byPercent.Total)
	}
}

func TestTotalsDiscountAppliesBeforeTax(t *testing.T) {
	items := []domain.CartLineItem{
		{ProductID: "p1", UnitPrice: 100, Quantity: 1},
	}

	got := Totals(items, domain.DiscountConfig{Kind: domain.DiscountAmount, Value: 20}, 0.1)

	if !almostEqual(got.Tax, 8) {
		t.Fatalf("tax = %v, want 8 (tax on discounted base)", got.Tax)
	}
	if !almostEqual(got.Total, 88) {
		t.Fatalf("total = %v, want 88", got.Total)
	}
}
