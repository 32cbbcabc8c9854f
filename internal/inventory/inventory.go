// Package inventory holds the stock reconciliation math applied when a sale
// is finalized. The functions are pure so both repository implementations
// can run them inside their own transaction boundaries.
package inventory

import "studiopos/backend/internal/domain"

// Decrement applies one sold line to a product and returns the updated
// product. Quantities are floored at zero, never negative. When the line
// names a variant of a variable product, only that variant is decremented
// and the product aggregate is recomputed as the sum of all variant
// inventories; otherwise the product inventory is decremented directly.
// The bool reports whether a variant line actually matched a variant.
func Decrement(product domain.Product, item domain.OrderItem) (domain.Product, bool) {
	if item.VariantID != "" && len(product.Variants) > 0 {
		matched := false
		variants := make([]domain.ProductVariant, len(product.Variants))
		copy(variants, product.Variants)
		for i := range variants {
			if variants[i].ID != item.VariantID {
				continue
			}
			variants[i].Inventory = clamp(variants[i].Inventory - item.Qty)
			matched = true
			break
		}
		product.Variants = variants
		product.Inventory = AggregateInventory(variants)
		return product, matched
	}

	product.Inventory = clamp(product.Inventory - item.Qty)
	return product, item.VariantID == ""
}

// AggregateInventory is the product-level stock figure for a variable
// product: the sum over its variants.
func AggregateInventory(variants []domain.ProductVariant) int {
	total := 0
	for _, v := range variants {
		total += v.Inventory
	}
	return total
}

func clamp(qty int) int {
	if qty < 0 {
		return 0
	}
	return qty
}
