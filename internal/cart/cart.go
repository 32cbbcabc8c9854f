// Package cart holds the mutable working state of one open sale. A Cart is
// owned by the session that created it; there is no shared global cart, all
// mutation goes through its methods.
package cart

import (
	"context"
	"log"
	"sync"

	"studiopos/backend/internal/cache"
	"studiopos/backend/internal/domain"
	"studiopos/backend/internal/pricing"
)

type Cart struct {
	mu         sync.Mutex
	terminalID string
	carts      cache.CartCache

	items        []domain.CartLineItem
	customer     *domain.Customer
	discount     domain.DiscountConfig
	boundOrderID string
	processing   bool
}

func New(terminalID string, carts cache.CartCache) *Cart {
	return &Cart{
		terminalID: terminalID,
		carts:      carts,
		discount:   domain.DiscountConfig{Kind: domain.DiscountAmount},
	}
}

// AddItem merges into an existing line when (productId, variantId) already
// matches, otherwise appends a new line with quantity 1. The unit price is
// snapshotted now: priceOverride when given, the base price otherwise. Later
// catalog price changes do not touch existing lines.
func (c *Cart) AddItem(ctx context.Context, product domain.Product, variantID string, variantName string, priceOverride *float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID == product.ID && c.items[i].VariantID == variantID {
			c.items[i].Quantity++
			c.persistLocked(ctx)
			return
		}
	}

	unitPrice := product.BasePrice
	if priceOverride != nil {
		unitPrice = *priceOverride
	}
	c.items = append(c.items, domain.CartLineItem{
		ProductID:   product.ID,
		VariantID:   variantID,
		VariantName: variantName,
		Title:       product.Title,
		UnitPrice:   unitPrice,
		Quantity:    1,
	})
	c.persistLocked(ctx)
}

// RemoveItem deletes the matching line; absent lines are a no-op.
func (c *Cart) RemoveItem(ctx context.Context, productID string, variantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(productID, variantID)
	c.persistLocked(ctx)
}

// SetQuantity replaces the line quantity. A quantity of zero or below
// behaves exactly like RemoveItem.
func (c *Cart) SetQuantity(ctx context.Context, productID string, variantID string, qty int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if qty <= 0 {
		c.removeLocked(productID, variantID)
		c.persistLocked(ctx)
		return
	}
	for i := range c.items {
		if c.items[i].ProductID == productID && c.items[i].VariantID == variantID {
			c.items[i].Quantity = qty
			break
		}
	}
	c.persistLocked(ctx)
}

func (c *Cart) SetCustomer(ctx context.Context, customer *domain.Customer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customer = customer
	c.persistLocked(ctx)
}

// SetDiscount stores the discount configuration. The UI is responsible for
// rejecting negative input; negative values are clamped to zero here as a
// second line of defense. Unknown kinds fall back to an amount discount.
func (c *Cart) SetDiscount(ctx context.Context, kind string, value float64) {
	if kind != domain.DiscountAmount && kind != domain.DiscountPercent {
		kind = domain.DiscountAmount
	}
	if value < 0 {
		value = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.discount = domain.DiscountConfig{Kind: kind, Value: value}
	c.persistLocked(ctx)
}

// Clear empties items, customer, discount, and the draft binding, and drops
// the cached copy.
func (c *Cart) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	c.customer = nil
	c.discount = domain.DiscountConfig{Kind: domain.DiscountAmount}
	c.boundOrderID = ""

	if err := c.carts.Delete(ctx, c.terminalID); err != nil {
		log.Printf("[cart] WARN: failed to drop cached cart terminal=%s: %v", c.terminalID, err)
	}
}

// Load replaces the whole cart state in one step, used when resuming a
// draft order or restoring a cached cart.
func (c *Cart) Load(ctx context.Context, items []domain.CartLineItem, customer *domain.Customer, discount domain.DiscountConfig, boundOrderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make([]domain.CartLineItem, len(items))
	copy(c.items, items)
	c.customer = customer
	if discount.Kind != domain.DiscountPercent {
		discount.Kind = domain.DiscountAmount
	}
	if discount.Value < 0 {
		discount.Value = 0
	}
	c.discount = discount
	c.boundOrderID = boundOrderID
	c.persistLocked(ctx)
}

func (c *Cart) Bind(orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boundOrderID = orderID
}

func (c *Cart) TerminalID() string {
	return c.terminalID
}

func (c *Cart) BoundOrderID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.boundOrderID
}

func (c *Cart) Customer() *domain.Customer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.customer
}

func (c *Cart) Discount() domain.DiscountConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discount
}

func (c *Cart) Lines() []domain.CartLineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := make([]domain.CartLineItem, len(c.items))
	copy(lines, c.items)
	return lines
}

func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

// Snapshot derives the read model for the given tax rate. Totals are never
// cached: every snapshot recomputes from current lines.
func (c *Cart) Snapshot(taxRate float64) domain.CartSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]domain.CartLineItem, len(c.items))
	copy(items, c.items)
	totals := pricing.Totals(items, c.discount, taxRate)

	return domain.CartSnapshot{
		Items:         items,
		Customer:      c.customer,
		DiscountKind:  c.discount.Kind,
		DiscountValue: c.discount.Value,
		Discount:      totals.Discount,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.Total,
		BoundOrderID:  c.boundOrderID,
	}
}

// TryBeginCheckout flips the processing flag so a second checkout from the
// same cart is rejected instead of interleaved. Returns false if a checkout
// is already in flight.
func (c *Cart) TryBeginCheckout() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing {
		return false
	}
	c.processing = true
	return true
}

func (c *Cart) EndCheckout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processing = false
}

func (c *Cart) removeLocked(productID string, variantID string) {
	kept := c.items[:0]
	for _, item := range c.items {
		if item.ProductID == productID && item.VariantID == variantID {
			continue
		}
		kept = append(kept, item)
	}
	c.items = kept
}

// persistLocked writes the cart to the cache. Best effort: the cache is a
// convenience for crash recovery, a failed write never blocks the sale.
func (c *Cart) persistLocked(ctx context.Context) {
	state := &cache.CartState{
		Items:         make([]domain.CartLineItem, len(c.items)),
		DiscountKind:  c.discount.Kind,
		DiscountValue: c.discount.Value,
		BoundOrderID:  c.boundOrderID,
	}
	copy(state.Items, c.items)
	if c.customer != nil {
		state.CustomerID = c.customer.ID
	}

	if err := c.carts.Set(ctx, c.terminalID, state); err != nil {
		log.Printf("[cart] WARN: failed to cache cart terminal=%s: %v", c.terminalID, err)
	}
}
