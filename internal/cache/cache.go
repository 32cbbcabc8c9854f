package cache

import (
	"context"

	"studiopos/backend/internal/domain"
)

// CartState is the recoverable portion of a cart: everything needed to
// rebuild the working sale after a process restart. It is a convenience
// cache, never a record of truth.
type CartState struct {
	Items         []domain.CartLineItem `json:"items"`
	CustomerID    string                `json:"customerId,omitempty"`
	DiscountKind  string                `json:"discountKind"`
	DiscountValue float64               `json:"discountValue"`
	BoundOrderID  string                `json:"boundOrderId,omitempty"`
}

type CartCache interface {
	Get(ctx context.Context, terminalID string) (*CartState, bool, error)
	Set(ctx context.Context, terminalID string, state *CartState) error
	Delete(ctx context.Context, terminalID string) error
}

type NoopCartCache struct{}

func (NoopCartCache) Get(_ context.Context, _ string) (*CartState, bool, error) {
	return nil, false, nil
}

func (NoopCartCache) Set(_ context.Context, _ string, _ *CartState) error {
	return nil
}

func (NoopCartCache) Delete(_ context.Context, _ string) error {
	return nil
}
