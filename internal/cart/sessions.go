package cart

import (
	"context"
	"errors"
	"log"
	"sync"

	"studiopos/backend/internal/cache"
	"studiopos/backend/internal/domain"
	"studiopos/backend/internal/store"
)

// Sessions hands out one Cart per terminal id. A cart found in the cache is
// restored on first access so an interrupted sale survives a restart.
type Sessions struct {
	mu    sync.Mutex
	carts cache.CartCache
	repo  store.Repository
	byID  map[string]*Cart
}

func NewSessions(carts cache.CartCache, repo store.Repository) *Sessions {
	return &Sessions{
		carts: carts,
		repo:  repo,
		byID:  make(map[string]*Cart),
	}
}

func (s *Sessions) Cart(ctx context.Context, terminalID string) *Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byID[terminalID]; ok {
		return existing
	}

	c := New(terminalID, s.carts)
	s.restore(ctx, c, terminalID)
	s.byID[terminalID] = c
	return c
}

func (s *Sessions) restore(ctx context.Context, c *Cart, terminalID string) {
	state, found, err := s.carts.Get(ctx, terminalID)
	if err != nil {
		log.Printf("[cart] WARN: failed to read cached cart terminal=%s: %v", terminalID, err)
		return
	}
	if !found || state == nil || len(state.Items) == 0 {
		return
	}

	var customer *domain.Customer
	if state.CustomerID != "" {
		customer, err = s.repo.GetCustomer(ctx, state.CustomerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("[cart] WARN: failed to resolve cached customer id=%s: %v", state.CustomerID, err)
		}
	}

	c.Load(ctx, state.Items, customer, domain.DiscountConfig{
		Kind:  state.DiscountKind,
		Value: state.DiscountValue,
	}, state.BoundOrderID)
	log.Printf("[cart] restored cached cart terminal=%s items=%d", terminalID, len(state.Items))
}
