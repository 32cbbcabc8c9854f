// Package memory is the dev/demo repository: seeded catalog, no external
// dependencies. The backend uses PostgreSQL when DATABASE_URL is set.
package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"studiopos/backend/internal/domain"
	"studiopos/backend/internal/inventory"
	"studiopos/backend/internal/store"
)

type Store struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	customers map[string]domain.Customer
	orders    map[string]domain.Order
	settings  *domain.Settings
	auditLogs []domain.AuditLog
}

func NewSeeded() *Store {
	products := []domain.Product{
		{ID: "prod-espresso", Title: "Espresso", Category: "coffee", BasePrice: 3.00, Inventory: 120, Kind: domain.ProductKindSimple},
		{ID: "prod-americano", Title: "Americano", Category: "coffee", BasePrice: 3.50, Inventory: 110, Kind: domain.ProductKindSimple},
		{ID: "prod-cappuccino", Title: "Cappuccino", Category: "coffee", BasePrice: 4.25, Inventory: 90, Kind: domain.ProductKindSimple},
		{
			ID: "prod-latte", Title: "Latte", Category: "coffee", BasePrice: 4.50, Kind: domain.ProductKindVariable,
			Variants: []domain.ProductVariant{
				{ID: "var-latte-sm", Title: "Small", Price: 4.50, Inventory: 40},
				{ID: "var-latte-md", Title: "Medium", Price: 5.00, Inventory: 35},
				{ID: "var-latte-lg", Title: "Large", Price: 5.50, Inventory: 25},
			},
		},
		{
			ID: "prod-tshirt", Title: "Studio T-Shirt", Category: "merch", BasePrice: 18.00, Kind: domain.ProductKindVariable,
			Variants: []domain.ProductVariant{
				{ID: "var-tshirt-s", Title: "S", Price: 18.00, Inventory: 12},
				{ID: "var-tshirt-m", Title: "M", Price: 18.00, Inventory: 15},
				{ID: "var-tshirt-l", Title: "L", Price: 18.00, Inventory: 9},
			},
		},
		{ID: "prod-croissant", Title: "Butter Croissant", Category: "bakery", BasePrice: 3.75, Inventory: 30, Kind: domain.ProductKindSimple},
		{ID: "prod-muffin", Title: "Blueberry Muffin", Category: "bakery", BasePrice: 3.25, Inventory: 24, Kind: domain.ProductKindSimple},
		{ID: "prod-coldbrew", Title: "Cold Brew Bottle", Category: "beverage", BasePrice: 6.00, Inventory: 48, Kind: domain.ProductKindSimple},
		{ID: "prod-beans", Title: "House Blend Beans 250g", Category: "retail", BasePrice: 14.00, Inventory: 36, Kind: domain.ProductKindSimple},
		{ID: "prod-tumbler", Title: "Travel Tumbler", Category: "merch", BasePrice: 22.00, Inventory: 18, Kind: domain.ProductKindSimple},
	}

	customers := []domain.Customer{
		{ID: "cust-walkin-regular", Name: "Ava Martinez", Phone: "+1-555-0101", Email: "ava@example.com", Address: "12 Elm St"},
		{ID: "cust-office-account", Name: "Northside Office", Phone: "+1-555-0102", Email: "orders@northside.example.com", Address: "400 Commerce Ave"},
		{ID: "cust-loyalty-03", Name: "Ben Okafor", Phone: "+1-555-0103", Email: "ben@example.com", Address: "77 Lake Rd"},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		if p.Kind == domain.ProductKindVariable {
			p.Inventory = inventory.AggregateInventory(p.Variants)
		}
		productMap[p.ID] = p
	}
	customerMap := make(map[string]domain.Customer, len(customers))
	for _, c := range customers {
		customerMap[c.ID] = c
	}

	return &Store{
		products:  productMap,
		customers: customerMap,
		orders:    make(map[string]domain.Order),
		settings: &domain.Settings{
			StoreName: "StudioPOS Demo Store",
			Address:   "1 Market Square",
			Phone:     "+1-555-0100",
			Email:     "hello@studiopos.example.com",
			TaxRate:   0.08,
		},
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, store.ErrNotFound)
	}
	clone := cloneProduct(p)
	return &clone, nil
}

func (s *Store) UpdateProductInventory(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", product.ID, store.ErrNotFound)
	}

	existing.Inventory = product.Inventory
	if len(product.Variants) > 0 {
		existing.Variants = make([]domain.ProductVariant, len(product.Variants))
		copy(existing.Variants, product.Variants)
	}
	s.products[product.ID] = existing

	clone := cloneProduct(existing)
	return &clone, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", id, store.ErrNotFound)
	}
	clone := c
	return &clone, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *Store) PutOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == "" || len(order.Items) == 0 {
		return nil, store.ErrInvalidOrder
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.orders[order.ID]; ok {
		if existing.Status == domain.OrderStatusCompleted {
			return nil, fmt.Errorf("order %s already completed: %w", order.ID, store.ErrConflict)
		}
		// re-saving a draft keeps its original timestamp
		order.CreatedAt = existing.CreatedAt
	}
	s.orders[order.ID] = cloneOrder(order)

	clone := cloneOrder(order)
	return &clone, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	clone := cloneOrder(o)
	return &clone, nil
}

func (s *Store) ListOrders(_ context.Context, status string, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CompleteOrder writes the completed order and applies every stock decrement
// under one lock hold, the in-memory equivalent of a serializable
// transaction. A line whose product no longer exists is skipped with a
// warning rather than failing the sale.
func (s *Store) CompleteOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == "" || len(order.Items) == 0 {
		return nil, store.ErrInvalidOrder
	}
	if order.Status != domain.OrderStatusCompleted {
		return nil, store.ErrInvalidOrder
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.orders[order.ID]; ok && existing.Status == domain.OrderStatusCompleted {
		return nil, fmt.Errorf("order %s already completed: %w", order.ID, store.ErrConflict)
	}

	for _, item := range order.Items {
		product, ok := s.products[item.SKU]
		if !ok {
			log.Printf("[memory-store] WARN: order %s references unknown product %s, stock not adjusted", order.ID, item.SKU)
			continue
		}
		updated, matched := inventory.Decrement(cloneProduct(product), item)
		if !matched && item.VariantID != "" {
			log.Printf("[memory-store] WARN: order %s references unknown variant %s of product %s", order.ID, item.VariantID, item.SKU)
		}
		s.products[item.SKU] = updated
	}

	if existing, ok := s.orders[order.ID]; ok {
		order.CreatedAt = existing.CreatedAt
	}
	s.orders[order.ID] = cloneOrder(order)

	clone := cloneOrder(order)
	return &clone, nil
}

func (s *Store) GetSettings(_ context.Context) (*domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return nil, store.ErrNotFound
	}
	clone := *s.settings
	return &clone, nil
}

func (s *Store) PutSettings(_ context.Context, settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, 0, len(s.auditLogs))
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneProduct(p domain.Product) domain.Product {
	if len(p.Variants) > 0 {
		variants := make([]domain.ProductVariant, len(p.Variants))
		copy(variants, p.Variants)
		p.Variants = variants
	}
	return p
}

func cloneOrder(o domain.Order) domain.Order {
	if len(o.Items) > 0 {
		items := make([]domain.OrderItem, len(o.Items))
		copy(items, o.Items)
		o.Items = items
	}
	return o
}
