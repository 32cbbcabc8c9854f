// Package service orchestrates the order lifecycle: draft save, checkout,
// and draft resume. It owns no cart state itself; carts are passed in by
// the calling session.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"studiopos/backend/internal/cart"
	"studiopos/backend/internal/domain"
	"studiopos/backend/internal/store"
	"studiopos/backend/internal/xid"
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInsufficientPayment = errors.New("amount tendered is below total")
	ErrCheckoutInProgress  = errors.New("checkout already in progress")
	ErrUnsupportedPayment  = errors.New("unsupported payment method")
	ErrNotDraft            = errors.New("order is not a draft")
)

type Service struct {
	repo store.Repository
}

func New(repo store.Repository) *Service {
	return &Service{repo: repo}
}

// SaveDraft snapshots the cart into a draft order and parks it. A cart that
// was resumed from an existing draft re-saves under the same id; otherwise a
// new id is minted. The cart is cleared afterwards: parking a draft starts a
// new sale, continuing one goes through ResumeDraft.
func (s *Service) SaveDraft(ctx context.Context, c *cart.Cart) (domain.Order, error) {
	if c.IsEmpty() {
		return domain.Order{}, ErrEmptyCart
	}

	taxRate, err := s.TaxRate(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	order := s.buildOrder(c, taxRate)
	order.Status = domain.OrderStatusDraft

	saved, err := s.repo.PutOrder(ctx, order)
	if err != nil {
		return domain.Order{}, fmt.Errorf("save draft: %w", err)
	}

	s.logAudit(ctx, "order_draft_save", "order", saved.ID, fmt.Sprintf("items=%d,total=%.2f", len(saved.Items), saved.Total))
	c.Clear(ctx)

	return *saved, nil
}

// Checkout finalizes the sale. The order write and every inventory
// decrement commit together through Repository.CompleteOrder; on any
// failure the cart is left intact and the processing flag is reset so the
// cashier can retry.
func (s *Service) Checkout(ctx context.Context, c *cart.Cart, paymentMethod string, amountTendered float64) (domain.Receipt, error) {
	if !domain.IsSupportedPaymentMethod(paymentMethod) {
		return domain.Receipt{}, ErrUnsupportedPayment
	}
	if c.IsEmpty() {
		return domain.Receipt{}, ErrEmptyCart
	}
	if !c.TryBeginCheckout() {
		return domain.Receipt{}, ErrCheckoutInProgress
	}
	defer c.EndCheckout()

	taxRate, err := s.TaxRate(ctx)
	if err != nil {
		return domain.Receipt{}, err
	}

	order := s.buildOrder(c, taxRate)
	order.Status = domain.OrderStatusCompleted
	order.PaymentMethod = paymentMethod

	if paymentMethod == domain.PaymentCash && amountTendered < order.Total {
		return domain.Receipt{}, ErrInsufficientPayment
	}

	completed, err := s.repo.CompleteOrder(ctx, order)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("checkout: %w", err)
	}

	s.logAudit(ctx, "checkout", "order", completed.ID, fmt.Sprintf("payment=%s,total=%.2f,items=%d", paymentMethod, completed.Total, len(completed.Items)))

	changeDue := 0.0
	if paymentMethod == domain.PaymentCash {
		changeDue = amountTendered - completed.Total
	}
	customer := c.Customer()
	c.Clear(ctx)

	return domain.Receipt{
		Order:     *completed,
		Customer:  customer,
		ChangeDue: changeDue,
	}, nil
}

// ResumeDraft rehydrates the cart from a parked draft and binds it to the
// draft's id, so a later SaveDraft or Checkout updates the same record
// instead of creating a duplicate.
func (s *Service) ResumeDraft(ctx context.Context, c *cart.Cart, orderID string) (domain.CartSnapshot, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	if order.Status != domain.OrderStatusDraft {
		return domain.CartSnapshot{}, ErrNotDraft
	}

	items := make([]domain.CartLineItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, domain.CartLineItem{
			ProductID:   item.SKU,
			VariantID:   item.VariantID,
			VariantName: item.VariantName,
			Title:       item.Title,
			UnitPrice:   item.Price,
			Quantity:    item.Qty,
		})
	}

	var customer *domain.Customer
	if order.CustomerID != "" {
		customer, err = s.repo.GetCustomer(ctx, order.CustomerID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return domain.CartSnapshot{}, err
			}
			customer = nil
		}
	}

	c.Load(ctx, items, customer, domain.DiscountConfig{
		Kind:  order.DiscountKind,
		Value: order.DiscountValue,
	}, order.ID)

	s.logAudit(ctx, "order_draft_resume", "order", order.ID, fmt.Sprintf("items=%d", len(order.Items)))

	taxRate, err := s.TaxRate(ctx)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	return c.Snapshot(taxRate), nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

func (s *Service) ListOrders(ctx context.Context, status string, limit int) ([]domain.Order, error) {
	if status != "" && status != domain.OrderStatusDraft && status != domain.OrderStatusCompleted && status != domain.OrderStatusCancelled {
		return nil, store.ErrInvalidOrder
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListOrders(ctx, status, limit)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) Settings(ctx context.Context) (domain.Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Settings{}, nil
		}
		return domain.Settings{}, err
	}
	return *settings, nil
}

// TaxRate reads the flat rate from settings on demand. A missing settings
// record means no tax, not an error.
func (s *Service) TaxRate(ctx context.Context) (float64, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return settings.TaxRate, nil
}

// CartSnapshot derives the cart read model at the current tax rate.
func (s *Service) CartSnapshot(ctx context.Context, c *cart.Cart) (domain.CartSnapshot, error) {
	taxRate, err := s.TaxRate(ctx)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	return c.Snapshot(taxRate), nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if date == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidOrder
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// buildOrder snapshots the cart into an order record. The id is the cart's
// bound draft id when present (stable across draft and completion),
// otherwise freshly minted.
func (s *Service) buildOrder(c *cart.Cart, taxRate float64) domain.Order {
	snap := c.Snapshot(taxRate)

	id := snap.BoundOrderID
	if id == "" {
		id = uuid.NewString()
	}

	items := make([]domain.OrderItem, 0, len(snap.Items))
	for _, line := range snap.Items {
		items = append(items, domain.OrderItem{
			SKU:         line.ProductID,
			Title:       line.Title,
			Price:       line.UnitPrice,
			Qty:         line.Quantity,
			VariantID:   line.VariantID,
			VariantName: line.VariantName,
		})
	}

	order := domain.Order{
		ID:            id,
		Items:         items,
		Subtotal:      snap.Subtotal,
		Discount:      snap.Discount,
		DiscountKind:  snap.DiscountKind,
		DiscountValue: snap.DiscountValue,
		Tax:           snap.Tax,
		Total:         snap.Total,
		CreatedAt:     time.Now().UTC(),
	}
	if snap.Customer != nil {
		order.CustomerID = snap.Customer.ID
	}
	return order
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
