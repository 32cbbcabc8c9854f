package store

import (
	"context"
	"errors"
	"time"

	"studiopos/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidOrder = errors.New("invalid order")
	ErrConflict     = errors.New("conflict")
)

// Repository is the storage collaborator the transaction engine runs
// against. CompleteOrder is the one compound operation: it must persist the
// completed order and apply every inventory decrement atomically, so a
// failed checkout never leaves a completed order with undecremented stock.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpdateProductInventory(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	PutOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, status string, limit int) ([]domain.Order, error)
	CompleteOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetSettings(ctx context.Context) (*domain.Settings, error)
	PutSettings(ctx context.Context, settings domain.Settings) error
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
