package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"studiopos/backend/internal/domain"
	"studiopos/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, category, base_price, inventory, kind
		FROM products
		ORDER BY category, title
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Category, &p.BasePrice, &p.Inventory, &p.Kind); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range products {
		if products[i].Kind != domain.ProductKindVariable {
			continue
		}
		variants, err := s.listVariants(ctx, s.db, products[i].ID)
		if err != nil {
			return nil, err
		}
		products[i].Variants = variants
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, category, base_price, inventory, kind
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Title, &p.Category, &p.BasePrice, &p.Inventory, &p.Kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if p.Kind == domain.ProductKindVariable {
		variants, err := s.listVariants(ctx, s.db, p.ID)
		if err != nil {
			return nil, err
		}
		p.Variants = variants
	}
	return &p, nil
}

func (s *Store) UpdateProductInventory(ctx context.Context, product domain.Product) (*domain.Product, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET inventory = $2, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Inventory)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	for _, v := range product.Variants {
		if _, err := tx.ExecContext(ctx, `
			UPDATE product_variants
			SET inventory = $3, updated_at = now()
			WHERE product_id = $1 AND id = $2
		`, product.ID, v.ID, v.Inventory); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	updated := product
	return &updated, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	var phone, email, address sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, address
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &phone, &email, &address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.Phone = phone.String
	c.Email = email.String
	c.Address = address.String
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, email, address
		FROM customers
		ORDER BY lower(name)
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		var c domain.Customer
		var phone, email, address sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &phone, &email, &address); err != nil {
			return nil, err
		}
		c.Phone = phone.String
		c.Email = email.String
		c.Address = address.String
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) PutOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == "" || len(order.Items) == 0 {
		return nil, store.ErrInvalidOrder
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	saved, err := s.upsertOrderTx(ctx, tx, order)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	var customerID, paymentMethod sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, subtotal, discount, discount_kind, discount_value, tax, total, status, payment_method, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&o.ID, &customerID, &o.Subtotal, &o.Discount, &o.DiscountKind, &o.DiscountValue, &o.Tax, &o.Total, &o.Status, &paymentMethod, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	o.CustomerID = customerID.String
	o.PaymentMethod = paymentMethod.String
	o.CreatedAt = o.CreatedAt.UTC()

	items, err := s.listOrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context, status string, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, subtotal, discount, discount_kind, discount_value, tax, total, status, payment_method, created_at
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	for rows.Next() {
		var o domain.Order
		var customerID, paymentMethod sql.NullString
		if err := rows.Scan(&o.ID, &customerID, &o.Subtotal, &o.Discount, &o.DiscountKind, &o.DiscountValue, &o.Tax, &o.Total, &o.Status, &paymentMethod, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.CustomerID = customerID.String
		o.PaymentMethod = paymentMethod.String
		o.CreatedAt = o.CreatedAt.UTC()
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := s.listOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// CompleteOrder writes the completed order and applies every inventory
// decrement in one serializable transaction. Product and variant rows are
// locked up front so concurrent checkouts of the same stock serialize
// instead of both reading the pre-sale quantity.
func (s *Store) CompleteOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == "" || len(order.Items) == 0 {
		return nil, store.ErrInvalidOrder
	}
	if order.Status != domain.OrderStatusCompleted {
		return nil, store.ErrInvalidOrder
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range order.Items {
		var inventory int
		var kind string
		err := tx.QueryRowContext(ctx, `
			SELECT inventory, kind
			FROM products
			WHERE id = $1
			FOR UPDATE
		`, item.SKU).Scan(&inventory, &kind)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				log.Printf("[postgres-store] WARN: order %s references unknown product %s, stock not adjusted", order.ID, item.SKU)
				continue
			}
			return nil, err
		}

		if item.VariantID != "" && kind == domain.ProductKindVariable {
			res, err := tx.ExecContext(ctx, `
				UPDATE product_variants
				SET inventory = GREATEST(inventory - $3, 0), updated_at = now()
				WHERE product_id = $1 AND id = $2
			`, item.SKU, item.VariantID, item.Qty)
			if err != nil {
				return nil, err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return nil, err
			}
			if affected == 0 {
				log.Printf("[postgres-store] WARN: order %s references unknown variant %s of product %s", order.ID, item.VariantID, item.SKU)
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE products
				SET inventory = (SELECT COALESCE(SUM(inventory), 0) FROM product_variants WHERE product_id = $1), updated_at = now()
				WHERE id = $1
			`, item.SKU); err != nil {
				return nil, err
			}
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE products
			SET inventory = GREATEST(inventory - $2, 0), updated_at = now()
			WHERE id = $1
		`, item.SKU, item.Qty); err != nil {
			return nil, err
		}
	}

	saved, err := s.upsertOrderTx(ctx, tx, order)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *Store) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var settings domain.Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT store_name, address, phone, email, tax_rate
		FROM settings
		WHERE id = 1
	`).Scan(&settings.StoreName, &settings.Address, &settings.Phone, &settings.Email, &settings.TaxRate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &settings, nil
}

func (s *Store) PutSettings(ctx context.Context, settings domain.Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, store_name, address, phone, email, tax_rate, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE
		SET store_name = EXCLUDED.store_name,
		    address = EXCLUDED.address,
		    phone = EXCLUDED.phone,
		    email = EXCLUDED.email,
		    tax_rate = EXCLUDED.tax_rate,
		    updated_at = now()
	`, settings.StoreName, settings.Address, settings.Phone, settings.Email, settings.TaxRate)
	return err
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, entry.ID, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) listVariants(ctx context.Context, q querier, productID string) ([]domain.ProductVariant, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, title, price, inventory
		FROM product_variants
		WHERE product_id = $1
		ORDER BY position, id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	variants := make([]domain.ProductVariant, 0, 8)
	for rows.Next() {
		var v domain.ProductVariant
		if err := rows.Scan(&v.ID, &v.Title, &v.Price, &v.Inventory); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return variants, nil
}

func (s *Store) listOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, title, price, qty, variant_id, variant_name
		FROM order_items
		WHERE order_id = $1
		ORDER BY position
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0, 8)
	for rows.Next() {
		var item domain.OrderItem
		var variantID, variantName sql.NullString
		if err := rows.Scan(&item.SKU, &item.Title, &item.Price, &item.Qty, &variantID, &variantName); err != nil {
			return nil, err
		}
		item.VariantID = variantID.String
		item.VariantName = variantName.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// upsertOrderTx writes the order header and replaces its items. A draft
// re-save keeps the original created_at; overwriting an already completed
// order is rejected.
func (s *Store) upsertOrderTx(ctx context.Context, tx *sql.Tx, order domain.Order) (*domain.Order, error) {
	var existingStatus string
	var existingCreatedAt time.Time
	err := tx.QueryRowContext(ctx, `
		SELECT status, created_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, order.ID).Scan(&existingStatus, &existingCreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// new order
	case err != nil:
		return nil, err
	case existingStatus == domain.OrderStatusCompleted:
		return nil, fmt.Errorf("order %s already completed: %w", order.ID, store.ErrConflict)
	default:
		order.CreatedAt = existingCreatedAt.UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, subtotal, discount, discount_kind, discount_value, tax, total, status, payment_method, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
		ON CONFLICT (id) DO UPDATE
		SET customer_id = EXCLUDED.customer_id,
		    subtotal = EXCLUDED.subtotal,
		    discount = EXCLUDED.discount,
		    discount_kind = EXCLUDED.discount_kind,
		    discount_value = EXCLUDED.discount_value,
		    tax = EXCLUDED.tax,
		    total = EXCLUDED.total,
		    status = EXCLUDED.status,
		    payment_method = EXCLUDED.payment_method,
		    updated_at = now()
	`, order.ID, nullIfEmpty(order.CustomerID), order.Subtotal, order.Discount, order.DiscountKind, order.DiscountValue, order.Tax, order.Total, order.Status, nullIfEmpty(order.PaymentMethod), order.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
		return nil, err
	}
	for i, item := range order.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, sku, title, price, qty, variant_id, variant_name)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, order.ID, i, item.SKU, item.Title, item.Price, item.Qty, nullIfEmpty(item.VariantID), nullIfEmpty(item.VariantName)); err != nil {
			return nil, err
		}
	}

	saved := order
	return &saved, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
