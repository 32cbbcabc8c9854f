package domain

import "time"

const (
	ProductKindSimple   = "simple"
	ProductKindVariable = "variable"
)

const (
	DiscountAmount  = "amount"
	DiscountPercent = "percent"
)

const (
	OrderStatusDraft     = "draft"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

const (
	PaymentCash = "cash"
	PaymentCard = "card"
	PaymentUPI  = "upi"
)

type ProductVariant struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Inventory int     `json:"inventory"`
}

type Product struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Category  string           `json:"category"`
	BasePrice float64          `json:"basePrice"`
	Inventory int              `json:"inventory"`
	Kind      string           `json:"kind"`
	Variants  []ProductVariant `json:"variants,omitempty"`
}

// UnitPrice resolves the sale price for a variant id: the variant price when
// it is set above zero, the base price otherwise.
func (p Product) UnitPrice(variantID string) float64 {
	if variantID == "" {
		return p.BasePrice
	}
	for _, v := range p.Variants {
		if v.ID == variantID {
			if v.Price > 0 {
				return v.Price
			}
			return p.BasePrice
		}
	}
	return p.BasePrice
}

type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

type Settings struct {
	StoreName string  `json:"storeName"`
	Address   string  `json:"address"`
	Phone     string  `json:"phone"`
	Email     string  `json:"email"`
	TaxRate   float64 `json:"taxRate"`
}

// CartLineItem is one working line of an open sale. UnitPrice is snapshotted
// when the line is created and never re-read from the catalog.
type CartLineItem struct {
	ProductID   string  `json:"productId"`
	VariantID   string  `json:"variantId,omitempty"`
	VariantName string  `json:"variantName,omitempty"`
	Title       string  `json:"title"`
	UnitPrice   float64 `json:"unitPrice"`
	Quantity    int     `json:"quantity"`
}

type DiscountConfig struct {
	Kind  string  `json:"kind"`
	Value float64 `json:"value"`
}

type OrderItem struct {
	SKU         string  `json:"sku"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Qty         int     `json:"qty"`
	VariantID   string  `json:"variantId,omitempty"`
	VariantName string  `json:"variantName,omitempty"`
}

type Order struct {
	ID            string      `json:"id"`
	CustomerID    string      `json:"customerId,omitempty"`
	Items         []OrderItem `json:"items"`
	Subtotal      float64     `json:"subtotal"`
	Discount      float64     `json:"discount"`
	DiscountKind  string      `json:"discountKind"`
	DiscountValue float64     `json:"discountValue"`
	Tax           float64     `json:"tax"`
	Total         float64     `json:"total"`
	Status        string      `json:"status"`
	PaymentMethod string      `json:"paymentMethod,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// CartSnapshot is the read model a UI renders from: the working lines plus
// the derived totals for the current discount and tax rate.
type CartSnapshot struct {
	Items         []CartLineItem `json:"items"`
	Customer      *Customer      `json:"customer,omitempty"`
	DiscountKind  string         `json:"discountKind"`
	DiscountValue float64        `json:"discountValue"`
	Discount      float64        `json:"discount"`
	Subtotal      float64        `json:"subtotal"`
	Tax           float64        `json:"tax"`
	Total         float64        `json:"total"`
	BoundOrderID  string         `json:"boundOrderId,omitempty"`
}

// Receipt is what checkout hands back for presentation: the finalized order,
// the resolved customer (nil for walk-ins), and the cash change due.
type Receipt struct {
	Order     Order     `json:"order"`
	Customer  *Customer `json:"customer,omitempty"`
	ChangeDue float64   `json:"changeDue"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"createdAt"`
}

func IsSupportedPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentCard, PaymentUPI:
		return true
	default:
		return false
	}
}
