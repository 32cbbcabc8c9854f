package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"studiopos/backend/internal/cart"
	"studiopos/backend/internal/domain"
	"studiopos/backend/internal/service"
	"studiopos/backend/internal/store"
)

type API struct {
	service       *service.Service
	sessions      *cart.Sessions
	allowedOrigin string
}

func New(svc *service.Service, sessions *cart.Sessions, allowedOrigin string) *API {
	return &API{
		service:       svc,
		sessions:      sessions,
		allowedOrigin: allowedOrigin,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/v1/products", a.handleProducts)
	mux.HandleFunc("/api/v1/products/", a.handleProductByID)
	mux.HandleFunc("/api/v1/customers", a.handleCustomers)
	mux.HandleFunc("/api/v1/settings", a.handleSettings)
	mux.HandleFunc("/api/v1/orders", a.handleOrders)
	mux.HandleFunc("/api/v1/orders/", a.handleOrderByID)
	mux.HandleFunc("/api/v1/audit-logs", a.handleAuditLogs)
	mux.HandleFunc("/api/v1/carts/", a.handleCartActions)

	return a.withMiddleware(mux)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleProductByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/products/"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	product, err := a.service.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	customers, err := a.service.ListCustomers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	settings, err := a.service.Settings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	status := r.URL.Query().Get("status")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	orders, err := a.service.ListOrders(r.Context(), status, limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (a *API) handleOrderByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/orders/"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("order id required"))
		return
	}

	order, err := a.service.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	date := r.URL.Query().Get("date")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), date, limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// handleCartActions routes everything under /api/v1/carts/{terminal}. The
// terminal id names the cart; each terminal holds one open sale.
func (a *API) handleCartActions(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/carts/"), "/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("terminal id required"))
		return
	}

	parts := strings.SplitN(tail, "/", 3)
	terminalID := parts[0]
	c := a.sessions.Cart(r.Context(), terminalID)

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			a.writeCartSnapshot(w, r, c)
		case http.MethodDelete:
			c.Clear(r.Context())
			a.writeCartSnapshot(w, r, c)
		default:
			writeMethodNotAllowed(w)
		}
		return
	}

	switch parts[1] {
	case "items":
		a.handleCartItems(w, r, c, parts)
	case "customer":
		a.handleCartCustomer(w, r, c)
	case "discount":
		a.handleCartDiscount(w, r, c)
	case "draft":
		a.handleCartDraft(w, r, c)
	case "checkout":
		a.handleCartCheckout(w, r, c)
	case "resume":
		a.handleCartResume(w, r, c)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown cart action"))
	}
}

func (a *API) handleCartItems(w http.ResponseWriter, r *http.Request, c *cart.Cart, parts []string) {
	if len(parts) == 2 {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}

		var req struct {
			ProductID string `json:"productId"`
			VariantID string `json:"variantId"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if req.ProductID == "" {
			writeError(w, http.StatusBadRequest, errors.New("productId required"))
			return
		}

		product, err := a.service.GetProduct(r.Context(), req.ProductID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}

		variantName := ""
		var priceOverride *float64
		if req.VariantID != "" {
			found := false
			for _, v := range product.Variants {
				if v.ID == req.VariantID {
					variantName = v.Title
					price := product.UnitPrice(v.ID)
					priceOverride = &price
					found = true
					break
				}
			}
			if !found {
				writeError(w, http.StatusNotFound, errors.New("variant not found"))
				return
			}
		}

		c.AddItem(r.Context(), product, req.VariantID, variantName, priceOverride)
		a.writeCartSnapshot(w, r, c)
		return
	}

	productID := strings.Trim(parts[2], "/")
	if productID == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}
	variantID := r.URL.Query().Get("variantId")

	switch r.Method {
	case http.MethodPatch:
		var req struct {
			Quantity int `json:"quantity"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		c.SetQuantity(r.Context(), productID, variantID, req.Quantity)
		a.writeCartSnapshot(w, r, c)
	case http.MethodDelete:
		c.RemoveItem(r.Context(), productID, variantID)
		a.writeCartSnapshot(w, r, c)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCartCustomer(w http.ResponseWriter, r *http.Request, c *cart.Cart) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		CustomerID string `json:"customerId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.CustomerID == "" {
		c.SetCustomer(r.Context(), nil)
		a.writeCartSnapshot(w, r, c)
		return
	}

	customer, err := a.service.GetCustomer(r.Context(), req.CustomerID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	c.SetCustomer(r.Context(), &customer)
	a.writeCartSnapshot(w, r, c)
}

func (a *API) handleCartDiscount(w http.ResponseWriter, r *http.Request, c *cart.Cart) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		Kind  string  `json:"kind"`
		Value float64 `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Kind != domain.DiscountAmount && req.Kind != domain.DiscountPercent {
		writeError(w, http.StatusBadRequest, errors.New("discount kind must be amount or percent"))
		return
	}
	if req.Value < 0 {
		writeError(w, http.StatusBadRequest, errors.New("discount value must not be negative"))
		return
	}

	c.SetDiscount(r.Context(), req.Kind, req.Value)
	a.writeCartSnapshot(w, r, c)
}

func (a *API) handleCartDraft(w http.ResponseWriter, r *http.Request, c *cart.Cart) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	order, err := a.service.SaveDraft(r.Context(), c)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (a *API) handleCartCheckout(w http.ResponseWriter, r *http.Request, c *cart.Cart) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		PaymentMethod  string  `json:"paymentMethod"`
		AmountTendered float64 `json:"amountTendered"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	receipt, err := a.service.Checkout(r.Context(), c, req.PaymentMethod, req.AmountTendered)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (a *API) handleCartResume(w http.ResponseWriter, r *http.Request, c *cart.Cart) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		OrderID string `json:"orderId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, errors.New("orderId required"))
		return
	}

	snapshot, err := a.service.ResumeDraft(r.Context(), c, req.OrderID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (a *API) writeCartSnapshot(w http.ResponseWriter, r *http.Request, c *cart.Cart) {
	snapshot, err := a.service.CartSnapshot(r.Context(), c)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

// statusFor maps service and store sentinels onto HTTP statuses. Unknown
// errors are treated as internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInsufficientPayment),
		errors.Is(err, service.ErrNotDraft):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrUnsupportedPayment):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrCheckoutInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic so internals never leak to the client.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
