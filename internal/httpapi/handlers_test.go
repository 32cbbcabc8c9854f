package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"studiopos/backend/internal/cache"
	"studiopos/backend/internal/cart"
	"studiopos/backend/internal/domain"
	"studiopos/backend/internal/service"
	"studiopos/backend/internal/store/memory"
)

// newTestAPI builds a full API over the seeded in-memory store so handler
// tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	sessions := cart.NewSessions(cache.NoopCartCache{}, repo)
	svc := service.New(repo)

	return New(svc, sessions, "*")
}

func doJSON(t *testing.T, handler http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
}

func TestHandleProductsList(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Products) == 0 {
		t.Fatalf("expected seeded products")
	}
}

func TestHandleProductNotFound(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products/prod-missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCartAddItemAndSnapshot(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/carts/terminal-1/items", map[string]string{
		"productId": "prod-espresso",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var snap domain.CartSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Items) != 1 || snap.Items[0].ProductID != "prod-espresso" {
		t.Fatalf("snapshot items = %+v, want one espresso line", snap.Items)
	}
	if snap.Subtotal != 3.0 {
		t.Fatalf("subtotal = %v, want 3.0", snap.Subtotal)
	}
}

func TestCartAddVariantItem(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/carts/terminal-1/items", map[string]string{
		"productId": "prod-latte",
		"variantId": "var-latte-lg",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var snap domain.CartSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Items[0].VariantID != "var-latte-lg" || snap.Items[0].VariantName != "Large" {
		t.Fatalf("variant line = %+v, want large latte", snap.Items[0])
	}
	if snap.Items[0].UnitPrice != 5.5 {
		t.Fatalf("unit price = %v, want variant price 5.5", snap.Items[0].UnitPrice)
	}
}

func TestCartAddUnknownVariantRejected(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/carts/terminal-1/items", map[string]string{
		"productId": "prod-latte",
		"variantId": "var-nope",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCartDiscountValidation(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/carts/terminal-1/discount", map[string]any{
		"kind":  "percent",
		"value": -10,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative discount, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/v1/carts/terminal-1/discount", map[string]any{
		"kind":  "bogus",
		"value": 10,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown discount kind, got %d", rec.Code)
	}
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/carts/terminal-1/items", map[string]string{
		"productId": "prod-espresso",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add item failed: %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/carts/terminal-1/checkout", map[string]any{
		"paymentMethod":  "cash",
		"amountTendered": 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var receipt domain.Receipt
	if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if receipt.Order.Status != domain.OrderStatusCompleted {
		t.Fatalf("order status = %s, want completed", receipt.Order.Status)
	}
	if receipt.ChangeDue <= 0 {
		t.Fatalf("expected positive change due, got %v", receipt.ChangeDue)
	}

	// the cart is a fresh sale afterwards
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/carts/terminal-1", nil)
	var snap domain.CartSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Items) != 0 {
		t.Fatalf("expected empty cart after checkout, got %d items", len(snap.Items))
	}
}

func TestCheckoutEmptyCartOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/carts/terminal-1/checkout", map[string]any{
		"paymentMethod":  "cash",
		"amountTendered": 10,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty cart, got %d", rec.Code)
	}
}

func TestInsufficientCashOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()

	doJSON(t, handler, http.MethodPost, "/api/v1/carts/terminal-1/items", map[string]string{
		"productId": "prod-espresso",
	})

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/carts/terminal-1/checkout", map[string]any{
		"paymentMethod":  "cash",
		"amountTendered": 0.5,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for insufficient cash, got %d", rec.Code)
	}
}

func TestDraftSaveAndResumeOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()

	doJSON(t, handler, http.MethodPost, "/api/v1/carts/terminal-1/items", map[string]string{
		"productId": "prod-latte",
		"variantId": "var-latte-md",
	})

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/carts/terminal-1/draft", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("draft save: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var draft domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&draft); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	if draft.Status != domain.OrderStatusDraft {
		t.Fatalf("status = %s, want draft", draft.Status)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/carts/terminal-1/resume", map[string]string{
		"orderId": draft.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("resume: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var snap domain.CartSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Items) != 1 || snap.Items[0].VariantID != "var-latte-md" {
		t.Fatalf("resumed snapshot items = %+v, want medium latte", snap.Items)
	}
}

func TestOrdersStatusFilterOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/orders?status=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status filter, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/orders?status=draft", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", map[string]string{"title": "x"})
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
