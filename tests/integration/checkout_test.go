//go:build integration

package integration

import (
	"fmt"
	"math"
	"net/http"
	"testing"
	"time"
)

var customer = map[string]string{
	"name":    "Amina",
	"email":   "amina@example.com",
	"phone":   "+971500000000",
	"address": "Dubai Marina",
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// newSession returns a session id unique to the test.
func newSession(t *testing.T) header {
	return session(fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano()))
}

func createCoupon(t *testing.T, body map[string]any) couponResponse {
	t.Helper()
	return expect[couponResponse](t, do(t, http.MethodPost, "/api/admin/coupons", body, admin()), http.StatusCreated)
}

func TestProducts_ListAndGet(t *testing.T) {
	all := expect[[]productResponse](t, doGet(t, "/api/products"), http.StatusOK)
	if len(all) != seededProducts {
		t.Fatalf("expected %d products, got %d", seededProducts, len(all))
	}

	scarves := expect[[]productResponse](t, doGet(t, "/api/products?category=scarves"), http.StatusOK)
	if len(scarves) != 2 {
		t.Fatalf("expected 2 scarves, got %d", len(scarves))
	}

	p := expect[productResponse](t, doGet(t, "/api/products/abaya-silk-black"), http.StatusOK)
	if p.Price != 450.5 || !p.Available {
		t.Fatalf("unexpected product: %+v", p)
	}

	expectError(t, doGet(t, "/api/products/missing"), http.StatusNotFound, "not_found")
}

func TestCheckout_WithCoupon(t *testing.T) {
	s := newSession(t)
	code := fmt.Sprintf("IT%d", time.Now().UnixNano()%1_000_000)
	created := createCoupon(t, map[string]any{
		"code":          code,
		"discountType":  "percentage",
		"discountValue": 10,
		"maxUses":       1,
	})

	c := expect[cartResponse](t, do(t, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": "abaya-silk-black", "variant": "M", "quantity": 2}, s), http.StatusOK)
	if !approx(c.Subtotal, 901) {
		t.Fatalf("subtotal: got %v, want 901", c.Subtotal)
	}

	q := expect[quoteResponse](t, do(t, http.MethodPost, "/api/cart/quote", map[string]any{"couponCode": code}, s), http.StatusOK)
	if !approx(q.Discount, 90.1) || !approx(q.Total, 810.9) || q.CouponCode != code {
		t.Fatalf("unexpected quote: %+v", q)
	}

	placed := expect[placeOrderResponse](t, do(t, http.MethodPost, "/api/orders",
		map[string]any{"customer": customer, "couponCode": code}, s), http.StatusCreated)
	if placed.Order.Status != "pending" || !approx(placed.Order.Total, 810.9) {
		t.Fatalf("unexpected order: %+v", placed.Order)
	}

	empty := expect[cartResponse](t, doGet(t, "/api/cart", s), http.StatusOK)
	if len(empty.Items) != 0 {
		t.Fatalf("cart not cleared: %+v", empty)
	}

	coupons := expect[[]couponResponse](t, doGet(t, "/api/admin/coupons", admin()), http.StatusOK)
	for _, cp := range coupons {
		if cp.ID == created.ID && cp.UsedCount != 1 {
			t.Fatalf("used count: got %d, want 1", cp.UsedCount)
		}
	}

	// The single use is spent.
	expect[cartResponse](t, do(t, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": "scarf-chiffon-rose", "quantity": 1}, s), http.StatusOK)
	expectError(t, do(t, http.MethodPost, "/api/cart/quote", map[string]any{"couponCode": code}, s),
		http.StatusUnprocessableEntity, "usage_exceeded")

	accepted := expect[orderResponse](t, do(t, http.MethodPost, "/api/admin/orders/"+placed.Order.ID+"/status",
		map[string]string{"status": "accepted"}, admin()), http.StatusOK)
	if accepted.Status != "accepted" {
		t.Fatalf("status: got %q", accepted.Status)
	}
	expectError(t, do(t, http.MethodPost, "/api/admin/orders/"+placed.Order.ID+"/status",
		map[string]string{"status": "rejected"}, admin()), http.StatusConflict, "invalid_transition")

	history := expect[[]orderResponse](t, doGet(t, "/api/orders?email=amina@example.com"), http.StatusOK)
	found := false
	for _, o := range history {
		found = found || o.ID == placed.Order.ID
	}
	if !found {
		t.Fatalf("order %s missing from history", placed.Order.ID)
	}
}

func TestQuote_CouponErrors(t *testing.T) {
	s := newSession(t)
	expectError(t, do(t, http.MethodPost, "/api/cart/quote", map[string]any{}, s),
		http.StatusUnprocessableEntity, "empty_cart")

	expect[cartResponse](t, do(t, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": "scarf-chiffon-rose", "quantity": 1}, s), http.StatusOK)

	expectError(t, do(t, http.MethodPost, "/api/cart/quote", map[string]any{"couponCode": "  "}, s),
		http.StatusUnprocessableEntity, "empty_code")
	expectError(t, do(t, http.MethodPost, "/api/cart/quote", map[string]any{"couponCode": "NO-SUCH-CODE"}, s),
		http.StatusUnprocessableEntity, "not_found")

	below := expectError(t, do(t, http.MethodPost, "/api/cart/quote", map[string]any{"couponCode": "eid50"}, s),
		http.StatusUnprocessableEntity, "below_minimum")
	if below.Threshold == nil || *below.Threshold != 300 {
		t.Fatalf("threshold: got %v, want 300", below.Threshold)
	}

	expired := fmt.Sprintf("EXP%d", time.Now().UnixNano()%1_000_000)
	createCoupon(t, map[string]any{
		"code":          expired,
		"discountType":  "fixed",
		"discountValue": 5,
		"expiresAt":     time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
	})
	expectError(t, do(t, http.MethodPost, "/api/cart/quote", map[string]any{"couponCode": expired}, s),
		http.StatusUnprocessableEntity, "expired")
}

func TestCart_Validation(t *testing.T) {
	expectError(t, doGet(t, "/api/cart"), http.StatusBadRequest, "invalid_session")

	s := newSession(t)
	expectError(t, do(t, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": "scarf-jersey-navy", "quantity": 1}, s),
		http.StatusUnprocessableEntity, "product_unavailable")
	expectError(t, do(t, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": "abaya-silk-black", "quantity": 0}, s),
		http.StatusBadRequest, "invalid_request")
}

func TestAdmin_RequiresAPIKey(t *testing.T) {
	expectError(t, doGet(t, "/api/admin/orders"), http.StatusUnauthorized, "unauthorized")
	expectError(t, doGet(t, "/api/admin/orders", header{"api_key", "wrong"}), http.StatusUnauthorized, "unauthorized")
	expect[[]orderResponse](t, doGet(t, "/api/admin/orders?status=pending", admin()), http.StatusOK)
}

func TestCheckout_FractionalCentDiscount(t *testing.T) {
	s := newSession(t)
	code := fmt.Sprintf("EIGHTH%d", time.Now().UnixNano()%1_000_000)
	createCoupon(t, map[string]any{
		"code":          code,
		"discountType":  "percentage",
		"discountValue": 12.5,
	})

	expect[cartResponse](t, do(t, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": "scarf-chiffon-rose", "quantity": 1}, s), http.StatusOK)
	q := expect[quoteResponse](t, do(t, http.MethodPost, "/api/cart/quote", map[string]any{"couponCode": code}, s), http.StatusOK)
	if !approx(q.Discount, 5.625) || !approx(q.Total, 39.375) {
		t.Fatalf("unexpected quote: %+v", q)
	}

	email := fmt.Sprintf("eighth-%d@example.com", time.Now().UnixNano())
	buyer := map[string]string{"name": "Layla", "email": email, "phone": "+971500000001", "address": "Jumeirah"}
	placed := expect[placeOrderResponse](t, do(t, http.MethodPost, "/api/orders",
		map[string]any{"customer": buyer, "couponCode": code}, s), http.StatusCreated)

	// Read back from the store: the persisted order matches the quote.
	history := expect[[]orderResponse](t, doGet(t, "/api/orders?email="+email), http.StatusOK)
	if len(history) != 1 || history[0].ID != placed.Order.ID {
		t.Fatalf("unexpected history: %+v", history)
	}
	o := history[0]
	if !approx(o.Subtotal, q.Subtotal) || !approx(o.Discount, q.Discount) || !approx(o.Total, q.Total) {
		t.Fatalf("stored order %+v differs from quote %+v", o, q)
	}
	if !approx(o.Total, o.Subtotal-o.Discount) {
		t.Fatalf("stored total %v != %v - %v", o.Total, o.Subtotal, o.Discount)
	}
}
