// Package handler exposes the storefront and admin HTTP API on a chi router.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/boutique-checkout/internal/domain/auth"
	"github.com/xenking/boutique-checkout/internal/domain/cart"
	"github.com/xenking/boutique-checkout/internal/domain/coupon"
	"github.com/xenking/boutique-checkout/internal/domain/order"
	"github.com/xenking/boutique-checkout/internal/domain/product"
)

// Carts mutates session carts.
type Carts interface {
	Get(ctx context.Context, session string) (*cart.Cart, error)
	AddItem(ctx context.Context, session, productID, variant string, quantity int) (*cart.Cart, error)
	SetQuantity(ctx context.Context, session string, key cart.Key, quantity int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, session string, key cart.Key) (*cart.Cart, error)
	Clear(ctx context.Context, session string) error
}

// Orders prices carts, places orders and reviews them.
type Orders interface {
	Quote(ctx context.Context, session, code string) (*order.Quote, error)
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error)
	ListByCustomer(ctx context.Context, email string) ([]order.Order, error)
	List(ctx context.Context, status order.Status) ([]order.Order, error)
	UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error)
}

// Coupons administers coupon definitions.
type Coupons interface {
	List(ctx context.Context) ([]coupon.Coupon, error)
	Create(ctx context.Context, cp *coupon.Coupon) error
	Update(ctx context.Context, cp *coupon.Coupon) error
	Toggle(ctx context.Context, id string) (*coupon.Coupon, error)
	Delete(ctx context.Context, id string) error
}

// Authenticator checks admin API keys.
type Authenticator interface {
	Authenticate(ctx context.Context, key, scope string) (*auth.APIKeyInfo, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product and cart
	// responses. When empty, paths are returned as stored.
	ImageBaseURL string
}

// Handler serves the HTTP API, delegating to the domain services.
type Handler struct {
	products     product.Repository
	carts        Carts
	orders       Orders
	coupons      Coupons
	auth         Authenticator
	imageBaseURL string
}

// New constructs a Handler.
func New(
	cfg Config,
	products product.Repository,
	carts Carts,
	orders Orders,
	coupons Coupons,
	authn Authenticator,
) *Handler {
	return &Handler{
		products:     products,
		carts:        carts,
		orders:       orders,
		coupons:      coupons,
		auth:         authn,
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
	}
}

// Routes returns the /api router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errMethodNotAllowed)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)

		r.Route("/cart", func(r chi.Router) {
			r.Use(requireSession)
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/items", h.addCartItem)
			r.Patch("/items", h.setCartItem)
			r.Delete("/items", h.removeCartItem)
			r.Post("/quote", h.quote)
		})

		r.With(requireSession).Post("/orders", h.placeOrder)
		r.Get("/orders", h.orderHistory)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)

			r.Get("/coupons", h.listCoupons)
			r.Post("/coupons", h.createCoupon)
			r.Put("/coupons/{id}", h.updateCoupon)
			r.Delete("/coupons/{id}", h.deleteCoupon)
			r.Post("/coupons/{id}/toggle", h.toggleCoupon)

			r.Get("/orders", h.listOrders)
			r.Post("/orders/{id}/status", h.updateOrderStatus)

			r.Put("/products/{id}", h.upsertProduct)
			r.Delete("/products/{id}", h.deleteProduct)
		})
	})
	return r
}

func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || path == "" ||
		strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return h.imageBaseURL + "/" + strings.TrimLeft(path, "/")
}
