package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/boutique-checkout/internal/domain/cart"
	"github.com/xenking/boutique-checkout/internal/domain/coupon"
)

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Variant   string `json:"variant" validate:"max=64"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=999"`
}

type setItemRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Variant   string `json:"variant" validate:"max=64"`
	// Quantity zero removes the line.
	Quantity int `json:"quantity" validate:"min=0,max=999"`
}

type quoteRequest struct {
	// CouponCode is optional; when present it must not be blank.
	CouponCode *string `json:"couponCode" validate:"omitempty,max=64"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.cartResponse(c))
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.AddItem(r.Context(), sessionFrom(r.Context()), req.ProductID, req.Variant, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.cartResponse(c))
}

func (h *Handler) setCartItem(w http.ResponseWriter, r *http.Request) {
	var req setItemRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	key := cart.Key{ProductID: req.ProductID, Variant: req.Variant}
	c, err := h.carts.SetQuantity(r.Context(), sessionFrom(r.Context()), key, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.cartResponse(c))
}

// removeCartItem takes the line key from the query: ?productId=&variant=.
func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := cart.Key{ProductID: q.Get("productId"), Variant: q.Get("variant")}
	if key.ProductID == "" {
		writeError(w, r, &validationError{
			msg:    "validation failed",
			fields: map[string]string{"productId": "is required"},
		})
		return
	}
	c, err := h.carts.RemoveItem(r.Context(), sessionFrom(r.Context()), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.cartResponse(c))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), sessionFrom(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// quote prices the session cart, applying the coupon when one is given.
func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	// An empty body quotes without a coupon.
	var req quoteRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, err)
		return
	}
	var code string
	if req.CouponCode != nil {
		if code = coupon.Canonical(*req.CouponCode); code == "" {
			writeError(w, r, coupon.ErrEmptyCode)
			return
		}
	}
	q, err := h.orders.Quote(r.Context(), sessionFrom(r.Context()), code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.quoteResponse(q))
}
