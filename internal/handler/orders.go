package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/boutique-checkout/internal/domain/coupon"
	"github.com/xenking/boutique-checkout/internal/domain/order"
)

type placeOrderRequest struct {
	Customer   customerPayload `json:"customer"`
	CouponCode string          `json:"couponCode" validate:"max=64"`
}

type placeOrderResponse struct {
	Order orderResponse `json:"order"`
	// Warning explains a coupon that could not be redeemed after the order
	// was placed.
	Warning string `json:"warning,omitempty"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending accepted rejected"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		Session:    sessionFrom(r.Context()),
		Customer:   order.Customer(req.Customer),
		CouponCode: req.CouponCode,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := placeOrderResponse{Order: toOrderResponse(res.Order)}
	if errors.Is(res.RedemptionErr, coupon.ErrUsageExceeded) {
		resp.Warning = "the coupon reached its usage limit while your order was being placed"
	}
	writeJSON(w, r, http.StatusCreated, resp)
}

func (h *Handler) orderHistory(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if err := validate.Var(email, "required,email"); err != nil {
		writeError(w, r, &validationError{
			msg:    "validation failed",
			fields: map[string]string{"email": "must be a valid email"},
		})
		return
	}
	orders, err := h.orders.ListByCustomer(r.Context(), email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context(), order.Status(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), order.Status(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}
