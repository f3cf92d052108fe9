package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/boutique-checkout/internal/domain/coupon"
	"github.com/xenking/boutique-checkout/internal/domain/product"
)

// adminCouponError reports a missing coupon as 404 rather than the
// storefront's 422.
func adminCouponError(err error) error {
	if errors.Is(err, coupon.ErrNotFound) {
		return errCouponNotFound
	}
	return err
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]couponResponse, len(coupons))
	for i := range coupons {
		resp[i] = toCouponResponse(&coupons[i])
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cp := req.coupon("")
	if err := h.coupons.Create(r.Context(), cp); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toCouponResponse(cp))
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cp := req.coupon(chi.URLParam(r, "id"))
	if err := h.coupons.Update(r.Context(), cp); err != nil {
		writeError(w, r, adminCouponError(err))
		return
	}
	writeJSON(w, r, http.StatusOK, toCouponResponse(cp))
}

func (h *Handler) toggleCoupon(w http.ResponseWriter, r *http.Request) {
	cp, err := h.coupons.Toggle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, adminCouponError(err))
		return
	}
	writeJSON(w, r, http.StatusOK, toCouponResponse(cp))
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.coupons.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, adminCouponError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) upsertProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}
	if req.Images == nil {
		req.Images = []string{}
	}
	p := &product.Product{
		ID:          chi.URLParam(r, "id"),
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Images:      req.Images,
		Available:   available,
	}
	if err := h.products.Upsert(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.productResponse(*p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
