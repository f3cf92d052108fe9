package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/boutique-checkout/internal/domain/cart"
	"github.com/xenking/boutique-checkout/internal/domain/coupon"
	"github.com/xenking/boutique-checkout/internal/domain/order"
	"github.com/xenking/boutique-checkout/internal/domain/pricing"
	"github.com/xenking/boutique-checkout/internal/domain/product"
)

// Money travels as JSON numbers; decimals are converted at the edge only.

type productResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Images      []string  `json:"images"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (h *Handler) productResponse(p product.Product) productResponse {
	images := make([]string, len(p.Images))
	for i, img := range p.Images {
		images[i] = h.imageURL(img)
	}
	return productResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
		Category:    p.Category,
		Images:      images,
		Available:   p.Available,
		CreatedAt:   p.CreatedAt,
	}
}

type lineItemResponse struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Variant   string  `json:"variant,omitempty"`
	Image     string  `json:"image,omitempty"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	LineTotal float64 `json:"lineTotal"`
}

type cartResponse struct {
	Items     []lineItemResponse `json:"items"`
	ItemCount int                `json:"itemCount"`
	Subtotal  float64            `json:"subtotal"`
}

func (h *Handler) cartResponse(c *cart.Cart) cartResponse {
	lines := c.Items()
	items := make([]lineItemResponse, len(lines))
	for i, li := range lines {
		items[i] = lineItemResponse{
			ProductID: li.ProductID,
			Title:     li.Title,
			Variant:   li.Variant,
			Image:     h.imageURL(li.Image),
			UnitPrice: li.UnitPrice.InexactFloat64(),
			Quantity:  li.Quantity,
			LineTotal: li.LineTotal().InexactFloat64(),
		}
	}
	return cartResponse{
		Items:     items,
		ItemCount: c.TotalQuantity(),
		Subtotal:  pricing.Subtotal(c).InexactFloat64(),
	}
}

type quoteResponse struct {
	cartResponse
	Discount   float64 `json:"discount"`
	Total      float64 `json:"total"`
	CouponCode string  `json:"couponCode,omitempty"`
}

func (h *Handler) quoteResponse(q *order.Quote) quoteResponse {
	resp := quoteResponse{
		cartResponse: h.cartResponse(q.Cart),
		Discount:     q.Summary.Discount.InexactFloat64(),
		Total:        q.Summary.Total.InexactFloat64(),
		CouponCode:   q.Summary.CouponCode,
	}
	resp.Subtotal = q.Summary.Subtotal.InexactFloat64()
	return resp
}

type customerPayload struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email,max=320"`
	Phone   string `json:"phone" validate:"required,max=32"`
	Address string `json:"address" validate:"required,max=500"`
	Notes   string `json:"notes,omitempty" validate:"max=1000"`
}

type orderItemResponse struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Variant   string  `json:"variant,omitempty"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	LineTotal float64 `json:"lineTotal"`
}

type orderResponse struct {
	ID         string              `json:"id"`
	Customer   customerPayload     `json:"customer"`
	Items      []orderItemResponse `json:"items"`
	Subtotal   float64             `json:"subtotal"`
	Discount   float64             `json:"discount"`
	Total      float64             `json:"total"`
	CouponCode string              `json:"couponCode,omitempty"`
	Status     string              `json:"status"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID: it.ProductID,
			Title:     it.Title,
			Variant:   it.Variant,
			UnitPrice: it.UnitPrice.InexactFloat64(),
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal().InexactFloat64(),
		}
	}
	return orderResponse{
		ID:         o.ID,
		Customer:   customerPayload(o.Customer),
		Items:      items,
		Subtotal:   o.Subtotal.InexactFloat64(),
		Discount:   o.Discount.InexactFloat64(),
		Total:      o.Total.InexactFloat64(),
		CouponCode: o.CouponCode,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func toOrderResponses(orders []order.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	return out
}

type couponResponse struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Kind        string     `json:"discountType"`
	Value       float64    `json:"discountValue"`
	MinPurchase float64    `json:"minPurchase"`
	MaxUses     *int       `json:"maxUses"`
	UsedCount   int        `json:"usedCount"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toCouponResponse(cp *coupon.Coupon) couponResponse {
	return couponResponse{
		ID:          cp.ID,
		Code:        cp.Code,
		Kind:        string(cp.Kind),
		Value:       cp.Value.InexactFloat64(),
		MinPurchase: cp.MinPurchase.InexactFloat64(),
		MaxUses:     cp.MaxUses,
		UsedCount:   cp.UsedCount,
		ExpiresAt:   cp.ExpiresAt,
		Active:      cp.Active,
		CreatedAt:   cp.CreatedAt,
	}
}

type couponRequest struct {
	Code        string          `json:"code" validate:"required,max=64"`
	Kind        string          `json:"discountType" validate:"required,oneof=percentage fixed"`
	Value       decimal.Decimal `json:"discountValue" validate:"gte=0"`
	MinPurchase decimal.Decimal `json:"minPurchase" validate:"gte=0"`
	MaxUses     *int            `json:"maxUses" validate:"omitempty,min=1"`
	ExpiresAt   *time.Time      `json:"expiresAt"`
	Active      *bool           `json:"active"`
}

func (req couponRequest) coupon(id string) *coupon.Coupon {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &coupon.Coupon{
		ID:          id,
		Code:        req.Code,
		Kind:        coupon.Kind(req.Kind),
		Value:       req.Value,
		MinPurchase: req.MinPurchase,
		MaxUses:     req.MaxUses,
		ExpiresAt:   req.ExpiresAt,
		Active:      active,
	}
}

type productRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Category    string          `json:"category" validate:"required,max=64"`
	Images      []string        `json:"images" validate:"max=10,dive,required,max=2048"`
	Available   *bool           `json:"available"`
}
