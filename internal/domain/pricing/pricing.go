// Package pricing derives the priced summary of a cart with an optional
// coupon. It is a pure function of its inputs.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/boutique-checkout/internal/domain/cart"
	"github.com/xenking/boutique-checkout/internal/domain/coupon"
)

// ErrEmptyCart is returned when pricing a cart with no line items.
var ErrEmptyCart = errors.New("cart is empty")

// Summary is the priced result of a cart and optional coupon.
// Total = Subtotal - Discount always holds.
type Summary struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	// CouponCode is empty when no coupon was applied.
	CouponCode string
}

// Policy controls how a discount is applied to the subtotal.
type Policy struct {
	// ClampDiscount limits the applied discount to the subtotal so the total
	// never goes negative. When false a fixed discount larger than the
	// subtotal yields a negative total.
	ClampDiscount bool
}

// Subtotal returns the sum of unit price × quantity over the cart.
func Subtotal(c *cart.Cart) decimal.Decimal {
	return c.Subtotal()
}

// Price prices c with the default (unclamped) policy.
func Price(c *cart.Cart, cp *coupon.Coupon) (Summary, error) {
	return Policy{}.Price(c, cp)
}

// Price composes subtotal, discount and total for c. A nil coupon means no
// discount. The coupon is assumed to have been validated against c.
func (p Policy) Price(c *cart.Cart, cp *coupon.Coupon) (Summary, error) {
	if c == nil || c.IsEmpty() {
		return Summary{}, ErrEmptyCart
	}

	subtotal := c.Subtotal()
	discount, err := coupon.Discount(c, cp)
	if err != nil {
		return Summary{}, errors.Wrap(err, "compute discount")
	}
	if p.ClampDiscount {
		discount = decimal.Min(discount, subtotal)
	}

	s := Summary{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
	if cp != nil {
		s.CouponCode = cp.Code
	}
	return s, nil
}
