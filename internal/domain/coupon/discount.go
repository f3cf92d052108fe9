package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/boutique-checkout/internal/domain/cart"
)

// Discount returns the amount the coupon takes off the cart. A nil coupon
// yields zero. Percentage coupons return subtotal × value / 100 exactly;
// fixed coupons return their value verbatim, even when it exceeds the
// subtotal.
func Discount(c *cart.Cart, cp *Coupon) (decimal.Decimal, error) {
	if cp == nil {
		return decimal.Zero, nil
	}

	switch cp.Kind {
	case KindPercentage:
		return c.Subtotal().Mul(cp.Value).Shift(-2), nil
	case KindFixed:
		return cp.Value, nil
	default:
		return decimal.Zero, errors.Errorf("unsupported discount kind: %q", cp.Kind)
	}
}
