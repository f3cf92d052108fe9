package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/boutique-checkout/internal/domain/cart"
	"github.com/xenking/boutique-checkout/internal/domain/coupon"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func line(price string, qty int) cart.LineItem {
	return cart.LineItem{ProductID: "p-" + price, Title: "Item", UnitPrice: d(price), Quantity: qty}
}

func TestPrice(t *testing.T) {
	tests := []struct {
		name         string
		items        []cart.LineItem
		coupon       *coupon.Coupon
		wantSubtotal decimal.Decimal
		wantDiscount decimal.Decimal
		wantTotal    decimal.Decimal
		wantCode     string
	}{
		{
			name:         "no coupon",
			items:        []cart.LineItem{line("500", 2)},
			wantSubtotal: d("1000"),
			wantDiscount: decimal.Zero,
			wantTotal:    d("1000"),
		},
		{
			name:         "twenty percent off",
			items:        []cart.LineItem{line("500", 2)},
			coupon:       &coupon.Coupon{Code: "SAVE20", Kind: coupon.KindPercentage, Value: d("20")},
			wantSubtotal: d("1000"),
			wantDiscount: d("200"),
			wantTotal:    d("800"),
			wantCode:     "SAVE20",
		},
		{
			name:         "percentage keeps fractional cents",
			items:        []cart.LineItem{line("1.00", 1)},
			coupon:       &coupon.Coupon{Code: "EIGHTH", Kind: coupon.KindPercentage, Value: d("12.5")},
			wantSubtotal: d("1"),
			wantDiscount: d("0.125"),
			wantTotal:    d("0.875"),
			wantCode:     "EIGHTH",
		},
		{
			name:         "fixed amount",
			items:        []cart.LineItem{line("750", 1), line("250", 1)},
			coupon:       &coupon.Coupon{Code: "FLAT100", Kind: coupon.KindFixed, Value: d("100")},
			wantSubtotal: d("1000"),
			wantDiscount: d("100"),
			wantTotal:    d("900"),
			wantCode:     "FLAT100",
		},
		{
			name:         "fixed amount above subtotal goes negative",
			items:        []cart.LineItem{line("80", 1)},
			coupon:       &coupon.Coupon{Code: "BIG", Kind: coupon.KindFixed, Value: d("100")},
			wantSubtotal: d("80"),
			wantDiscount: d("100"),
			wantTotal:    d("-20"),
			wantCode:     "BIG",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Price(cart.New(tt.items...), tt.coupon)
			require.NoError(t, err)

			assert.True(t, tt.wantSubtotal.Equal(got.Subtotal), "subtotal: expected %s, got %s", tt.wantSubtotal, got.Subtotal)
			assert.True(t, tt.wantDiscount.Equal(got.Discount), "discount: expected %s, got %s", tt.wantDiscount, got.Discount)
			assert.True(t, tt.wantTotal.Equal(got.Total), "total: expected %s, got %s", tt.wantTotal, got.Total)
			assert.True(t, got.Total.Equal(got.Subtotal.Sub(got.Discount)))
			assert.Equal(t, tt.wantCode, got.CouponCode)
		})
	}
}

func TestPolicy_ClampDiscount(t *testing.T) {
	p := Policy{ClampDiscount: true}

	got, err := p.Price(cart.New(line("80", 1)), &coupon.Coupon{Code: "BIG", Kind: coupon.KindFixed, Value: d("100")})
	require.NoError(t, err)
	assert.True(t, d("80").Equal(got.Discount))
	assert.True(t, decimal.Zero.Equal(got.Total))

	got, err = p.Price(cart.New(line("500", 1)), &coupon.Coupon{Code: "SMALL", Kind: coupon.KindFixed, Value: d("100")})
	require.NoError(t, err)
	assert.True(t, d("100").Equal(got.Discount), "discounts below the subtotal are unaffected")
}

func TestPrice_EmptyCart(t *testing.T) {
	cp := &coupon.Coupon{Code: "SAVE20", Kind: coupon.KindPercentage, Value: d("20")}

	_, err := Price(cart.New(), cp)
	require.ErrorIs(t, err, ErrEmptyCart)

	_, err = Price(nil, nil)
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestSubtotal(t *testing.T) {
	assert.True(t, decimal.Zero.Equal(Subtotal(cart.New())))
	assert.True(t, d("1000").Equal(Subtotal(cart.New(line("500", 2)))))
}

type staticRepo struct {
	coupon.Repository
	c *coupon.Coupon
}

func (r staticRepo) FindActiveByCode(context.Context, string) (*coupon.Coupon, error) {
	cp := *r.c
	return &cp, nil
}

// Validation and pricing together: the failing scenarios never reach Price.
func TestValidateThenPrice(t *testing.T) {
	yesterday := time.Now().Add(-24 * time.Hour)
	five := 5

	tests := []struct {
		name   string
		items  []cart.LineItem
		coupon *coupon.Coupon
		check  func(t *testing.T, err error)
	}{
		{
			name:   "below minimum",
			items:  []cart.LineItem{line("500", 1)},
			coupon: &coupon.Coupon{Code: "MIN600", Kind: coupon.KindFixed, Value: d("100"), MinPurchase: d("600"), Active: true},
			check: func(t *testing.T, err error) {
				var below *coupon.BelowMinimumError
				require.ErrorAs(t, err, &below)
				assert.True(t, d("600").Equal(below.Threshold))
			},
		},
		{
			name:   "usage exceeded",
			items:  []cart.LineItem{line("1000", 1)},
			coupon: &coupon.Coupon{Code: "MAXED", Kind: coupon.KindFixed, Value: d("100"), MaxUses: &five, UsedCount: 5, Active: true},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, coupon.ErrUsageExceeded)
			},
		},
		{
			name:   "expired yesterday",
			items:  []cart.LineItem{line("1000", 1)},
			coupon: &coupon.Coupon{Code: "OLD", Kind: coupon.KindFixed, Value: d("100"), ExpiresAt: &yesterday, Active: true},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, coupon.ErrExpired)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := coupon.NewService(staticRepo{c: tt.coupon})
			_, err := svc.Validate(context.Background(), tt.coupon.Code, cart.New(tt.items...))
			tt.check(t, err)
		})
	}
}
