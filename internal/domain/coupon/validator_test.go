package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/boutique-checkout/internal/domain/cart"
)

type mockCouponRepo struct {
	coupons      map[string]*Coupon
	findErr      error
	incrementErr error
	incremented  []string
	lookups      []string
}

func newMockRepo(coupons ...*Coupon) *mockCouponRepo {
	m := &mockCouponRepo{coupons: make(map[string]*Coupon)}
	for _, c := range coupons {
		m.coupons[c.ID] = c
	}
	return m
}

func (m *mockCouponRepo) FindActiveByCode(_ context.Context, code string) (*Coupon, error) {
	m.lookups = append(m.lookups, code)
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, c := range m.coupons {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockCouponRepo) IncrementUsage(_ context.Context, id string) (*Coupon, error) {
	if m.incrementErr != nil {
		return nil, m.incrementErr
	}
	c, ok := m.coupons[id]
	if !ok {
		return nil, ErrNotFound
	}
	if c.Exhausted() {
		return nil, ErrUsageExceeded
	}
	c.UsedCount++
	m.incremented = append(m.incremented, id)
	cp := *c
	return &cp, nil
}

func (m *mockCouponRepo) GetByID(_ context.Context, id string) (*Coupon, error) {
	c, ok := m.coupons[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCouponRepo) List(_ context.Context) ([]Coupon, error) {
	out := make([]Coupon, 0, len(m.coupons))
	for _, c := range m.coupons {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockCouponRepo) Create(_ context.Context, c *Coupon) error {
	for _, existing := range m.coupons {
		if existing.Code == c.Code {
			return ErrCodeTaken
		}
	}
	cp := *c
	m.coupons[c.ID] = &cp
	return nil
}

func (m *mockCouponRepo) Update(_ context.Context, c *Coupon) error {
	if _, ok := m.coupons[c.ID]; !ok {
		return ErrNotFound
	}
	cp := *c
	m.coupons[c.ID] = &cp
	return nil
}

func (m *mockCouponRepo) SetActive(_ context.Context, id string, active bool) (*Coupon, error) {
	c, ok := m.coupons[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Active = active
	cp := *c
	return &cp, nil
}

func (m *mockCouponRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.coupons[id]; !ok {
		return ErrNotFound
	}
	delete(m.coupons, id)
	return nil
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func intPtr(v int) *int {
	return &v
}

func cartOf(subtotal string) *cart.Cart {
	return cart.New(cart.LineItem{ProductID: "p1", Title: "Abaya", UnitPrice: d(subtotal), Quantity: 1})
}

func TestService_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := fixedNow.Add(-24 * time.Hour)
	future := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name    string
		coupon  *Coupon
		code    string
		cart    *cart.Cart
		wantErr error
	}{
		{
			name:   "valid percentage coupon",
			coupon: &Coupon{ID: "1", Code: "SAVE20", Kind: KindPercentage, Value: d("20"), Active: true},
			code:   "SAVE20",
			cart:   cartOf("1000"),
		},
		{
			name:   "code is canonicalised",
			coupon: &Coupon{ID: "1", Code: "SAVE20", Kind: KindPercentage, Value: d("20"), Active: true},
			code:   "  save20 ",
			cart:   cartOf("1000"),
		},
		{
			name:    "blank code",
			code:    "   ",
			cart:    cartOf("1000"),
			wantErr: ErrEmptyCode,
		},
		{
			name:    "unknown code",
			code:    "BOGUS",
			cart:    cartOf("1000"),
			wantErr: ErrNotFound,
		},
		{
			name:    "inactive coupon is not found",
			coupon:  &Coupon{ID: "1", Code: "OFF", Kind: KindFixed, Value: d("5"), Active: false},
			code:    "OFF",
			cart:    cartOf("1000"),
			wantErr: ErrNotFound,
		},
		{
			name:    "expired coupon",
			coupon:  &Coupon{ID: "1", Code: "OLD", Kind: KindFixed, Value: d("5"), ExpiresAt: &past, Active: true},
			code:    "OLD",
			cart:    cartOf("1000"),
			wantErr: ErrExpired,
		},
		{
			name:   "expiry equal to now is still valid",
			coupon: &Coupon{ID: "1", Code: "EDGE", Kind: KindFixed, Value: d("5"), ExpiresAt: &fixedNow, Active: true},
			code:   "EDGE",
			cart:   cartOf("1000"),
		},
		{
			name:   "future expiry is valid",
			coupon: &Coupon{ID: "1", Code: "SOON", Kind: KindFixed, Value: d("5"), ExpiresAt: &future, Active: true},
			code:   "SOON",
			cart:   cartOf("1000"),
		},
		{
			name: "usage cap reached",
			coupon: &Coupon{
				ID: "1", Code: "LIMITED", Kind: KindPercentage, Value: d("10"),
				MaxUses: intPtr(100), UsedCount: 100, Active: true,
			},
			code:    "LIMITED",
			cart:    cartOf("1000"),
			wantErr: ErrUsageExceeded,
		},
		{
			name: "usage under cap",
			coupon: &Coupon{
				ID: "1", Code: "ROOM", Kind: KindPercentage, Value: d("10"),
				MaxUses: intPtr(100), UsedCount: 99, Active: true,
			},
			code: "ROOM",
			cart: cartOf("1000"),
		},
		{
			name: "unlimited coupon ignores used count",
			coupon: &Coupon{
				ID: "1", Code: "FOREVER", Kind: KindFixed, Value: d("5"),
				UsedCount: 9999, Active: true,
			},
			code: "FOREVER",
			cart: cartOf("1000"),
		},
		{
			name: "expiry is checked before usage cap",
			coupon: &Coupon{
				ID: "1", Code: "BOTH", Kind: KindFixed, Value: d("5"),
				MaxUses: intPtr(1), UsedCount: 1, ExpiresAt: &past, Active: true,
			},
			code:    "BOTH",
			cart:    cartOf("1000"),
			wantErr: ErrExpired,
		},
		{
			name: "subtotal equal to minimum passes",
			coupon: &Coupon{
				ID: "1", Code: "MIN", Kind: KindFixed, Value: d("50"),
				MinPurchase: d("500"), Active: true,
			},
			code: "MIN",
			cart: cartOf("500"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			if tt.coupon != nil {
				repo = newMockRepo(tt.coupon)
			}
			s := NewService(repo)
			s.now = func() time.Time { return fixedNow }

			got, err := s.Validate(context.Background(), tt.code, tt.cart)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.coupon.Code, got.Code)
			assert.Equal(t, tt.coupon.UsedCount, got.UsedCount, "validation must not touch used count")
		})
	}
}

func TestService_Validate_BelowMinimum(t *testing.T) {
	repo := newMockRepo(&Coupon{
		ID: "1", Code: "BIG", Kind: KindPercentage, Value: d("10"),
		MinPurchase: d("2000"), Active: true,
	})
	s := NewService(repo)

	_, err := s.Validate(context.Background(), "BIG", cartOf("1999.99"))

	var below *BelowMinimumError
	require.ErrorAs(t, err, &below)
	assert.True(t, d("2000").Equal(below.Threshold))
	assert.True(t, d("1999.99").Equal(below.Subtotal))
	assert.Contains(t, err.Error(), "2000")
}

func TestService_Validate_NilCart(t *testing.T) {
	repo := newMockRepo(&Coupon{
		ID: "1", Code: "BIG", Kind: KindFixed, Value: d("50"),
		MinPurchase: d("100"), Active: true,
	})
	s := NewService(repo)

	_, err := s.Validate(context.Background(), "BIG", nil)

	var below *BelowMinimumError
	require.ErrorAs(t, err, &below)
	assert.True(t, below.Subtotal.IsZero())
}

func TestService_Validate_EmptyCodeSkipsLookup(t *testing.T) {
	repo := newMockRepo()
	s := NewService(repo)

	_, err := s.Validate(context.Background(), "", cartOf("10"))
	require.ErrorIs(t, err, ErrEmptyCode)
	assert.Empty(t, repo.lookups)
}

func TestService_Validate_LooksUpCanonicalCode(t *testing.T) {
	repo := newMockRepo()
	s := NewService(repo)

	_, _ = s.Validate(context.Background(), " welcome10\t", cartOf("10"))
	require.Len(t, repo.lookups, 1)
	assert.Equal(t, "WELCOME10", repo.lookups[0])
}

func TestService_Validate_StorageFailure(t *testing.T) {
	repo := newMockRepo()
	repo.findErr = errors.New("connection refused")
	s := NewService(repo)

	_, err := s.Validate(context.Background(), "SAVE20", cartOf("10"))

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "lookup", storageErr.Op)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestService_Validate_Idempotent(t *testing.T) {
	repo := newMockRepo(&Coupon{ID: "1", Code: "SAVE20", Kind: KindPercentage, Value: d("20"), Active: true})
	s := NewService(repo)
	c := cartOf("1000")

	first, err := s.Validate(context.Background(), "SAVE20", c)
	require.NoError(t, err)
	second, err := s.Validate(context.Background(), "SAVE20", c)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Empty(t, repo.incremented)
}

func TestService_RecordUsage(t *testing.T) {
	t.Run("increments by one", func(t *testing.T) {
		repo := newMockRepo(&Coupon{ID: "1", Code: "SAVE20", Kind: KindPercentage, Value: d("20"), Active: true, UsedCount: 4})
		s := NewService(repo)

		updated, err := s.RecordUsage(context.Background(), &Coupon{ID: "1"})
		require.NoError(t, err)
		assert.Equal(t, 5, updated.UsedCount)
		assert.Equal(t, []string{"1"}, repo.incremented)
	})

	t.Run("cap reached at redemption", func(t *testing.T) {
		repo := newMockRepo(&Coupon{
			ID: "1", Code: "LAST", Kind: KindFixed, Value: d("5"),
			MaxUses: intPtr(1), UsedCount: 1, Active: true,
		})
		s := NewService(repo)

		_, err := s.RecordUsage(context.Background(), &Coupon{ID: "1"})
		require.ErrorIs(t, err, ErrUsageExceeded)
	})

	t.Run("storage failure", func(t *testing.T) {
		repo := newMockRepo(&Coupon{ID: "1"})
		repo.incrementErr = errors.New("timeout")
		s := NewService(repo)

		_, err := s.RecordUsage(context.Background(), &Coupon{ID: "1"})
		var storageErr *StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, "increment", storageErr.Op)
	})
}

func TestCoupon_Check(t *testing.T) {
	valid := func() *Coupon {
		return &Coupon{Code: "OK", Kind: KindFixed, Value: d("5"), MinPurchase: d("0")}
	}

	tests := []struct {
		name   string
		mutate func(c *Coupon)
		ok     bool
	}{
		{name: "valid", mutate: func(*Coupon) {}, ok: true},
		{name: "empty code", mutate: func(c *Coupon) { c.Code = "" }},
		{name: "lowercase code", mutate: func(c *Coupon) { c.Code = "ok" }},
		{name: "unknown kind", mutate: func(c *Coupon) { c.Kind = "bogo" }},
		{name: "negative value", mutate: func(c *Coupon) { c.Value = d("-1") }},
		{name: "negative minimum", mutate: func(c *Coupon) { c.MinPurchase = d("-0.01") }},
		{name: "negative used count", mutate: func(c *Coupon) { c.UsedCount = -1 }},
		{name: "zero max uses", mutate: func(c *Coupon) { c.MaxUses = intPtr(0) }},
		{name: "positive max uses", mutate: func(c *Coupon) { c.MaxUses = intPtr(1) }, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Check()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}
