package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/boutique-checkout/internal/domain/cart"
)

// Service validates coupon codes against carts and records redemptions.
// It holds no state between calls besides its collaborators.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a Service backed by the given Repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Validate canonicalises code, looks up the active coupon and checks, in
// order, expiry, usage cap and minimum purchase. The first failing check
// wins. On success the coupon is returned unchanged; used count is not
// touched here.
func (s *Service) Validate(ctx context.Context, code string, c *cart.Cart) (*Coupon, error) {
	code = Canonical(code)
	if code == "" {
		return nil, ErrEmptyCode
	}

	cp, err := s.repo.FindActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StorageError{Op: "lookup", Err: err}
	}
	if !cp.Active {
		return nil, ErrNotFound
	}

	if cp.ExpiredAt(s.now()) {
		return nil, ErrExpired
	}
	if cp.Exhausted() {
		return nil, ErrUsageExceeded
	}
	if subtotal := c.Subtotal(); subtotal.LessThan(cp.MinPurchase) {
		return nil, &BelowMinimumError{Threshold: cp.MinPurchase, Subtotal: subtotal}
	}

	return cp, nil
}

// RecordUsage increments the coupon's used count by exactly one. It must be
// called once per completed order, after the order is durably persisted.
// The store enforces the cap atomically; a rejected increment surfaces as
// ErrUsageExceeded. Any other failure is wrapped in *StorageError.
func (s *Service) RecordUsage(ctx context.Context, cp *Coupon) (*Coupon, error) {
	updated, err := s.repo.IncrementUsage(ctx, cp.ID)
	if err != nil {
		if errors.Is(err, ErrUsageExceeded) {
			return nil, ErrUsageExceeded
		}
		return nil, &StorageError{Op: "increment", Err: err}
	}
	return updated, nil
}
