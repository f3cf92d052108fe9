package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported coupon discount strategies.
type Kind string

const (
	// KindPercentage takes Value percent off the subtotal.
	KindPercentage Kind = "percentage"
	// KindFixed takes Value off the subtotal verbatim.
	KindFixed Kind = "fixed"
)

// Valid reports whether k is a known discount kind.
func (k Kind) Valid() bool {
	return k == KindPercentage || k == KindFixed
}

var (
	// ErrEmptyCode is returned when the supplied code is blank.
	ErrEmptyCode = errors.New("coupon code is empty")
	// ErrNotFound is returned when no active coupon matches the code.
	ErrNotFound = errors.New("coupon not found")
	// ErrExpired is returned when the coupon's expiry has passed.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageExceeded is returned when the coupon has exhausted its allowed
	// uses, either at validation or at redemption time.
	ErrUsageExceeded = errors.New("coupon usage limit reached")
	// ErrMalformed is returned when a stored coupon record violates the
	// coupon schema.
	ErrMalformed = errors.New("malformed coupon record")
)

// BelowMinimumError is returned when the cart subtotal is below the coupon's
// minimum purchase threshold.
type BelowMinimumError struct {
	Threshold decimal.Decimal
	Subtotal  decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("minimum purchase of %s required (subtotal %s)", e.Threshold, e.Subtotal)
}

// StorageError is returned when the coupon store fails to answer a lookup or
// increment. It is never retried by this package.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("coupon storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Coupon is a named, rule-bounded discount applicable to a cart's subtotal.
type Coupon struct {
	ID          string
	Code        string
	Kind        Kind
	Value       decimal.Decimal
	MinPurchase decimal.Decimal
	// MaxUses is nil for unlimited coupons.
	MaxUses   *int
	UsedCount int
	// ExpiresAt is nil for coupons that never expire.
	ExpiresAt *time.Time
	Active    bool
	CreatedAt time.Time
}

// Canonical trims surrounding whitespace and uppercases code.
func Canonical(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check validates the record against the coupon schema and returns an error
// wrapping ErrMalformed describing the first violation.
func (c *Coupon) Check() error {
	switch {
	case c.Code == "":
		return errors.Wrap(ErrMalformed, "empty code")
	case c.Code != Canonical(c.Code):
		return errors.Wrapf(ErrMalformed, "code %q is not canonical", c.Code)
	case !c.Kind.Valid():
		return errors.Wrapf(ErrMalformed, "unknown discount kind %q", c.Kind)
	case c.Value.IsNegative():
		return errors.Wrapf(ErrMalformed, "negative discount value %s", c.Value)
	case c.MinPurchase.IsNegative():
		return errors.Wrapf(ErrMalformed, "negative minimum purchase %s", c.MinPurchase)
	case c.UsedCount < 0:
		return errors.Wrapf(ErrMalformed, "negative used count %d", c.UsedCount)
	case c.MaxUses != nil && *c.MaxUses < 1:
		return errors.Wrapf(ErrMalformed, "max uses %d must be positive", *c.MaxUses)
	}
	return nil
}

// Exhausted reports whether a bounded coupon has reached its cap.
func (c *Coupon) Exhausted() bool {
	return c.MaxUses != nil && c.UsedCount >= *c.MaxUses
}

// ExpiredAt reports whether the coupon's expiry is strictly before now.
func (c *Coupon) ExpiredAt(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// Repository provides lookup, redemption and administration of coupons.
type Repository interface {
	// FindActiveByCode returns the active coupon with the canonical code, or
	// ErrNotFound.
	FindActiveByCode(ctx context.Context, code string) (*Coupon, error)
	// IncrementUsage atomically increments used count by one unless the cap
	// has been reached, in which case it returns ErrUsageExceeded.
	IncrementUsage(ctx context.Context, id string) (*Coupon, error)

	GetByID(ctx context.Context, id string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	SetActive(ctx context.Context, id string, active bool) (*Coupon, error)
	Delete(ctx context.Context, id string) error
}

// ErrCodeTaken is returned by Create and Update when another coupon already
// uses the code.
var ErrCodeTaken = errors.New("coupon code already exists")
