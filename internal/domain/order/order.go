package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the review state of an order.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether an order in status s may move to next.
// Only pending orders can be reviewed; accepted and rejected are terminal.
func (s Status) CanTransition(next Status) bool {
	return s == StatusPending && (next == StatusAccepted || next == StatusRejected)
}

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("order status transition not allowed")
)

// Customer holds the contact and delivery details captured at checkout.
type Customer struct {
	Name    string
	Email   string
	Phone   string
	Address string
	Notes   string
}

// Item is a line item frozen at order time.
type Item struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	Variant   string          `json:"variant,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// LineTotal returns unit price × quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a submitted checkout with its priced summary.
type Order struct {
	ID         string
	Customer   Customer
	Items      []Item
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	CouponCode string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Check validates an order record read back from storage.
func (o *Order) Check() error {
	if !o.Status.Valid() {
		return errors.Wrapf(ErrInvalidStatus, "order %s: %q", o.ID, o.Status)
	}
	if len(o.Items) == 0 {
		return errors.Errorf("order %s has no items", o.ID)
	}
	return nil
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// ListByCustomer returns orders for the email, newest first.
	ListByCustomer(ctx context.Context, email string) ([]Order, error)
	// List returns orders newest first, filtered by status when non-empty.
	List(ctx context.Context, status Status) ([]Order, error)
	// UpdateStatus moves a pending order to status and returns the updated
	// record. It returns ErrInvalidTransition when the order is no longer
	// pending and ErrNotFound when it does not exist.
	UpdateStatus(ctx context.Context, id string, status Status) (*Order, error)
}
