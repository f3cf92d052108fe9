// Package notify delivers order status notifications to the customer email
// function. Delivery is best effort: callers never fail an order because a
// notification could not be sent.
package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Item is one line of the order summary included in a notification.
type Item struct {
	Title    string
	Quantity int
	Price    decimal.Decimal
}

// Notification describes an order event for a customer.
type Notification struct {
	OrderID       string
	CustomerName  string
	CustomerEmail string
	Status        string
	Items         []Item
	Total         decimal.Decimal
}

// Sender delivers a notification.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Nop is a Sender that logs and drops notifications. It is used when no
// email function is configured.
type Nop struct{}

func (Nop) Send(ctx context.Context, n Notification) error {
	zctx.From(ctx).Debug("Notification dropped",
		zap.String("order_id", n.OrderID),
		zap.String("status", n.Status),
	)
	return nil
}
