package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/boutique-checkout/internal/domain/cart"
	"github.com/xenking/boutique-checkout/internal/domain/coupon"
	"github.com/xenking/boutique-checkout/internal/domain/pricing"
	"github.com/xenking/boutique-checkout/internal/notify"
)

// Carts is the subset of the cart service used at checkout.
type Carts interface {
	Get(ctx context.Context, session string) (*cart.Cart, error)
	Refresh(ctx context.Context, c *cart.Cart) error
	Clear(ctx context.Context, session string) error
}

// Coupons validates and redeems coupons.
type Coupons interface {
	Validate(ctx context.Context, code string, c *cart.Cart) (*coupon.Coupon, error)
	RecordUsage(ctx context.Context, cp *coupon.Coupon) (*coupon.Coupon, error)
}

// Options holds the optional collaborators of Service.
type Options struct {
	Policy         pricing.Policy
	Notifier       notify.Sender
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Quote is a priced cart with the coupon that was applied, if any.
type Quote struct {
	Cart    *cart.Cart
	Coupon  *coupon.Coupon
	Summary pricing.Summary
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Session    string
	Customer   Customer
	CouponCode string
}

// PlaceOrderResult holds the output of a placed order.
type PlaceOrderResult struct {
	Order *Order
	// RedemptionErr is coupon.ErrUsageExceeded when the coupon reached its
	// cap between validation and redemption. The order is still placed at
	// the quoted price.
	RedemptionErr error
}

// Service encapsulates checkout and order review.
type Service struct {
	carts    Carts
	coupons  Coupons
	orders   Repository
	notifier notify.Sender
	policy   pricing.Policy
	now      func() time.Time

	tracer      trace.Tracer
	placed      metric.Int64Counter
	redemptions metric.Int64Counter
}

// NewService creates an order Service.
func NewService(carts Carts, coupons Coupons, orders Repository, opts Options) (*Service, error) {
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}

	meter := opts.MeterProvider.Meter("boutique/order")
	placed, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders placed, by coupon usage"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}
	redemptions, err := meter.Int64Counter("coupons.redemptions",
		metric.WithDescription("Coupon redemption attempts, by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create redemptions counter")
	}

	return &Service{
		carts:       carts,
		coupons:     coupons,
		orders:      orders,
		notifier:    opts.Notifier,
		policy:      opts.Policy,
		now:         time.Now,
		tracer:      opts.TracerProvider.Tracer("boutique/order"),
		placed:      placed,
		redemptions: redemptions,
	}, nil
}

// Quote loads the session cart, re-resolves catalog prices, validates the
// coupon when code is non-empty and prices the result. An empty cart fails
// with pricing.ErrEmptyCart before any coupon lookup.
func (s *Service) Quote(ctx context.Context, session, code string) (*Quote, error) {
	c, err := s.carts.Get(ctx, session)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if c.IsEmpty() {
		return nil, pricing.ErrEmptyCart
	}
	if err := s.carts.Refresh(ctx, c); err != nil {
		return nil, errors.Wrap(err, "refresh cart")
	}

	var cp *coupon.Coupon
	if coupon.Canonical(code) != "" {
		if cp, err = s.coupons.Validate(ctx, code, c); err != nil {
			return nil, err
		}
	}

	summary, err := s.policy.Price(c, cp)
	if err != nil {
		return nil, err
	}
	return &Quote{Cart: c, Coupon: cp, Summary: summary}, nil
}

// PlaceOrder prices the session cart, persists the order as pending and
// then redeems the coupon. Redemption never fails the order: a storage
// failure is logged, and a cap reached since validation is reported in
// PlaceOrderResult.RedemptionErr. The cart is cleared on success.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *PlaceOrderResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()
	lg := zctx.From(ctx)

	q, err := s.Quote(ctx, req.Session, req.CouponCode)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o := &Order{
		ID:         uuid.New().String(),
		Customer:   req.Customer,
		Items:      itemsFromCart(q.Cart),
		Subtotal:   q.Summary.Subtotal,
		Discount:   q.Summary.Discount,
		Total:      q.Summary.Total,
		CouponCode: q.Summary.CouponCode,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	span.SetAttributes(attribute.String("order.id", o.ID))
	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("coupon", q.Coupon != nil)))

	res := &PlaceOrderResult{Order: o}
	if q.Coupon != nil {
		res.RedemptionErr = s.redeem(ctx, o, q.Coupon)
	}

	if err := s.carts.Clear(ctx, req.Session); err != nil {
		lg.Warn("Failed to clear cart", zap.String("order_id", o.ID), zap.Error(err))
	}

	lg.Info("Order placed",
		zap.String("order_id", o.ID),
		zap.Stringer("total", o.Total),
		zap.String("coupon", o.CouponCode),
	)
	return res, nil
}

// redeem records coupon usage for a persisted order and returns
// coupon.ErrUsageExceeded when the store rejected the increment.
func (s *Service) redeem(ctx context.Context, o *Order, cp *coupon.Coupon) error {
	lg := zctx.From(ctx).With(zap.String("order_id", o.ID), zap.String("coupon", cp.Code))

	_, err := s.coupons.RecordUsage(ctx, cp)
	var storageErr *coupon.StorageError
	switch {
	case err == nil:
		s.redemptions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
		return nil
	case errors.Is(err, coupon.ErrUsageExceeded):
		s.redemptions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "usage_exceeded")))
		lg.Warn("Coupon reached its usage cap after validation")
		return coupon.ErrUsageExceeded
	case errors.As(err, &storageErr):
		s.redemptions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "storage_error")))
		lg.Error("Coupon redemption not recorded", zap.Error(err))
		return nil
	default:
		s.redemptions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		lg.Error("Coupon redemption failed", zap.Error(err))
		return nil
	}
}

func itemsFromCart(c *cart.Cart) []Item {
	lines := c.Items()
	items := make([]Item, len(lines))
	for i, li := range lines {
		items[i] = Item{
			ProductID: li.ProductID,
			Title:     li.Title,
			Variant:   li.Variant,
			UnitPrice: li.UnitPrice,
			Quantity:  li.Quantity,
		}
	}
	return items
}

// ListByCustomer returns the order history for email, newest first.
func (s *Service) ListByCustomer(ctx context.Context, email string) ([]Order, error) {
	orders, err := s.orders.ListByCustomer(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, "list customer orders")
	}
	return orders, nil
}

// List returns orders for review, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status) ([]Order, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	orders, err := s.orders.List(ctx, status)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// UpdateStatus accepts or rejects a pending order and notifies the
// customer. Notification problems are logged and never undo the change.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if !StatusPending.CanTransition(status) {
		return nil, ErrInvalidTransition
	}

	o, err := s.orders.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, errors.Wrap(err, "update order status")
	}

	if err := s.notifier.Send(ctx, notificationFor(o)); err != nil {
		zctx.From(ctx).Warn("Failed to dispatch order notification",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
	return o, nil
}

func notificationFor(o *Order) notify.Notification {
	items := make([]notify.Item, len(o.Items))
	for i, it := range o.Items {
		items[i] = notify.Item{Title: it.Title, Quantity: it.Quantity, Price: it.UnitPrice}
	}
	return notify.Notification{
		OrderID:       o.ID,
		CustomerName:  o.Customer.Name,
		CustomerEmail: o.Customer.Email,
		Status:        string(o.Status),
		Items:         items,
		Total:         o.Total,
	}
}
