package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/boutique-checkout/internal/domain/order"
)

const (
	orderColumns = `id, customer_name, customer_email, customer_phone, customer_address, notes,
		items, subtotal, discount, total, coupon_code, status, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (id, customer_name, customer_email, customer_phone,
		customer_address, notes, items, subtotal, discount, total, coupon_code, status,
		created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByCustomerSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE LOWER(customer_email) = LOWER($1)
		ORDER BY created_at DESC`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC`

	// updateOrderStatusSQL only moves pending orders.
	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + orderColumns

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db DB
}

// NewOrderRepository returns an OrderRepository that uses db.
func NewOrderRepository(db DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists a new order. Items are stored as a JSONB document.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	var couponCode *string
	if o.CouponCode != "" {
		couponCode = &o.CouponCode
	}

	_, err = r.db.Exec(ctx, createOrderSQL,
		o.ID, o.Customer.Name, o.Customer.Email, o.Customer.Phone, o.Customer.Address, o.Customer.Notes,
		items, o.Subtotal, o.Discount, o.Total, couponCode, string(o.Status),
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", o.ID)
	}
	return nil
}

// GetByID returns the order or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.one(ctx, order.ErrNotFound, getOrderSQL, id)
}

// ListByCustomer returns orders placed with email, newest first. Matching
// is case-insensitive.
func (r *OrderRepository) ListByCustomer(ctx context.Context, email string) ([]order.Order, error) {
	return r.many(ctx, listOrdersByCustomerSQL, email)
}

// List returns all orders, or those in status when it is non-empty.
func (r *OrderRepository) List(ctx context.Context, status order.Status) ([]order.Order, error) {
	return r.many(ctx, listOrdersSQL, string(status))
}

// UpdateStatus moves a pending order to status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	o, err := r.one(ctx, order.ErrInvalidTransition, updateOrderStatusSQL, id, string(status))
	if !errors.Is(err, order.ErrInvalidTransition) {
		return o, err
	}

	var exists bool
	if err := r.db.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return nil, errors.Wrapf(err, "check order %q", id)
	}
	if !exists {
		return nil, order.ErrNotFound
	}
	return nil, order.ErrInvalidTransition
}

func (r *OrderRepository) one(ctx context.Context, noRows error, sql string, args ...any) (*order.Order, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query order")
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, noRows
		}
		return nil, errors.Wrap(err, "scan order")
	}
	return &o, nil
}

func (r *OrderRepository) many(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "scan orders")
	}
	return orders, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o          order.Order
		items      []byte
		couponCode *string
		status     string
	)
	if err := row.Scan(
		&o.ID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone, &o.Customer.Address, &o.Customer.Notes,
		&items, &o.Subtotal, &o.Discount, &o.Total, &couponCode, &status,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return order.Order{}, err
	}
	return decodeOrder(o, items, couponCode, status)
}

func decodeOrder(o order.Order, items []byte, couponCode *string, status string) (order.Order, error) {
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return order.Order{}, errors.Wrapf(err, "decode items of order %q", o.ID)
	}
	if couponCode != nil {
		o.CouponCode = *couponCode
	}
	o.Status = order.Status(status)
	if err := o.Check(); err != nil {
		return order.Order{}, err
	}
	return o, nil
}
