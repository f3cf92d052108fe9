package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/boutique-checkout/internal/domain/coupon"
)

const (
	couponColumns = `id, code, discount_type, discount_value, min_purchase,
		max_uses, used_count, expires_at, active, created_at`

	findActiveCouponSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE code = $1 AND active = TRUE`

	getCouponByIDSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC, code`

	// incrementUsageSQL enforces the cap inside the store so concurrent
	// redemptions cannot exceed max_uses.
	incrementUsageSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)
		RETURNING ` + couponColumns

	couponExistsSQL = `SELECT EXISTS (SELECT 1 FROM coupons WHERE id = $1)`

	createCouponSQL = `INSERT INTO coupons (id, code, discount_type, discount_value, min_purchase,
		max_uses, used_count, expires_at, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	updateCouponSQL = `UPDATE coupons SET code = $2, discount_type = $3, discount_value = $4,
		min_purchase = $5, max_uses = $6, expires_at = $7, active = $8
		WHERE id = $1`

	setCouponActiveSQL = `UPDATE coupons SET active = $2 WHERE id = $1 RETURNING ` + couponColumns

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// Every row read is checked against the coupon schema.
type CouponRepository struct {
	db DB
}

// NewCouponRepository returns a CouponRepository that uses db.
func NewCouponRepository(db DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// FindActiveByCode looks up an active coupon by its canonical code.
func (r *CouponRepository) FindActiveByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.one(ctx, coupon.ErrNotFound, findActiveCouponSQL, code)
}

// GetByID returns a coupon regardless of its active flag.
func (r *CouponRepository) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	return r.one(ctx, coupon.ErrNotFound, getCouponByIDSQL, id)
}

// IncrementUsage bumps used_count by one unless the cap is reached.
func (r *CouponRepository) IncrementUsage(ctx context.Context, id string) (*coupon.Coupon, error) {
	c, err := r.one(ctx, coupon.ErrUsageExceeded, incrementUsageSQL, id)
	if !errors.Is(err, coupon.ErrUsageExceeded) {
		return c, err
	}

	// No row updated: either the cap is reached or the coupon is gone.
	var exists bool
	if err := r.db.QueryRow(ctx, couponExistsSQL, id).Scan(&exists); err != nil {
		return nil, errors.Wrapf(err, "check coupon %q", id)
	}
	if !exists {
		return nil, coupon.ErrNotFound
	}
	return nil, coupon.ErrUsageExceeded
}

// List returns every coupon, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.db.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return coupons, nil
}

// Create inserts c. A duplicate code yields coupon.ErrCodeTaken.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.db.Exec(ctx, createCouponSQL,
		c.ID, c.Code, string(c.Kind), c.Value, c.MinPurchase,
		c.MaxUses, c.UsedCount, c.ExpiresAt, c.Active, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrCodeTaken
		}
		return errors.Wrapf(err, "insert coupon %q", c.Code)
	}
	return nil
}

// Update replaces the editable fields of c. used_count is never written.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := r.db.Exec(ctx, updateCouponSQL,
		c.ID, c.Code, string(c.Kind), c.Value, c.MinPurchase,
		c.MaxUses, c.ExpiresAt, c.Active,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrCodeTaken
		}
		return errors.Wrapf(err, "update coupon %q", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// SetActive sets the active flag and returns the updated coupon.
func (r *CouponRepository) SetActive(ctx context.Context, id string, active bool) (*coupon.Coupon, error) {
	return r.one(ctx, coupon.ErrNotFound, setCouponActiveSQL, id, active)
}

// Delete removes the coupon or returns coupon.ErrNotFound.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete coupon %q", id)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// one runs a query returning at most one coupon row and maps no rows to
// noRows.
func (r *CouponRepository) one(ctx context.Context, noRows error, sql string, args ...any) (*coupon.Coupon, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query coupon")
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, noRows
		}
		return nil, errors.Wrap(err, "scan coupon")
	}
	return &c, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var r couponRow
	if err := row.Scan(
		&r.ID, &r.Code, &r.Kind, &r.Value, &r.MinPurchase,
		&r.MaxUses, &r.UsedCount, &r.ExpiresAt, &r.Active, &r.CreatedAt,
	); err != nil {
		return coupon.Coupon{}, err
	}
	return r.toDomain()
}

// couponRow mirrors a coupons row before it is checked.
type couponRow struct {
	ID          string
	Code        string
	Kind        string
	Value       decimal.Decimal
	MinPurchase decimal.Decimal
	MaxUses     *int
	UsedCount   int
	ExpiresAt   *time.Time
	Active      bool
	CreatedAt   time.Time
}

func (r couponRow) toDomain() (coupon.Coupon, error) {
	c := coupon.Coupon{
		ID:          r.ID,
		Code:        r.Code,
		Kind:        coupon.Kind(r.Kind),
		Value:       r.Value,
		MinPurchase: r.MinPurchase,
		MaxUses:     r.MaxUses,
		UsedCount:   r.UsedCount,
		ExpiresAt:   r.ExpiresAt,
		Active:      r.Active,
		CreatedAt:   r.CreatedAt,
	}
	if err := c.Check(); err != nil {
		return coupon.Coupon{}, errors.Wrapf(err, "coupon %q", r.ID)
	}
	return c, nil
}
