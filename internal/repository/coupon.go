package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
)

const couponColumns = `id, code, description, kind, value, minimum_order,
	usage_limit, usage_count, active, valid_from, valid_until, created_at`

const (
	getCouponByIDSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE UPPER(code) = UPPER($1)`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC, id DESC`

	createCouponSQL = `INSERT INTO coupons
		(code, description, kind, value, minimum_order, usage_limit, active, valid_from, valid_until)
		VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, code, created_at`

	deactivateCouponSQL = `UPDATE coupons SET active = FALSE WHERE id = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// Inactive coupons are returned by lookups; the evaluator rejects them.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByID looks up a coupon by its identifier.
func (r *CouponRepository) FindByID(ctx context.Context, id int64) (*coupon.Coupon, error) {
	return r.findOne(ctx, getCouponByIDSQL, id)
}

// FindByCode looks up a coupon by its code (case-insensitive).
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.findOne(ctx, getCouponByCodeSQL, code)
}

func (r *CouponRepository) findOne(ctx context.Context, query string, arg any) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %v: %w", arg, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %v: %w", arg, err)
	}
	return &c, nil
}

// Create inserts a coupon and sets its ID, canonical code and creation time.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	err := r.pool.QueryRow(ctx, createCouponSQL,
		c.Code, c.Description, string(c.Kind), c.Value, c.MinimumOrder,
		c.UsageLimit, c.Active, c.ValidFrom, c.ValidUntil,
	).Scan(&c.ID, &c.Code, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("creating coupon %q: %w", c.Code, coupon.ErrDuplicateCode)
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// List returns all coupons, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Deactivate marks a coupon inactive.
func (r *CouponRepository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deactivateCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deactivating coupon %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c          coupon.Coupon
		kind       string
		usageLimit *int32
		usageCount int32
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &kind, &c.Value, &c.MinimumOrder,
		&usageLimit, &usageCount, &c.Active, &c.ValidFrom, &c.ValidUntil, &c.CreatedAt,
	)
	c.Kind = coupon.Kind(kind)
	if usageLimit != nil {
		limit := int(*usageLimit)
		c.UsageLimit = &limit
	}
	c.UsageCount = int(usageCount)
	return c, err
}
