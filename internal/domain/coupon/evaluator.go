package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Evaluation is the outcome of a successful coupon evaluation.
type Evaluation struct {
	Coupon   *Coupon
	Discount decimal.Decimal
}

// Evaluator checks a coupon's eligibility for a subtotal and computes its
// discount. It has no side effects.
type Evaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given Repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, now: time.Now}
}

// Evaluate looks the coupon up by id or code and returns its discount for
// subtotal. Rule failures match ErrNotFound or ErrInvalid.
func (e *Evaluator) Evaluate(ctx context.Context, ref Ref, subtotal decimal.Decimal) (*Evaluation, error) {
	c, err := e.lookup(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "lookup coupon %s", ref)
	}
	if err := Check(c, subtotal, e.now()); err != nil {
		return nil, err
	}
	return &Evaluation{Coupon: c, Discount: Apply(c, subtotal)}, nil
}

func (e *Evaluator) lookup(ctx context.Context, ref Ref) (*Coupon, error) {
	if ref.Code != "" {
		return e.repo.FindByCode(ctx, NormalizeCode(ref.Code))
	}
	return e.repo.FindByID(ctx, ref.ID)
}

// Check validates the coupon's activity, window, usage cap and minimum order
// at the given instant.
func Check(c *Coupon, subtotal decimal.Decimal, now time.Time) error {
	if !c.Active {
		return ErrNotFound
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return ErrExpired
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return ErrExpired
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return ErrUsageLimitReached
	}
	if c.MinimumOrder != nil && subtotal.LessThan(*c.MinimumOrder) {
		return &MinimumOrderError{Minimum: *c.MinimumOrder}
	}
	return nil
}
