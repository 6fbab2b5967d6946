package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// CreateParams holds the input for defining a new coupon.
type CreateParams struct {
	Code         string
	Description  string
	Kind         Kind
	Value        decimal.Decimal
	MinimumOrder *decimal.Decimal
	UsageLimit   *int
	ValidFrom    *time.Time
	ValidUntil   *time.Time
}

// Validate normalizes the params in place and reports the first problem.
func (p *CreateParams) Validate() error {
	p.Code = NormalizeCode(p.Code)
	if p.Code == "" {
		return &InvalidParamsError{Field: "code", Reason: "required"}
	}
	if len(p.Code) > 30 {
		return &InvalidParamsError{Field: "code", Reason: "at most 30 characters"}
	}
	kind, err := ParseKind(string(p.Kind))
	if err != nil {
		return err
	}
	p.Kind = kind
	p.Value = p.Value.Round(2)
	if !p.Value.IsPositive() {
		return &InvalidParamsError{Field: "value", Reason: "must be greater than 0"}
	}
	if p.Kind == KindPercentage && p.Value.GreaterThan(hundred) {
		return &InvalidParamsError{Field: "value", Reason: "percentage must not exceed 100"}
	}
	if p.MinimumOrder != nil {
		m := p.MinimumOrder.Round(2)
		p.MinimumOrder = &m
	}
	if p.MinimumOrder != nil && p.MinimumOrder.IsNegative() {
		return &InvalidParamsError{Field: "minimum_order", Reason: "must not be negative"}
	}
	if p.UsageLimit != nil && *p.UsageLimit < 0 {
		return &InvalidParamsError{Field: "usage_limit", Reason: "must not be negative"}
	}
	if p.ValidFrom != nil && p.ValidUntil != nil && p.ValidUntil.Before(*p.ValidFrom) {
		return &InvalidParamsError{Field: "valid_until", Reason: "must not be before valid_from"}
	}
	return nil
}

// Admin implements coupon administration.
type Admin struct {
	repo Repository
}

// NewAdmin creates an Admin backed by the given Repository.
func NewAdmin(repo Repository) *Admin {
	return &Admin{repo: repo}
}

// Create validates the params and stores a new active coupon. A code that
// already exists, in any letter case, yields ErrDuplicateCode.
func (a *Admin) Create(ctx context.Context, p CreateParams) (*Coupon, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	c := &Coupon{
		Code:         p.Code,
		Description:  p.Description,
		Kind:         p.Kind,
		Value:        p.Value,
		MinimumOrder: p.MinimumOrder,
		UsageLimit:   p.UsageLimit,
		Active:       true,
		ValidFrom:    p.ValidFrom,
		ValidUntil:   p.ValidUntil,
	}
	if err := a.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return nil, ErrDuplicateCode
		}
		return nil, errors.Wrap(err, "create coupon")
	}
	return c, nil
}

// List returns all coupons, newest first.
func (a *Admin) List(ctx context.Context) ([]Coupon, error) {
	coupons, err := a.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return coupons, nil
}

// Deactivate soft-deletes a coupon so it can no longer be applied.
func (a *Admin) Deactivate(ctx context.Context, id int64) error {
	if err := a.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrapf(err, "deactivate coupon %d", id)
	}
	return nil
}
