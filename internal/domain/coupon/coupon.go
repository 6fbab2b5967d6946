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
	// KindFixed takes Value off the subtotal, capped at the subtotal.
	KindFixed Kind = "fixed"
)

// ParseKind returns the Kind named by s. An empty string yields
// KindPercentage.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindPercentage, nil
	case KindPercentage, KindFixed:
		return k, nil
	default:
		return "", &InvalidParamsError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", s)}
	}
}

var (
	// ErrNotFound is returned when no active coupon matches the reference.
	ErrNotFound = errors.New("coupon not found")
	// ErrInvalid is matched by every rule failure of an existing coupon.
	ErrInvalid = errors.New("coupon not applicable")
	// ErrExpired is returned when now is outside the coupon's validity window.
	ErrExpired error = ruleError("coupon expired")
	// ErrUsageLimitReached is returned when the coupon has exhausted its uses.
	ErrUsageLimitReached error = ruleError("coupon usage limit reached")
	// ErrDuplicateCode is returned when creating a coupon whose code exists.
	ErrDuplicateCode = errors.New("coupon code already exists")
)

type ruleError string

func (e ruleError) Error() string { return string(e) }

func (e ruleError) Is(target error) bool { return target == ErrInvalid }

// MinimumOrderError is returned when the subtotal is below the coupon's
// minimum order amount.
type MinimumOrderError struct {
	Minimum decimal.Decimal
}

func (e *MinimumOrderError) Error() string {
	return fmt.Sprintf("order minimum of %s not met for this coupon", e.Minimum.StringFixed(2))
}

// Is reports ErrInvalid so callers can match every rule failure at once.
func (e *MinimumOrderError) Is(target error) bool { return target == ErrInvalid }

// InvalidParamsError describes a rejected coupon definition.
type InvalidParamsError struct {
	Field  string
	Reason string
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid coupon %s: %s", e.Field, e.Reason)
}

// IsRuleFailure reports whether err is a coupon-domain failure (missing,
// inactive, expired, exhausted or minimum not met) rather than an
// infrastructure error.
func IsRuleFailure(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalid)
}

// Coupon is a discount definition.
type Coupon struct {
	ID           int64
	Code         string
	Description  string
	Kind         Kind
	Value        decimal.Decimal
	MinimumOrder *decimal.Decimal
	UsageLimit   *int
	UsageCount   int
	Active       bool
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	CreatedAt    time.Time
}

// Ref identifies a coupon either by ID or by code. Exactly one should be set.
type Ref struct {
	ID   int64
	Code string
}

// ByID returns a Ref for the given coupon id.
func ByID(id int64) Ref { return Ref{ID: id} }

// ByCode returns a Ref for the given code.
func ByCode(code string) Ref { return Ref{Code: code} }

func (r Ref) String() string {
	if r.Code != "" {
		return NormalizeCode(r.Code)
	}
	return fmt.Sprintf("#%d", r.ID)
}

// NormalizeCode returns the canonical upper-case form of a code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository provides lookup and administration of coupons. Lookups return
// ErrNotFound when nothing matches; FindByCode compares codes
// case-insensitively.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Coupon, error)
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	List(ctx context.Context) ([]Coupon, error)
	Deactivate(ctx context.Context, id int64) error
}
