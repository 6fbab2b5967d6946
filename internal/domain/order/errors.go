package order

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

var (
	// ErrEmptyCart is returned when a checkout has no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrOrderNotFound is returned when no order has the requested id.
	ErrOrderNotFound = errors.New("order not found")
	// ErrEmptyUpdate is returned when a status update changes nothing.
	ErrEmptyUpdate = errors.New("nothing to update")
	// ErrCouponExhausted is returned by Store.Commit when the coupon's usage
	// cap was reached by a concurrent order.
	ErrCouponExhausted = errors.New("coupon usage limit reached during commit")
)

// IncompleteCustomerError indicates a required customer field is missing.
type IncompleteCustomerError struct {
	Field string
}

func (e *IncompleteCustomerError) Error() string {
	return fmt.Sprintf("customer %s is required", e.Field)
}

// FieldTooLongError indicates a customer or address field exceeds the length
// the order snapshot can store.
type FieldTooLongError struct {
	Field string
	Max   int
}

func (e *FieldTooLongError) Error() string {
	return fmt.Sprintf("%s must be at most %d characters", e.Field, e.Max)
}

// InvalidPaymentMethodError indicates an unknown payment method.
type InvalidPaymentMethodError struct {
	Method string
}

func (e *InvalidPaymentMethodError) Error() string {
	return fmt.Sprintf("unknown payment method %q", e.Method)
}

// InvalidStatusError indicates an unknown status value in an update.
type InvalidStatusError struct {
	Field string
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// PersistenceError wraps an infrastructure failure. No partial state is left
// behind when it is returned from Checkout.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Class groups errors by how a caller should react to them.
type Class int

const (
	ClassServer Class = iota
	ClassValidation
	ClassNotFound
	ClassConflict
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassNotFound:
		return "not_found"
	case ClassConflict:
		return "conflict"
	default:
		return "server"
	}
}

// ClassOf classifies an error returned by the checkout engine.
func ClassOf(err error) Class {
	var (
		persistence *PersistenceError
		customer    *IncompleteCustomerError
		tooLong     *FieldTooLongError
		method      *InvalidPaymentMethodError
		status      *InvalidStatusError
		quantity    *product.InvalidQuantityError
		stock       *product.InsufficientStockError
		params      *coupon.InvalidParamsError
		rate        *shipping.RateError
	)
	switch {
	case errors.As(err, &persistence):
		return ClassServer
	case errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrEmptyUpdate),
		errors.As(err, &customer),
		errors.As(err, &tooLong),
		errors.As(err, &method),
		errors.As(err, &status),
		errors.As(err, &quantity),
		errors.As(err, &params),
		errors.As(err, &rate),
		errors.Is(err, shipping.ErrNoRates),
		errors.Is(err, coupon.ErrInvalid):
		return ClassValidation
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, ErrOrderNotFound):
		return ClassNotFound
	case errors.As(err, &stock),
		errors.Is(err, ErrCouponExhausted),
		errors.Is(err, coupon.ErrDuplicateCode):
		return ClassConflict
	default:
		return ClassServer
	}
}
