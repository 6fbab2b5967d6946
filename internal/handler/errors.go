package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/pkg/httpmiddleware"
)

// badRequestError marks malformed input detected by the handlers themselves.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// statusOf maps an error class to an HTTP status. Coupon rule failures and
// bad quantities answer 422.
func statusOf(err error) int {
	var (
		bad      *badRequestError
		quantity *product.InvalidQuantityError
	)
	if errors.As(err, &bad) {
		return http.StatusBadRequest
	}

	switch order.ClassOf(err) {
	case order.ClassValidation:
		if errors.As(err, &quantity) || errors.Is(err, coupon.ErrInvalid) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	case order.ClassNotFound:
		return http.StatusNotFound
	case order.ClassConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a {code, message} response. Server errors are
// logged and their details hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		httpmiddleware.WriteError(w, status, "internal error")
		return
	}
	httpmiddleware.WriteError(w, status, err.Error())
}
