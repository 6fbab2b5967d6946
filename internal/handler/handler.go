// Package handler exposes the checkout engine over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
	"github.com/xenking/storefront-checkout/pkg/httpmiddleware"
)

// OrderService is the order use-case surface used by the handlers.
type OrderService interface {
	Checkout(ctx context.Context, req order.CheckoutRequest) (*order.CheckoutResult, error)
	Get(ctx context.Context, id uuid.UUID) (*order.Order, error)
	List(ctx context.Context, f order.ListFilter) ([]order.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, u order.StatusUpdate) (*order.Order, error)
}

// CouponEvaluator evaluates a coupon for a subtotal without side effects.
type CouponEvaluator interface {
	Evaluate(ctx context.Context, ref coupon.Ref, subtotal decimal.Decimal) (*coupon.Evaluation, error)
}

// CouponAdmin manages coupon definitions.
type CouponAdmin interface {
	Create(ctx context.Context, p coupon.CreateParams) (*coupon.Coupon, error)
	List(ctx context.Context) ([]coupon.Coupon, error)
	Deactivate(ctx context.Context, id int64) error
}

// Authenticator validates admin API keys.
type Authenticator interface {
	Authenticate(ctx context.Context, rawKey, scope string) (*auth.APIKeyInfo, error)
}

// Settings reads and writes the shipping settings.
type Settings interface {
	shipping.SettingsStore
	shipping.SettingsWriter
}

// Handler serves the public checkout API and the admin API.
type Handler struct {
	orders   OrderService
	coupons  CouponEvaluator
	admin    CouponAdmin
	settings Settings
	shipping shipping.Config
	auth     Authenticator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	orders OrderService,
	coupons CouponEvaluator,
	admin CouponAdmin,
	settings Settings,
	shippingDefaults shipping.Config,
	authn Authenticator,
) *Handler {
	return &Handler{
		orders:   orders,
		coupons:  coupons,
		admin:    admin,
		settings: settings,
		shipping: shippingDefaults,
		auth:     authn,
	}
}

// Register mounts every route on mux. public wraps the unauthenticated
// checkout endpoints, typically with a rate limiter.
func (h *Handler) Register(mux *http.ServeMux, public httpmiddleware.Middleware) {
	if public == nil {
		public = func(next http.Handler) http.Handler { return next }
	}
	admin := h.requireAPIKey(auth.ScopeAdmin)

	mux.Handle("POST /api/orders", public(http.HandlerFunc(h.checkout)))
	mux.Handle("POST /api/coupons/validate", public(http.HandlerFunc(h.validateCoupon)))
	mux.HandleFunc("GET /api/config", h.publicConfig)

	mux.Handle("PUT /api/admin/config", admin(http.HandlerFunc(h.updateConfig)))
	mux.Handle("GET /api/admin/orders", admin(http.HandlerFunc(h.listOrders)))
	mux.Handle("GET /api/admin/orders/{id}", admin(http.HandlerFunc(h.getOrder)))
	mux.Handle("PATCH /api/admin/orders/{id}/status", admin(http.HandlerFunc(h.updateOrderStatus)))
	mux.Handle("GET /api/admin/coupons", admin(http.HandlerFunc(h.listCoupons)))
	mux.Handle("POST /api/admin/coupons", admin(http.HandlerFunc(h.createCoupon)))
	mux.Handle("DELETE /api/admin/coupons/{id}", admin(http.HandlerFunc(h.deactivateCoupon)))
}
