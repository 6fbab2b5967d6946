package order

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
	"github.com/xenking/storefront-checkout/internal/metrics"
)

// MaxListLimit caps the number of orders returned by List.
const MaxListLimit = 200

// LineResolver prices a single cart line.
type LineResolver interface {
	Resolve(ctx context.Context, productID int64, qty int) (*product.ResolvedLine, error)
}

// CouponEvaluator checks a coupon and computes its discount.
type CouponEvaluator interface {
	Evaluate(ctx context.Context, ref coupon.Ref, subtotal decimal.Decimal) (*coupon.Evaluation, error)
}

// CartLine is one requested product and quantity.
type CartLine struct {
	ProductID int64
	Quantity  int
}

// CheckoutRequest holds the input for placing an order. Only product ids and
// quantities are taken from the client; prices are always re-read.
type CheckoutRequest struct {
	Lines         []CartLine
	Customer      Customer
	Address       Address
	CouponID      *int64
	PaymentMethod PaymentMethod
	Note          string
}

// CheckoutResult holds the authoritative totals of a committed order.
type CheckoutResult struct {
	OrderID     uuid.UUID
	CouponID    *int64
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	ShippingFee decimal.Decimal
	Total       decimal.Decimal
}

// Options configures a Service.
type Options struct {
	// Shipping is used for any key missing from the settings store. Nil means
	// shipping.DefaultConfig.
	Shipping       *shipping.Config
	Timeout        time.Duration
	Metrics        *metrics.Checkout
	TracerProvider trace.TracerProvider
}

func (o *Options) setDefaults() {
	if o.Shipping == nil {
		defaults := shipping.DefaultConfig()
		o.Shipping = &defaults
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Nop()
	}
	if o.TracerProvider == nil {
		o.TracerProvider = noop.NewTracerProvider()
	}
}

// Service implements checkout and order administration.
type Service struct {
	lines    LineResolver
	coupons  CouponEvaluator
	settings shipping.SettingsStore
	store    Store

	shipping shipping.Config
	timeout  time.Duration
	metrics  *metrics.Checkout
	tracer   trace.Tracer
	newID    func() uuid.UUID
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	lines LineResolver,
	coupons CouponEvaluator,
	settings shipping.SettingsStore,
	store Store,
	opts Options,
) *Service {
	opts.setDefaults()
	return &Service{
		lines:    lines,
		coupons:  coupons,
		settings: settings,
		store:    store,
		shipping: *opts.Shipping,
		timeout:  opts.Timeout,
		metrics:  opts.Metrics,
		tracer:   opts.TracerProvider.Tracer("checkout/order"),
		newID:    uuid.New,
	}
}

// Checkout prices the cart, applies at most one coupon, computes shipping
// and commits the order atomically.
//
// The commit is detached from the caller's cancellation and bounded by the
// service timeout instead.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (_ *CheckoutResult, rerr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "order.Checkout",
		trace.WithAttributes(attribute.Int("checkout.lines", len(req.Lines))),
	)
	start := time.Now()
	defer func() {
		outcome := "ok"
		if rerr != nil {
			outcome = ClassOf(rerr).String()
			span.RecordError(rerr)
			span.SetStatus(codes.Error, outcome)
		}
		s.metrics.Observe(ctx, outcome, time.Since(start))
		span.End()
	}()

	lg := zctx.From(ctx)

	method, err := validateRequest(&req)
	if err != nil {
		return nil, err
	}

	resolved := make([]*product.ResolvedLine, 0, len(req.Lines))
	subtotal := decimal.Zero
	for _, l := range req.Lines {
		line, err := s.lines.Resolve(ctx, l.ProductID, l.Quantity)
		if err != nil {
			return nil, resolveError(err)
		}
		resolved = append(resolved, line)
		subtotal = subtotal.Add(line.LineSubtotal)
	}
	subtotal = subtotal.Round(2)

	var applied *coupon.Evaluation
	if req.CouponID != nil {
		ev, err := s.coupons.Evaluate(ctx, coupon.ByID(*req.CouponID), subtotal)
		switch {
		case err == nil:
			applied = ev
		case coupon.IsRuleFailure(err):
			lg.Info("Checkout continues without coupon",
				zap.Int64("coupon_id", *req.CouponID),
				zap.String("reason", err.Error()),
			)
			s.metrics.CouponIgnored(ctx, couponReason(err))
		default:
			return nil, &PersistenceError{Op: "evaluate coupon", Err: err}
		}
	}

	rates, err := shipping.Load(ctx, s.settings, s.shipping, lg)
	if err != nil {
		return nil, &PersistenceError{Op: "load shipping settings", Err: err}
	}

	o := s.buildOrder(&req, method, resolved, subtotal, applied, rates)
	err = s.store.Commit(ctx, o)
	if errors.Is(err, ErrCouponExhausted) && o.CouponID != nil {
		// Another order took the last use between evaluation and commit.
		s.metrics.Conflict(ctx, metrics.ConflictCoupon)
		s.metrics.CouponIgnored(ctx, "exhausted_at_commit")
		lg.Info("Coupon exhausted at commit, retrying without it",
			zap.Int64("coupon_id", *o.CouponID),
			zap.Stringer("order_id", o.ID),
		)
		o = s.buildOrder(&req, method, resolved, subtotal, nil, rates)
		err = s.store.Commit(ctx, o)
	}
	if err != nil {
		var stock *product.InsufficientStockError
		if errors.As(err, &stock) {
			s.metrics.Conflict(ctx, metrics.ConflictStock)
			return nil, stock
		}
		return nil, &PersistenceError{Op: "commit order", Err: err}
	}

	span.SetAttributes(attribute.String("order.id", o.ID.String()))
	lg.Info("Order placed",
		zap.Stringer("order_id", o.ID),
		zap.Stringer("total", o.Total),
		zap.Bool("coupon", o.CouponID != nil),
	)

	return &CheckoutResult{
		OrderID:     o.ID,
		CouponID:    o.CouponID,
		Subtotal:    o.Subtotal,
		Discount:    o.Discount,
		ShippingFee: o.ShippingFee,
		Total:       o.Total,
	}, nil
}

func (s *Service) buildOrder(
	req *CheckoutRequest,
	method PaymentMethod,
	resolved []*product.ResolvedLine,
	subtotal decimal.Decimal,
	applied *coupon.Evaluation,
	rates shipping.Config,
) *Order {
	discount := decimal.Zero
	var couponID *int64
	if applied != nil {
		discount = applied.Discount
		id := applied.Coupon.ID
		couponID = &id
	}

	fee := rates.Calculate(subtotal.Sub(discount))
	total := subtotal.Sub(discount).Add(fee).Round(2)

	lines := make([]Line, len(resolved))
	for i, r := range resolved {
		lines[i] = Line{
			ProductID:    r.ProductID,
			ProductName:  r.Name,
			UnitPrice:    r.UnitPrice,
			Quantity:     r.Quantity,
			LineSubtotal: r.LineSubtotal,
		}
	}

	return &Order{
		ID:                s.newID(),
		CouponID:          couponID,
		Customer:          req.Customer,
		Address:           req.Address,
		Subtotal:          subtotal,
		Discount:          discount,
		ShippingFee:       fee,
		Total:             total,
		PaymentMethod:     method,
		PaymentStatus:     PaymentPending,
		FulfillmentStatus: StatusAwaitingPayment,
		Note:              req.Note,
		Lines:             lines,
	}
}

func validateRequest(req *CheckoutRequest) (PaymentMethod, error) {
	if len(req.Lines) == 0 {
		return "", ErrEmptyCart
	}

	req.Customer.Name = strings.TrimSpace(req.Customer.Name)
	req.Customer.Email = strings.TrimSpace(req.Customer.Email)
	if req.Customer.Name == "" {
		return "", &IncompleteCustomerError{Field: "name"}
	}
	if req.Customer.Email == "" {
		return "", &IncompleteCustomerError{Field: "email"}
	}

	if err := checkLengths(req); err != nil {
		return "", err
	}

	method := PaymentMethod(strings.ToLower(strings.TrimSpace(string(req.PaymentMethod))))
	if method == "" {
		return PaymentWhatsApp, nil
	}
	if !method.Valid() {
		return "", &InvalidPaymentMethodError{Method: string(req.PaymentMethod)}
	}
	return method, nil
}

// checkLengths trims the snapshot fields and enforces the orders table column
// widths, counted in characters.
func checkLengths(req *CheckoutRequest) error {
	c, a := &req.Customer, &req.Address
	fields := []struct {
		name  string
		value *string
		max   int
	}{
		{"name", &c.Name, 160},
		{"email", &c.Email, 150},
		{"phone", &c.Phone, 20},
		{"postal_code", &a.PostalCode, 9},
		{"street", &a.Street, 200},
		{"number", &a.Number, 20},
		{"complement", &a.Complement, 100},
		{"district", &a.District, 100},
		{"city", &a.City, 100},
		{"state", &a.State, 2},
	}
	for _, f := range fields {
		*f.value = strings.TrimSpace(*f.value)
		if utf8.RuneCountInString(*f.value) > f.max {
			return &FieldTooLongError{Field: f.name, Max: f.max}
		}
	}
	return nil
}

// resolveError passes catalog rule failures through and wraps everything else.
func resolveError(err error) error {
	var (
		notFound *product.ProductNotFoundError
		stock    *product.InsufficientStockError
		quantity *product.InvalidQuantityError
	)
	if errors.As(err, &notFound) || errors.As(err, &stock) || errors.As(err, &quantity) {
		return err
	}
	return &PersistenceError{Op: "resolve line", Err: err}
}

func couponReason(err error) string {
	var minimum *coupon.MinimumOrderError
	switch {
	case errors.Is(err, coupon.ErrNotFound):
		return "not_found"
	case errors.Is(err, coupon.ErrExpired):
		return "expired"
	case errors.Is(err, coupon.ErrUsageLimitReached):
		return "usage_limit"
	case errors.As(err, &minimum):
		return "minimum_order"
	default:
		return "invalid"
	}
}

// Get returns the order with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, &PersistenceError{Op: "get order", Err: err}
	}
	return o, nil
}

// List returns orders newest first. The limit defaults to and is capped at
// MaxListLimit.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, error) {
	if f.Limit <= 0 || f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, &InvalidStatusError{Field: "status", Value: string(*f.Status)}
	}
	f.Email = strings.TrimSpace(f.Email)

	orders, err := s.store.List(ctx, f)
	if err != nil {
		return nil, &PersistenceError{Op: "list orders", Err: err}
	}
	return orders, nil
}

// UpdateStatus changes the administrative fields of an order. Totals and
// coupon usage are never touched.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, u StatusUpdate) (*Order, error) {
	if u.Empty() {
		return nil, ErrEmptyUpdate
	}
	if u.Fulfillment != nil && !u.Fulfillment.Valid() {
		return nil, &InvalidStatusError{Field: "status", Value: string(*u.Fulfillment)}
	}
	if u.Payment != nil && !u.Payment.Valid() {
		return nil, &InvalidStatusError{Field: "payment_status", Value: string(*u.Payment)}
	}
	if u.TrackingCode != nil {
		code := strings.TrimSpace(*u.TrackingCode)
		u.TrackingCode = &code
	}

	o, err := s.store.UpdateStatus(ctx, id, u)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, &PersistenceError{Op: "update order status", Err: err}
	}

	zctx.From(ctx).Info("Order status updated",
		zap.Stringer("order_id", id),
		zap.String("status", string(o.FulfillmentStatus)),
		zap.String("payment_status", string(o.PaymentStatus)),
	)
	return o, nil
}
