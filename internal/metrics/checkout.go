// Package metrics defines the OpenTelemetry instruments of the checkout
// engine.
package metrics

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Checkout records checkout outcomes and commit-time conflicts.
type Checkout struct {
	checkouts metric.Int64Counter
	conflicts metric.Int64Counter
	degraded  metric.Int64Counter
	duration  metric.Float64Histogram
}

// Conflict kinds recorded by Checkout.Conflict.
const (
	ConflictStock  = "stock"
	ConflictCoupon = "coupon"
)

// NewCheckout creates the checkout instruments on the given meter.
func NewCheckout(meter metric.Meter) (*Checkout, error) {
	m := &Checkout{}

	var err error

	m.checkouts, err = meter.Int64Counter(
		"checkout_orders_total",
		metric.WithDescription("Checkout attempts by outcome"),
		metric.WithUnit("{checkout}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout_orders_total counter")
	}

	m.conflicts, err = meter.Int64Counter(
		"checkout_commit_conflicts_total",
		metric.WithDescription("Commits rejected by a stock or coupon guard"),
		metric.WithUnit("{conflict}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout_commit_conflicts_total counter")
	}

	m.degraded, err = meter.Int64Counter(
		"checkout_coupon_ignored_total",
		metric.WithDescription("Checkouts that dropped a supplied coupon"),
		metric.WithUnit("{checkout}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout_coupon_ignored_total counter")
	}

	m.duration, err = meter.Float64Histogram(
		"checkout_duration_seconds",
		metric.WithDescription("Duration of checkout operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout_duration_seconds histogram")
	}

	return m, nil
}

// Nop returns instruments backed by a no-op meter.
func Nop() *Checkout {
	m, err := NewCheckout(noop.NewMeterProvider().Meter("checkout"))
	if err != nil {
		panic(err)
	}
	return m
}

// Observe records a finished checkout with its outcome label.
func (m *Checkout) Observe(ctx context.Context, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.checkouts.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}

// Conflict records a commit rejected by a guard of the given kind.
func (m *Checkout) Conflict(ctx context.Context, kind string) {
	m.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// CouponIgnored records a checkout that proceeded without its coupon.
func (m *Checkout) CouponIgnored(ctx context.Context, reason string) {
	m.degraded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
