// Package shipping computes flat-rate shipping with a free-shipping threshold.
package shipping

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Configuration store keys.
const (
	KeyFlatRate      = "frete_padrao"
	KeyFreeThreshold = "frete_gratis_acima"
)

const (
	descFlatRate      = "Flat shipping fee"
	descFreeThreshold = "Free shipping from this post-discount subtotal"
)

// Config is an immutable shipping snapshot.
type Config struct {
	FlatRate      decimal.Decimal
	FreeThreshold decimal.Decimal
}

// DefaultConfig returns the built-in rates: 15.00 flat, free from 150.00.
func DefaultConfig() Config {
	return Config{
		FlatRate:      decimal.RequireFromString("15.00"),
		FreeThreshold: decimal.RequireFromString("150.00"),
	}
}

// Calculate returns the shipping fee for a post-discount subtotal.
func (c Config) Calculate(postDiscount decimal.Decimal) decimal.Decimal {
	if postDiscount.GreaterThanOrEqual(c.FreeThreshold) {
		return decimal.Zero
	}
	return c.FlatRate
}

// SettingsStore reads raw values from the configuration store.
type SettingsStore interface {
	GetValue(ctx context.Context, key string) (value string, ok bool, err error)
}

// SettingsWriter stores raw values in the configuration store.
type SettingsWriter interface {
	Set(ctx context.Context, key, value, description string) error
}

// ErrNoRates is returned by Save when the update names no rate.
var ErrNoRates = errors.New("no shipping rate to update")

// RateError reports a rejected shipping amount.
type RateError struct {
	Key   string
	Value decimal.Decimal
}

func (e *RateError) Error() string {
	return "shipping setting " + e.Key + " must not be negative, got " + e.Value.String()
}

// Update names the rates to change. Nil fields keep the stored value.
type Update struct {
	FlatRate      *decimal.Decimal
	FreeThreshold *decimal.Decimal
}

// Save validates u and writes the given rates rounded to cents.
func Save(ctx context.Context, store SettingsWriter, u Update) error {
	if u.FlatRate == nil && u.FreeThreshold == nil {
		return ErrNoRates
	}
	writes := []struct {
		key, description string
		value            *decimal.Decimal
	}{
		{KeyFlatRate, descFlatRate, u.FlatRate},
		{KeyFreeThreshold, descFreeThreshold, u.FreeThreshold},
	}
	for _, w := range writes {
		if w.value != nil && w.value.IsNegative() {
			return &RateError{Key: w.key, Value: *w.value}
		}
	}
	for _, w := range writes {
		if w.value == nil {
			continue
		}
		if err := store.Set(ctx, w.key, w.value.StringFixed(2), w.description); err != nil {
			return errors.Wrapf(err, "write setting %q", w.key)
		}
	}
	return nil
}

// Load builds a Config from the settings store. Missing keys keep the
// default; unparsable or negative values are logged and keep the default.
func Load(ctx context.Context, store SettingsStore, defaults Config, lg *zap.Logger) (Config, error) {
	cfg := defaults

	flat, err := loadAmount(ctx, store, KeyFlatRate, defaults.FlatRate, lg)
	if err != nil {
		return Config{}, err
	}
	cfg.FlatRate = flat

	threshold, err := loadAmount(ctx, store, KeyFreeThreshold, defaults.FreeThreshold, lg)
	if err != nil {
		return Config{}, err
	}
	cfg.FreeThreshold = threshold

	return cfg, nil
}

func loadAmount(ctx context.Context, store SettingsStore, key string, def decimal.Decimal, lg *zap.Logger) (decimal.Decimal, error) {
	raw, ok, err := store.GetValue(ctx, key)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "read setting %q", key)
	}
	if !ok {
		return def, nil
	}

	// Values edited directly in the store may use a decimal comma.
	v, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."))
	if err != nil || v.IsNegative() {
		lg.Warn("Ignoring invalid shipping setting",
			zap.String("key", key),
			zap.String("value", raw),
			zap.Stringer("default", def),
		)
		return def, nil
	}
	return v.Round(2), nil
}
