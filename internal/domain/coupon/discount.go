package coupon

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply returns the discount the coupon grants on subtotal. It never exceeds
// the subtotal and never goes below zero. Eligibility is not checked here.
func Apply(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch c.Kind {
	case KindFixed:
		amount = decimal.Min(c.Value, subtotal)
	default:
		amount = subtotal.Mul(c.Value).Div(hundred).Round(2)
	}
	return floorAtZero(decimal.Min(amount, subtotal)).Round(2)
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
