package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/order"
)

const maxBodySize = 1 << 20

func readBody(r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, badRequest("read body: %v", err)
	}
	if len(b) == 0 {
		return nil, badRequest("empty request body")
	}
	return b, nil
}

// decodeObject iterates the fields of a JSON object body.
func decodeObject(r *http.Request, f func(d *jx.Decoder, key string) error) error {
	b, err := readBody(r)
	if err != nil {
		return err
	}
	if err := jx.DecodeBytes(b).Obj(f); err != nil {
		var bad *badRequestError
		if errors.As(err, &bad) {
			return bad
		}
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

// decodeMoney accepts both JSON numbers and numeric strings.
func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	default:
		return decimal.Zero, badRequest("amount must be a number")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, badRequest("invalid amount %q", raw)
	}
	return v, nil
}

func decodeTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, badRequest("invalid timestamp %q", s)
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, f func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	f(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func money(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.StringFixed(2)))
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeLine(e *jx.Encoder, l order.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(l.ProductID) })
		e.Field("product_name", func(e *jx.Encoder) { e.Str(l.ProductName) })
		e.Field("unit_price", func(e *jx.Encoder) { money(e, l.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("line_subtotal", func(e *jx.Encoder) { money(e, l.LineSubtotal) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID.String()) })
		if o.CouponID != nil {
			e.Field("coupon_id", func(e *jx.Encoder) { e.Int64(*o.CouponID) })
		}
		e.Field("customer", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("name", func(e *jx.Encoder) { e.Str(o.Customer.Name) })
				e.Field("email", func(e *jx.Encoder) { e.Str(o.Customer.Email) })
				e.Field("phone", func(e *jx.Encoder) { e.Str(o.Customer.Phone) })
			})
		})
		e.Field("address", func(e *jx.Encoder) {
			a := o.Address
			e.Obj(func(e *jx.Encoder) {
				e.Field("postal_code", func(e *jx.Encoder) { e.Str(a.PostalCode) })
				e.Field("street", func(e *jx.Encoder) { e.Str(a.Street) })
				e.Field("number", func(e *jx.Encoder) { e.Str(a.Number) })
				e.Field("complement", func(e *jx.Encoder) { e.Str(a.Complement) })
				e.Field("district", func(e *jx.Encoder) { e.Str(a.District) })
				e.Field("city", func(e *jx.Encoder) { e.Str(a.City) })
				e.Field("state", func(e *jx.Encoder) { e.Str(a.State) })
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { money(e, o.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { money(e, o.Discount) })
		e.Field("shipping_fee", func(e *jx.Encoder) { money(e, o.ShippingFee) })
		e.Field("total", func(e *jx.Encoder) { money(e, o.Total) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(string(o.PaymentMethod)) })
		e.Field("payment_status", func(e *jx.Encoder) { e.Str(string(o.PaymentStatus)) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.FulfillmentStatus)) })
		if o.Note != "" {
			e.Field("note", func(e *jx.Encoder) { e.Str(o.Note) })
		}
		if o.TrackingCode != "" {
			e.Field("tracking_code", func(e *jx.Encoder) { e.Str(o.TrackingCode) })
		}
		e.Field("created_at", func(e *jx.Encoder) { timestamp(e, o.CreatedAt) })
		e.Field("updated_at", func(e *jx.Encoder) { timestamp(e, o.UpdatedAt) })
		if o.Lines != nil {
			e.Field("lines", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, l := range o.Lines {
						encodeLine(e, l)
					}
				})
			})
		}
	})
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(string(c.Kind)) })
		e.Field("value", func(e *jx.Encoder) { money(e, c.Value) })
		if c.MinimumOrder != nil {
			e.Field("minimum_order", func(e *jx.Encoder) { money(e, *c.MinimumOrder) })
		}
		if c.UsageLimit != nil {
			e.Field("usage_limit", func(e *jx.Encoder) { e.Int(*c.UsageLimit) })
		}
		e.Field("usage_count", func(e *jx.Encoder) { e.Int(c.UsageCount) })
		e.Field("active", func(e *jx.Encoder) { e.Bool(c.Active) })
		if c.ValidFrom != nil {
			e.Field("valid_from", func(e *jx.Encoder) { timestamp(e, *c.ValidFrom) })
		}
		if c.ValidUntil != nil {
			e.Field("valid_until", func(e *jx.Encoder) { timestamp(e, *c.ValidUntil) })
		}
		e.Field("created_at", func(e *jx.Encoder) { timestamp(e, c.CreatedAt) })
	})
}
