package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
)

// validateCoupon previews a coupon for a cart total. Nothing is reserved.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var (
		code  string
		total decimal.Decimal
	)
	if err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			code, err = d.Str()
		case "total":
			total, err = decodeMoney(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(code) == "" {
		writeError(w, r, badRequest("code is required"))
		return
	}
	if total.IsNegative() {
		writeError(w, r, badRequest("total must not be negative"))
		return
	}

	ev, err := h.coupons.Evaluate(r.Context(), coupon.ByCode(code), total)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c := ev.Coupon
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
			e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
			e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
			e.Field("kind", func(e *jx.Encoder) { e.Str(string(c.Kind)) })
			e.Field("value", func(e *jx.Encoder) { money(e, c.Value) })
			e.Field("discount", func(e *jx.Encoder) { money(e, ev.Discount) })
		})
	})
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.admin.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range coupons {
				encodeCoupon(e, &coupons[i])
			}
		})
	})
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var p coupon.CreateParams
	if err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			p.Code, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "kind":
			var s string
			s, err = d.Str()
			p.Kind = coupon.Kind(s)
		case "value":
			p.Value, err = decodeMoney(d)
		case "minimum_order":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var v decimal.Decimal
			v, err = decodeMoney(d)
			p.MinimumOrder = &v
		case "usage_limit":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var n int
			n, err = d.Int()
			p.UsageLimit = &n
		case "valid_from":
			p.ValidFrom, err = decodeTime(d)
		case "valid_until":
			p.ValidUntil, err = decodeTime(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.admin.Create(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCoupon(e, c) })
}

func (h *Handler) deactivateCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, badRequest("invalid coupon id %q", r.PathValue("id")))
		return
	}
	if err := h.admin.Deactivate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
