package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/storefront-checkout/internal/domain/order"
)

// decodeCheckout reads the checkout body. Client-side prices and totals are
// skipped; the engine recomputes everything from the catalog. The storefront
// form posts "items" and "address", which are accepted as aliases of "cart"
// and "shipping_address".
func decodeCheckout(r *http.Request) (order.CheckoutRequest, error) {
	var req order.CheckoutRequest
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "cart", "items":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				var line order.CartLine
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "product_id":
						line.ProductID, err = d.Int64()
					case "quantity":
						line.Quantity, err = d.Int()
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				req.Lines = append(req.Lines, line)
				return nil
			})
		case "customer":
			return d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "name":
					req.Customer.Name, err = d.Str()
				case "email":
					req.Customer.Email, err = d.Str()
				case "phone":
					req.Customer.Phone, err = d.Str()
				default:
					err = d.Skip()
				}
				return err
			})
		case "shipping_address", "address":
			return d.Obj(func(d *jx.Decoder, key string) error {
				a := &req.Address
				var err error
				switch key {
				case "postal_code":
					a.PostalCode, err = d.Str()
				case "street":
					a.Street, err = d.Str()
				case "number":
					a.Number, err = d.Str()
				case "complement":
					a.Complement, err = d.Str()
				case "district":
					a.District, err = d.Str()
				case "city":
					a.City, err = d.Str()
				case "state":
					a.State, err = d.Str()
				default:
					err = d.Skip()
				}
				return err
			})
		case "coupon_id":
			if d.Next() == jx.Null {
				return d.Null()
			}
			id, err := d.Int64()
			if err != nil {
				return err
			}
			req.CouponID = &id
			return nil
		case "payment_method":
			s, err := d.Str()
			req.PaymentMethod = order.PaymentMethod(s)
			return err
		case "note":
			s, err := d.Str()
			req.Note = s
			return err
		default:
			return d.Skip()
		}
	})
	return req, err
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCheckout(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.orders.Checkout(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order_id", func(e *jx.Encoder) { e.Str(res.OrderID.String()) })
			if res.CouponID != nil {
				e.Field("coupon_id", func(e *jx.Encoder) { e.Int64(*res.CouponID) })
			}
			e.Field("subtotal", func(e *jx.Encoder) { money(e, res.Subtotal) })
			e.Field("discount", func(e *jx.Encoder) { money(e, res.Discount) })
			e.Field("shipping_fee", func(e *jx.Encoder) { money(e, res.ShippingFee) })
			e.Field("total", func(e *jx.Encoder) { money(e, res.Total) })
		})
	})
}

func orderID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, badRequest("invalid order id %q", r.PathValue("id"))
	}
	return id, nil
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := order.ListFilter{Email: q.Get("email")}
	if s := q.Get("status"); s != "" {
		status := order.FulfillmentStatus(s)
		f.Status = &status
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, r, badRequest("invalid limit %q", s))
			return
		}
		f.Limit = limit
	}

	orders, err := h.orders.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var u order.StatusUpdate
	if err := decodeObject(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			s, err := d.Str()
			status := order.FulfillmentStatus(s)
			u.Fulfillment = &status
			return err
		case "payment_status":
			s, err := d.Str()
			status := order.PaymentStatus(s)
			u.Payment = &status
			return err
		case "tracking_code":
			s, err := d.Str()
			u.TrackingCode = &s
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), id, u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}
