package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

// publicConfig exposes the shipping rules the storefront shows before
// checkout.
func (h *Handler) publicConfig(w http.ResponseWriter, r *http.Request) {
	h.writeConfig(w, r)
}

// updateConfig changes the shipping rates. The next checkout picks them up.
func (h *Handler) updateConfig(w http.ResponseWriter, r *http.Request) {
	var u shipping.Update
	if err := decodeObject(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "flat_rate":
			v, err := decodeMoney(d)
			u.FlatRate = &v
			return err
		case "free_shipping_threshold":
			v, err := decodeMoney(d)
			u.FreeThreshold = &v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if err := shipping.Save(ctx, h.settings, u); err != nil {
		writeError(w, r, err)
		return
	}
	fields := make([]zap.Field, 0, 2)
	if u.FlatRate != nil {
		fields = append(fields, zap.Stringer("flat_rate", u.FlatRate))
	}
	if u.FreeThreshold != nil {
		fields = append(fields, zap.Stringer("free_shipping_threshold", u.FreeThreshold))
	}
	zctx.From(ctx).Info("Shipping settings updated", fields...)
	h.writeConfig(w, r)
}

func (h *Handler) writeConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg, err := shipping.Load(ctx, h.settings, h.shipping, zctx.From(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("flat_rate", func(e *jx.Encoder) { money(e, cfg.FlatRate) })
			e.Field("free_shipping_threshold", func(e *jx.Encoder) { money(e, cfg.FreeThreshold) })
		})
	})
}
