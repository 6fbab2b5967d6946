package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/pkg/httpmiddleware"
)

// HeaderAPIKey carries the admin API key.
const HeaderAPIKey = "X-API-Key"

func apiKey(r *http.Request) string {
	if k := r.Header.Get(HeaderAPIKey); k != "" {
		return k
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// requireAPIKey rejects requests without a key granting scope.
func (h *Handler) requireAPIKey(scope string) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := apiKey(r)
			if key == "" {
				httpmiddleware.WriteError(w, http.StatusUnauthorized, "missing api key")
				return
			}

			info, err := h.auth.Authenticate(r.Context(), key, scope)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthorized) {
					httpmiddleware.WriteError(w, http.StatusUnauthorized, "invalid api key")
					return
				}
				zctx.From(r.Context()).Error("Authenticate", zap.Error(err))
				httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal error")
				return
			}

			ctx := zctx.With(r.Context(), zap.String("api_key", info.Name))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
