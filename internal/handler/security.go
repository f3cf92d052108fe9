package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/boutique-checkout/internal/domain/auth"
	"github.com/xenking/boutique-checkout/pkg/httpmiddleware"
)

const (
	// SessionHeader identifies the shopper's cart.
	SessionHeader = "X-Cart-Session"
	// APIKeyHeader carries the admin API key.
	APIKeyHeader = "api_key"

	maxSessionLen = 128
)

var errInvalidSession = errors.New("X-Cart-Session header must be 1-128 printable characters")

type sessionKey struct{}

func sessionFrom(ctx context.Context) string {
	s, _ := ctx.Value(sessionKey{}).(string)
	return s
}

// requireSession rejects requests without a well-formed cart session
// header.
func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := r.Header.Get(SessionHeader)
		if !httpmiddleware.Printable(s, maxSessionLen) {
			writeError(w, r, errInvalidSession)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
	})
}

// requireAdmin authenticates the API key header against the admin scope.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := h.auth.Authenticate(r.Context(), r.Header.Get(APIKeyHeader), auth.ScopeAdmin)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := zctx.Base(r.Context(), zctx.From(r.Context()).With(zap.String("api_key", info.Name)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
