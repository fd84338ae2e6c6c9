package middleware

import (
	"net/http"

	errors "github.com/frahmantamala/attendance/internal"
	"github.com/frahmantamala/attendance/internal/transport"
)

// ClientIP records the connection's remote address for audit entries and
// per-IP rate limits. Forwarding headers are only honoured when chi's RealIP
// runs first.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := errors.ContextWithClientIP(r.Context(), transport.RemoteIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
