package middleware

import (
	"net/http"

	internal "github.com/rentora/payments/internal"
)

// Identity propagates the caller identity asserted by the API gateway.
// The service sits behind the gateway, which authenticates requests and
// forwards the resolved user in the X-User-ID header.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID != "" {
			r = r.WithContext(internal.ContextWithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}
