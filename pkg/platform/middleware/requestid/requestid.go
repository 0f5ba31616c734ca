// Package requestid assigns every request an identifier for log and
// audit correlation.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"custodian/pkg/requestcontext"
)

// Header carries the request ID on responses and is honored on requests
// so upstream proxies can propagate their own IDs.
const Header = "X-Request-Id"

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(Header, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
