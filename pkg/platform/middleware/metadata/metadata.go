// Package metadata extracts client metadata from incoming requests.
package metadata

import (
	"net/http"
	"strings"

	"custodian/pkg/requestcontext"
)

// ClientMetadata stores the client IP address and User-Agent in the
// request context. Apply it early in the chain so the abuse guard and
// audit records see the values.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(),
			ClientIPFromRequest(r),
			r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest extracts the originating client IP, looking through
// proxy headers before falling back to the socket address.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For may hold a chain: client, proxy1, proxy2. The first
	// entry is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return strings.TrimSpace(xrip)
	}

	// RemoteAddr is host:port.
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		host := addr[:idx]
		return strings.Trim(host, "[]")
	}
	return addr
}
