package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/af-corp/relay-gateway/internal/httputil"
)

// Middleware returns a chi middleware that authenticates requests via a
// gateway key presented as a Bearer token.
func Middleware(store CredentialStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.WriteAuthError(w, reqID, "Missing Authorization header. Use: Authorization: Bearer <gateway-key>")
				return
			}

			key := strings.TrimPrefix(authHeader, "Bearer ")
			if key == authHeader {
				httputil.WriteAuthError(w, reqID, "Invalid Authorization format. Use: Authorization: Bearer <gateway-key>")
				return
			}
			if !strings.HasPrefix(key, KeyPrefix) {
				httputil.WriteAuthError(w, reqID, "Invalid or missing gateway key")
				return
			}

			cred, err := store.Lookup(r.Context(), key)
			if err != nil {
				slog.Error("credential lookup failed", "error", err, "key_prefix", safePrefix(key))
				httputil.WriteInternalError(w, reqID, "Internal error during authentication")
				return
			}
			if cred == nil {
				slog.Warn("auth failed: key not found or inactive", "key_prefix", safePrefix(key))
				httputil.WriteAuthError(w, reqID, "Invalid or inactive gateway key")
				return
			}

			ctx := ContextWithCredential(r.Context(), cred)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// safePrefix returns a safe-to-log prefix of a gateway key (never the full key).
func safePrefix(key string) string {
	if len(key) > 12 {
		return key[:12] + "..."
	}
	return key
}
