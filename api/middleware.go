package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthMiddleware checks the Authorization bearer token when one is
// configured. Comparison is constant time so the token cannot be probed
// byte by byte.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			a.audit.log(AuditAuthFailure, r)
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(a.token)) != 1 {
			a.audit.log(AuditAuthFailure, r)
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
