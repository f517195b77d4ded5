package auth

import (
	"encoding/json"
	"net/http"
)

// RequireToken rejects requests whose ?token= query parameter does not
// satisfy v with 403 {"detail":"Forbidden"}.
func RequireToken(v *TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !v.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := v.Verify(r.URL.Query().Get("token")); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
