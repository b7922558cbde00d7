package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bashirn3/cursor-azure-claude/internal/config"
)

// exemptPaths are reachable without the service key so health probes and
// banner requests keep working behind auth.
var exemptPaths = map[string]bool{
	"/":       true,
	"/health": true,
}

// Auth enforces the shared service key when one is configured. The key is
// accepted as a Bearer token, a raw Authorization value, or an x-api-key
// header.
func Auth(cfg config.Config) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.AuthEnabled() || exemptPaths[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if requestToken(r) != cfg.ServiceAPIKey {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{
						"message": "invalid or missing API key",
						"type":    "authentication_error",
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
		return auth
	}
	return r.Header.Get("x-api-key")
}
