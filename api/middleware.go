package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"sunnymovies/internal/session"
	"sunnymovies/services/auth"
)

// CredentialHeader carries the shared password the frontend re-sends on
// every catalog request.
const CredentialHeader = "X-Session-Password"

// DeviceSessionMiddleware creates middleware that only passes requests whose
// credential has an active binding for the caller's identity.
func DeviceSessionMiddleware(gateway *auth.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Always allow OPTIONS for CORS
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			credential := strings.TrimSpace(r.Header.Get(CredentialHeader))
			if credential == "" {
				writeUnauthorized(w, "authentication required")
				return
			}

			if !gateway.CheckSession(credential, r) {
				writeUnauthorized(w, "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), session.ContextKeyCredential, credential)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
