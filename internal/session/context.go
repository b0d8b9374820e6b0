package session

import "net/http"

// ContextKey is the type used for context keys
type ContextKey string

const (
	// ContextKeyCredential is the key for the validated credential in the context
	ContextKeyCredential ContextKey = "credential"
)

// GetCredential retrieves the validated credential from the request context.
func GetCredential(r *http.Request) string {
	if c, ok := r.Context().Value(ContextKeyCredential).(string); ok {
		return c
	}
	return ""
}
