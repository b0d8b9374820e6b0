package models

import "time"

// DeviceBinding pairs a shared password with the single device identity
// currently allowed to use it. Inactive bindings are kept for auditing but
// are ignored by validation.
type DeviceBinding struct {
	ID             string    `json:"id"`
	Credential     string    `json:"credential"`
	DeviceToken    string    `json:"deviceToken"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
}

// Matches reports whether the binding is enforceable for the given identity.
func (b DeviceBinding) Matches(identityToken string) bool {
	return b.Active && identityToken != "" && b.DeviceToken == identityToken
}
