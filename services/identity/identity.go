// Package identity derives a coarse caller identity from request metadata.
// Two schemes exist: a server-minted device token carried in a cookie, and
// the caller's apparent network address. Exactly one is selected at startup;
// they are never composed.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

const (
	// DefaultCookieName is the cookie carrying the device token.
	DefaultCookieName = "deviceToken"

	// CookieMaxAge is the device cookie lifetime in seconds (30 days).
	CookieMaxAge = 30 * 24 * 60 * 60

	// tokenLength is the number of random bytes in a minted device token.
	tokenLength = 32

	// UnknownAddress is the sentinel identity used by the address scheme
	// when no caller address can be determined.
	UnknownAddress = "unknown"
)

// Scheme derives "who is asking" from a request. Resolve is a pure function
// of request metadata; Issue establishes an identity for a first-time caller.
type Scheme interface {
	// Resolve returns the caller's identity token, or "" when the request
	// carries none.
	Resolve(r *http.Request) string

	// Issue returns an identity token for a caller that resolved to none.
	// The returned cookie is non-nil when the client must persist the token
	// for future requests.
	Issue(r *http.Request) (string, *http.Cookie, error)
}

// DeviceTokenScheme recognizes callers by a random token minted on first
// bind and stored in a long-lived cookie.
type DeviceTokenScheme struct {
	CookieName string
	Secure     bool
}

// NewDeviceTokenScheme builds a device-token scheme. An empty cookieName
// uses DefaultCookieName.
func NewDeviceTokenScheme(cookieName string, secure bool) *DeviceTokenScheme {
	if strings.TrimSpace(cookieName) == "" {
		cookieName = DefaultCookieName
	}
	return &DeviceTokenScheme{CookieName: cookieName, Secure: secure}
}

// Resolve reads the device token cookie. Returns "" when absent.
func (s *DeviceTokenScheme) Resolve(r *http.Request) string {
	c, err := r.Cookie(s.CookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

// Issue mints a fresh device token and the cookie the client must store.
func (s *DeviceTokenScheme) Issue(_ *http.Request) (string, *http.Cookie, error) {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("mint device token: %w", err)
	}
	token := hex.EncodeToString(buf)
	return token, s.Cookie(token), nil
}

// Cookie builds the device token cookie: http-only, same-site strict,
// 30-day expiry.
func (s *DeviceTokenScheme) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     s.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// RemoteAddrScheme recognizes callers by their apparent network address,
// trusting proxy headers before the direct connection address.
type RemoteAddrScheme struct{}

// Resolve returns the caller's address: first X-Forwarded-For hop, then
// X-Real-IP, then the connection's remote address without its port. Falls
// back to the UnknownAddress sentinel.
func (RemoteAddrScheme) Resolve(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			xff = xff[:idx]
		}
		if addr := strings.TrimSpace(xff); addr != "" {
			return addr
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		addr = addr[:idx]
	}
	if addr = strings.TrimSpace(addr); addr != "" {
		return addr
	}
	return UnknownAddress
}

// Issue returns the resolved address; the address scheme has nothing to
// persist on the client.
func (s RemoteAddrScheme) Issue(r *http.Request) (string, *http.Cookie, error) {
	return s.Resolve(r), nil, nil
}
