package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeviceTokenScheme_ResolveReadsCookie(t *testing.T) {
	scheme := NewDeviceTokenScheme("", false)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/validate", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "abc123"})

	if got := scheme.Resolve(req); got != "abc123" {
		t.Fatalf("expected abc123, got %q", got)
	}
}

func TestDeviceTokenScheme_ResolveMissingCookie(t *testing.T) {
	scheme := NewDeviceTokenScheme("", false)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/validate", nil)

	if got := scheme.Resolve(req); got != "" {
		t.Fatalf("expected empty identity, got %q", got)
	}
}

func TestDeviceTokenScheme_ResolveCustomCookieName(t *testing.T) {
	scheme := NewDeviceTokenScheme("sunnyDevice", false)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sunnyDevice", Value: "tok"})

	if got := scheme.Resolve(req); got != "tok" {
		t.Fatalf("expected tok, got %q", got)
	}
}

func TestDeviceTokenScheme_IssueMintsTokenAndCookie(t *testing.T) {
	scheme := NewDeviceTokenScheme("", true)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)

	token, cookie, err := scheme.Issue(req)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if len(token) != tokenLength*2 {
		t.Fatalf("expected %d hex chars, got %d", tokenLength*2, len(token))
	}
	if cookie == nil {
		t.Fatal("expected a cookie to persist the token")
	}
	if cookie.Name != DefaultCookieName || cookie.Value != token {
		t.Fatalf("cookie does not carry the minted token: %+v", cookie)
	}
	if !cookie.HttpOnly {
		t.Error("device cookie must be http-only")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Error("device cookie must be same-site strict")
	}
	if !cookie.Secure {
		t.Error("expected secure cookie when scheme is configured secure")
	}
	if cookie.MaxAge != CookieMaxAge {
		t.Errorf("expected 30-day max age %d, got %d", CookieMaxAge, cookie.MaxAge)
	}
}

func TestDeviceTokenScheme_IssueTokensAreUnique(t *testing.T) {
	scheme := NewDeviceTokenScheme("", false)
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, _, err := scheme.Issue(req)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token minted: %s", token)
		}
		seen[token] = true
	}
}

func TestRemoteAddrScheme_ForwardedForFirstHop(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.RemoteAddr = "10.0.0.1:443"

	if got := (RemoteAddrScheme{}).Resolve(req); got != "203.0.113.7" {
		t.Fatalf("expected first forwarded hop, got %q", got)
	}
}

func TestRemoteAddrScheme_RealIPFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.4")
	req.RemoteAddr = "10.0.0.1:443"

	if got := (RemoteAddrScheme{}).Resolve(req); got != "198.51.100.4" {
		t.Fatalf("expected X-Real-IP, got %q", got)
	}
}

func TestRemoteAddrScheme_RemoteAddrStripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "192.168.1.50:61234"

	if got := (RemoteAddrScheme{}).Resolve(req); got != "192.168.1.50" {
		t.Fatalf("expected bare address, got %q", got)
	}
}

func TestRemoteAddrScheme_UnknownSentinel(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = ""

	if got := (RemoteAddrScheme{}).Resolve(req); got != UnknownAddress {
		t.Fatalf("expected %q sentinel, got %q", UnknownAddress, got)
	}
}

func TestRemoteAddrScheme_IssueReturnsResolvedAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "192.168.1.50:61234"

	token, cookie, err := (RemoteAddrScheme{}).Issue(req)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if token != "192.168.1.50" {
		t.Fatalf("expected resolved address, got %q", token)
	}
	if cookie != nil {
		t.Fatal("address scheme must not set cookies")
	}
}
