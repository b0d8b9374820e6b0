package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"sunnymovies/handlers"
	"sunnymovies/services/auth"
	"sunnymovies/services/bindings"
	"sunnymovies/services/identity"
	"sunnymovies/services/passwords"
)

// setupAuthHandler builds the full auth stack (device-token scheme) over an
// in-memory credential file containing "movie123".
func setupAuthHandler(t *testing.T) (*handlers.AuthHandler, afero.Fs, *passwords.Service) {
	t.Helper()

	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/passwords.txt", []byte("movie123\n"), 0o644); err != nil {
		t.Fatalf("write passwords: %v", err)
	}
	passwordsSvc := passwords.NewService(fsys, "/passwords.txt")

	registry, err := bindings.NewService(t.TempDir())
	if err != nil {
		t.Fatalf("create registry: %v", err)
	}

	gateway := auth.NewService(passwordsSvc, registry, identity.NewDeviceTokenScheme("", false))
	return handlers.NewAuthHandler(gateway, passwordsSvc), fsys, passwordsSvc
}

func postJSON(t *testing.T, path, body string, cookies ...*http.Cookie) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func deviceCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == identity.DefaultCookieName {
			return c
		}
	}
	return nil
}

func TestLogin_RegistersNewDevice(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)

	rec := httptest.NewRecorder()
	handler.Login(rec, postJSON(t, "/api/auth/login", `{"password":"movie123"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp handlers.AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Message != auth.MsgRegistered {
		t.Fatalf("unexpected response: %+v", resp)
	}

	cookie := deviceCookie(rec)
	if cookie == nil {
		t.Fatal("expected device token cookie")
	}
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("cookie not hardened: %+v", cookie)
	}
	if cookie.MaxAge != identity.CookieMaxAge {
		t.Errorf("expected 30-day cookie, got max-age %d", cookie.MaxAge)
	}
}

func TestLogin_SameDeviceAgainSucceeds(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)

	rec := httptest.NewRecorder()
	handler.Login(rec, postJSON(t, "/api/auth/login", `{"password":"movie123"}`))
	cookie := deviceCookie(rec)
	if cookie == nil {
		t.Fatal("expected device token cookie")
	}

	rec2 := httptest.NewRecorder()
	handler.Login(rec2, postJSON(t, "/api/auth/login", `{"password":"movie123"}`, cookie))

	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec2.Code)
	}
	var resp handlers.AuthResponse
	if err := json.Unmarshal(rec2.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message != auth.MsgLoginOK {
		t.Fatalf("expected %q, got %q", auth.MsgLoginOK, resp.Message)
	}
	if deviceCookie(rec2) != nil {
		t.Error("re-login must not reissue the cookie")
	}
}

func TestLogin_OtherDeviceRejected(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)

	rec := httptest.NewRecorder()
	handler.Login(rec, postJSON(t, "/api/auth/login", `{"password":"movie123"}`))

	// No cookie: a different browser.
	rec2 := httptest.NewRecorder()
	handler.Login(rec2, postJSON(t, "/api/auth/login", `{"password":"movie123"}`))

	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec2.Code)
	}
	var resp handlers.AuthResponse
	if err := json.Unmarshal(rec2.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success || resp.Message != auth.MsgConflict {
		t.Fatalf("expected conflict message, got %+v", resp)
	}
}

func TestLogin_InvalidPassword(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)

	rec := httptest.NewRecorder()
	handler.Login(rec, postJSON(t, "/api/auth/login", `{"password":"wrong"}`))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), auth.MsgInvalidCredential) {
		t.Fatalf("expected invalid password message, got %s", rec.Body.String())
	}
	if deviceCookie(rec) != nil {
		t.Error("failed login must not set a cookie")
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)

	for _, body := range []string{`{broken`, `{}`, `{"password":"  "}`} {
		rec := httptest.NewRecorder()
		handler.Login(rec, postJSON(t, "/api/auth/login", body))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestValidate_Flows(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)

	// Bind the device first.
	rec := httptest.NewRecorder()
	handler.Login(rec, postJSON(t, "/api/auth/login", `{"password":"movie123"}`))
	cookie := deviceCookie(rec)

	check := func(body string, cookies ...*http.Cookie) handlers.ValidateResponse {
		t.Helper()
		rec := httptest.NewRecorder()
		handler.Validate(rec, postJSON(t, "/api/auth/validate", body, cookies...))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp handlers.ValidateResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return resp
	}

	if resp := check(`{"password":"movie123"}`, cookie); !resp.Authenticated {
		t.Error("bound device should validate")
	}
	if resp := check(`{"password":"movie123"}`); resp.Authenticated {
		t.Error("missing cookie must not validate")
	}
	if resp := check(`{"password":"movie123"}`, &http.Cookie{Name: identity.DefaultCookieName, Value: "other"}); resp.Authenticated {
		t.Error("foreign device must not validate")
	}
	if resp := check(`{"password":"wrong"}`, cookie); resp.Authenticated {
		t.Error("invalid password must not validate")
	}
}

func TestValidate_MalformedBody(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)

	rec := httptest.NewRecorder()
	handler.Validate(rec, postJSON(t, "/api/auth/validate", `{broken`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestReloadPasswords_PicksUpNewFile(t *testing.T) {
	handler, fsys, passwordsSvc := setupAuthHandler(t)

	if err := afero.WriteFile(fsys, "/passwords.txt", []byte("fresh456\n"), 0o644); err != nil {
		t.Fatalf("rewrite passwords: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ReloadPasswords(rec, postJSON(t, "/api/auth/reload-passwords", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp handlers.AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}

	if passwordsSvc.IsValid("movie123") {
		t.Error("old credential should be gone after reload")
	}
	if !passwordsSvc.IsValid("fresh456") {
		t.Error("new credential should validate after reload")
	}
}
