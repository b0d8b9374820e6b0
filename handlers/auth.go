package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"sunnymovies/services/auth"
	"sunnymovies/services/passwords"
)

// AuthHandler handles the authentication endpoints.
type AuthHandler struct {
	gateway   *auth.Service
	passwords *passwords.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(gateway *auth.Service, passwordsSvc *passwords.Service) *AuthHandler {
	return &AuthHandler{
		gateway:   gateway,
		passwords: passwordsSvc,
	}
}

// LoginRequest represents the login and validate request body.
type LoginRequest struct {
	Password string `json:"password"`
}

// AuthResponse represents the login and reload response body.
type AuthResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ValidateResponse represents the session check response body.
type ValidateResponse struct {
	Success       bool `json:"success"`
	Authenticated bool `json:"authenticated"`
}

// Login binds the supplied password to the calling device, or confirms an
// existing binding. Rejected logins are 401; malformed bodies are 400.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeLoginRequest(w, r)
	if !ok {
		return
	}

	result := h.gateway.Login(req.Password, r)
	if result.SetCookie != nil {
		http.SetCookie(w, result.SetCookie)
	}

	status := http.StatusOK
	if !result.OK {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, AuthResponse{Success: result.OK, Message: result.Message})
}

// Validate is the silent re-authentication check the frontend runs on every
// app load. An invalid or unknown session is authenticated:false, not an
// error.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeLoginRequest(w, r)
	if !ok {
		return
	}

	authenticated := h.gateway.CheckSession(req.Password, r)
	writeJSON(w, http.StatusOK, ValidateResponse{Success: true, Authenticated: authenticated})
}

// ReloadPasswords is the operator endpoint that re-reads the credential file.
func (h *AuthHandler) ReloadPasswords(w http.ResponseWriter, r *http.Request) {
	h.passwords.Reload()
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, Message: "Password configuration reloaded"})
}

// decodeLoginRequest parses the request body, answering 400 on failure.
func decodeLoginRequest(w http.ResponseWriter, r *http.Request) (LoginRequest, bool) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, AuthResponse{Success: false, Message: "Invalid request"})
		return LoginRequest{}, false
	}
	if strings.TrimSpace(req.Password) == "" {
		writeJSON(w, http.StatusBadRequest, AuthResponse{Success: false, Message: "Invalid request"})
		return LoginRequest{}, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
