// Package auth sequences password validation, identity resolution, and the
// binding registry into the two externally visible operations: login and
// session check.
package auth

import (
	"errors"
	"log"
	"net/http"

	"sunnymovies/services/bindings"
	"sunnymovies/services/identity"
	"sunnymovies/services/passwords"
)

// User-facing result messages. The conflict message intentionally says the
// password is taken rather than a generic failure so the legitimate holder
// understands what happened.
const (
	MsgInvalidCredential = "Invalid password"
	MsgRegistered        = "Device registered successfully"
	MsgLoginOK           = "Login successful"
	MsgConflict          = "This password is already in use on a different device"
	MsgIdentityFailure   = "Unable to establish a device identity"
)

// LoginResult is the tagged outcome of a login attempt. Nothing about a
// login is reported by panicking or by errors escaping this boundary.
type LoginResult struct {
	OK      bool
	Message string

	// SetCookie is non-nil when the client must persist a freshly minted
	// identity token (device-token scheme, first bind on this device).
	SetCookie *http.Cookie
}

// Service is the auth gateway.
type Service struct {
	passwords *passwords.Service
	registry  *bindings.Service
	scheme    identity.Scheme
}

// NewService builds the gateway over its three collaborators.
func NewService(passwordsSvc *passwords.Service, registry *bindings.Service, scheme identity.Scheme) *Service {
	return &Service{
		passwords: passwordsSvc,
		registry:  registry,
		scheme:    scheme,
	}
}

// Login runs the per-credential state machine:
//
//	unknown credential        -> reject
//	unbound                   -> bind to this caller, succeed
//	bound to this caller      -> touch, succeed
//	bound to another caller   -> reject, no state change
func (s *Service) Login(credential string, r *http.Request) LoginResult {
	if !s.passwords.IsValid(credential) {
		return LoginResult{OK: false, Message: MsgInvalidCredential}
	}

	identityToken := s.scheme.Resolve(r)

	if existing, ok := s.registry.FindActive(credential); ok {
		if existing.Matches(identityToken) {
			s.registry.Touch(existing.ID)
			return LoginResult{OK: true, Message: MsgLoginOK}
		}
		return LoginResult{OK: false, Message: MsgConflict}
	}

	// Unbound: establish an identity if the caller has none yet. An existing
	// device token is reused so bindings for other passwords on the same
	// device stay intact.
	var setCookie *http.Cookie
	if identityToken == "" {
		minted, cookie, err := s.scheme.Issue(r)
		if err != nil {
			log.Printf("[auth] issue identity: %v", err)
			return LoginResult{OK: false, Message: MsgIdentityFailure}
		}
		identityToken = minted
		setCookie = cookie
	}

	if _, err := s.registry.Create(credential, identityToken); err != nil {
		if errors.Is(err, bindings.ErrAlreadyBound) {
			// Lost a race with a concurrent login from another device.
			return LoginResult{OK: false, Message: MsgConflict}
		}
		log.Printf("[auth] create binding: %v", err)
		return LoginResult{OK: false, Message: MsgIdentityFailure}
	}

	return LoginResult{OK: true, Message: MsgRegistered, SetCookie: setCookie}
}

// CheckSession reports whether the request's identity holds an active
// binding for credential. It revalidates credential membership first, so a
// credential revoked by a reload stops working immediately, and it never
// creates bindings.
func (s *Service) CheckSession(credential string, r *http.Request) bool {
	if !s.passwords.IsValid(credential) {
		return false
	}

	identityToken := s.scheme.Resolve(r)
	if identityToken == "" {
		return false
	}

	return s.registry.Validate(credential, identityToken)
}
