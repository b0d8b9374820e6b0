// Package bindings owns the registry mapping each shared password to the
// single device identity currently bound to it.
package bindings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sunnymovies/models"
)

var (
	// ErrAlreadyBound is returned when a credential already has an active
	// binding. The existence check and the insert happen inside one critical
	// section, so two racing logins cannot both bind the same credential.
	ErrAlreadyBound = errors.New("credential already bound to a device")

	// ErrCredentialRequired is returned for blank credentials.
	ErrCredentialRequired = errors.New("credential is required")

	// ErrIdentityRequired is returned for blank identity tokens.
	ErrIdentityRequired = errors.New("identity token is required")
)

// Service is the device binding registry. Bindings live in memory keyed by
// credential and are snapshotted to bindings.json so a restart does not
// unbind every password.
type Service struct {
	mu       sync.RWMutex
	path     string
	bindings map[string]models.DeviceBinding
}

// NewService creates a binding registry persisting under storageDir. An
// empty storageDir keeps bindings in memory only.
func NewService(storageDir string) (*Service, error) {
	svc := &Service{
		bindings: make(map[string]models.DeviceBinding),
	}

	if strings.TrimSpace(storageDir) != "" {
		if err := os.MkdirAll(storageDir, 0o755); err != nil {
			return nil, fmt.Errorf("create bindings dir: %w", err)
		}
		svc.path = filepath.Join(storageDir, "bindings.json")

		if err := svc.load(); err != nil {
			return nil, err
		}
	}

	return svc, nil
}

// Create binds credential to identityToken. The check for an existing active
// binding and the insert are a single atomic operation; a concurrent Create
// for the same credential loses with ErrAlreadyBound.
func (s *Service) Create(credential, identityToken string) (models.DeviceBinding, error) {
	if strings.TrimSpace(credential) == "" {
		return models.DeviceBinding{}, ErrCredentialRequired
	}
	if strings.TrimSpace(identityToken) == "" {
		return models.DeviceBinding{}, ErrIdentityRequired
	}

	now := time.Now().UTC()
	binding := models.DeviceBinding{
		ID:             uuid.NewString(),
		Credential:     credential,
		DeviceToken:    identityToken,
		Active:         true,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.bindings[credential]; ok && existing.Active {
		return models.DeviceBinding{}, ErrAlreadyBound
	}

	previous, hadPrevious := s.bindings[credential]
	s.bindings[credential] = binding
	if err := s.saveLocked(); err != nil {
		if hadPrevious {
			s.bindings[credential] = previous
		} else {
			delete(s.bindings, credential)
		}
		return models.DeviceBinding{}, err
	}

	return binding, nil
}

// FindActive returns the active binding for credential, if any.
func (s *Service) FindActive(credential string) (models.DeviceBinding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	binding, ok := s.bindings[credential]
	if !ok || !binding.Active {
		return models.DeviceBinding{}, false
	}
	return binding, true
}

// Touch bumps the binding's last-accessed timestamp. No-op when the record
// no longer exists. Timestamp updates are not flushed to disk on their own;
// they ride along with the next state-changing save.
func (s *Service) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for credential, binding := range s.bindings {
		if binding.ID == id {
			binding.LastAccessedAt = time.Now().UTC()
			s.bindings[credential] = binding
			return
		}
	}
}

// Validate reports whether credential has an active binding for
// identityToken, and touches the binding when it does. Unbound credentials
// and bound-to-another-device credentials are both a plain false; callers
// that need to tell those apart (the login conflict message) use FindActive.
func (s *Service) Validate(credential, identityToken string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	binding, ok := s.bindings[credential]
	if !ok || !binding.Matches(identityToken) {
		return false
	}

	binding.LastAccessedAt = time.Now().UTC()
	s.bindings[credential] = binding
	return true
}

// Deactivate flips the credential's binding inactive, freeing the credential
// for a fresh bind by any device. The record itself is retained.
func (s *Service) Deactivate(credential string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	binding, ok := s.bindings[credential]
	if !ok || !binding.Active {
		return false
	}

	binding.Active = false
	s.bindings[credential] = binding
	_ = s.saveLocked()
	return true
}

// Count returns the total number of binding records, active or not.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bindings)
}

// ActiveCount returns the number of active bindings.
func (s *Service) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, binding := range s.bindings {
		if binding.Active {
			count++
		}
	}
	return count
}

// load reads the bindings snapshot from disk.
func (s *Service) load() error {
	if s.path == "" {
		return nil
	}

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open bindings file: %w", err)
	}
	defer file.Close()

	var stored []models.DeviceBinding
	if err := json.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("decode bindings: %w", err)
	}

	s.bindings = make(map[string]models.DeviceBinding, len(stored))
	for _, binding := range stored {
		if strings.TrimSpace(binding.Credential) == "" {
			continue
		}
		// Active records win over stale inactive ones for the same credential.
		if existing, ok := s.bindings[binding.Credential]; ok && existing.Active {
			continue
		}
		s.bindings[binding.Credential] = binding
	}

	return nil
}

// saveLocked writes the bindings snapshot. Must be called with mu held.
func (s *Service) saveLocked() error {
	if s.path == "" {
		return nil
	}

	bindings := make([]models.DeviceBinding, 0, len(s.bindings))
	for _, binding := range s.bindings {
		bindings = append(bindings, binding)
	}

	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create bindings temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bindings); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode bindings: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync bindings: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close bindings temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace bindings file: %w", err)
	}

	return nil
}
