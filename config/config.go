// Package config owns the runtime settings file and its defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Identity scheme names accepted in settings.
const (
	SchemeDevice  = "device"
	SchemeAddress = "address"
)

// Settings is everything tunable about the server.
type Settings struct {
	Port            int    `json:"port"`
	TMDBAPIKey      string `json:"tmdbApiKey"`
	Language        string `json:"language"`
	CacheTTLHours   int    `json:"cacheTtlHours"`
	PasswordsPath   string `json:"passwordsPath"`
	IdentityScheme  string `json:"identityScheme"`
	CookieName      string `json:"cookieName"`
	SecureCookies   bool   `json:"secureCookies"`
	LoginRatePerMin int    `json:"loginRatePerMin"`
	LoginBurst      int    `json:"loginBurst"`
}

// Manager loads settings.json from the data directory, fills in defaults,
// and applies environment overrides. Reads take a snapshot; writes go
// through Update and are persisted atomically.
type Manager struct {
	mu       sync.RWMutex
	path     string
	settings Settings
}

// NewManager creates a manager storing settings.json under dataDir.
func NewManager(dataDir string) (*Manager, error) {
	if strings.TrimSpace(dataDir) == "" {
		return nil, errors.New("data directory not provided")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	m := &Manager{
		path:     filepath.Join(dataDir, "settings.json"),
		settings: defaultSettings(dataDir),
	}

	if err := m.load(); err != nil {
		return nil, err
	}
	m.applyEnv()

	return m, nil
}

func defaultSettings(dataDir string) Settings {
	return Settings{
		Port:            8080,
		Language:        "en-US",
		CacheTTLHours:   6,
		PasswordsPath:   filepath.Join(dataDir, "passwords.txt"),
		IdentityScheme:  SchemeDevice,
		CookieName:      "deviceToken",
		SecureCookies:   false,
		LoginRatePerMin: 10,
		LoginBurst:      5,
	}
}

// Get returns a snapshot of the current settings.
func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Update applies a mutation and persists the result.
func (m *Manager) Update(apply func(*Settings)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := m.settings
	apply(&updated)
	if err := validate(updated); err != nil {
		return err
	}

	m.settings = updated
	return m.saveLocked()
}

func validate(s Settings) error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	if s.IdentityScheme != SchemeDevice && s.IdentityScheme != SchemeAddress {
		return fmt.Errorf("unknown identity scheme %q", s.IdentityScheme)
	}
	return nil
}

// load merges settings.json over the defaults. A missing file is fine.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	if err := json.Unmarshal(data, &m.settings); err != nil {
		return fmt.Errorf("parse settings: %w", err)
	}
	return validate(m.settings)
}

// applyEnv lets the environment override the file for container deployments.
func (m *Manager) applyEnv() {
	if v := os.Getenv("TMDB_API_KEY"); v != "" {
		m.settings.TMDBAPIKey = v
	}
	if v := os.Getenv("PASSWORDS_FILE"); v != "" {
		m.settings.PasswordsPath = v
	}
	if v := os.Getenv("IDENTITY_SCHEME"); v != "" {
		m.settings.IdentityScheme = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			m.settings.Port = port
		}
	}
}

// saveLocked writes settings.json atomically. Must be called with mu held.
func (m *Manager) saveLocked() error {
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create settings temp file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.settings); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close settings temp file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
