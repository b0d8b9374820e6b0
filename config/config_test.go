package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewManager_Defaults(t *testing.T) {
	dir := t.TempDir()

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	s := m.Get()
	if s.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", s.Port)
	}
	if s.IdentityScheme != SchemeDevice {
		t.Errorf("expected device scheme default, got %q", s.IdentityScheme)
	}
	if s.PasswordsPath != filepath.Join(dir, "passwords.txt") {
		t.Errorf("unexpected passwords path %q", s.PasswordsPath)
	}
}

func TestNewManager_LoadsFile(t *testing.T) {
	dir := t.TempDir()
	content := `{"port": 9090, "identityScheme": "address", "tmdbApiKey": "k"}`
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	s := m.Get()
	if s.Port != 9090 || s.IdentityScheme != SchemeAddress || s.TMDBAPIKey != "k" {
		t.Fatalf("file values not applied: %+v", s)
	}
	// Unset fields keep their defaults.
	if s.CacheTTLHours != 6 {
		t.Errorf("expected default TTL, got %d", s.CacheTTLHours)
	}
}

func TestNewManager_RejectsBadScheme(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte(`{"identityScheme": "carrier-pigeon"}`), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	if _, err := NewManager(dir); err == nil {
		t.Fatal("expected error for unknown identity scheme")
	}
}

func TestNewManager_EnvOverrides(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "env-key")
	t.Setenv("PORT", "7000")
	t.Setenv("IDENTITY_SCHEME", SchemeAddress)

	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	s := m.Get()
	if s.TMDBAPIKey != "env-key" || s.Port != 7000 || s.IdentityScheme != SchemeAddress {
		t.Fatalf("env overrides not applied: %+v", s)
	}
}

func TestUpdate_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := m.Update(func(s *Settings) { s.TMDBAPIKey = "rotated" }); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reloaded, err := NewManager(dir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Get().TMDBAPIKey != "rotated" {
		t.Fatal("updated settings did not survive restart")
	}
}

func TestUpdate_RejectsInvalidPort(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	if err := m.Update(func(s *Settings) { s.Port = -1 }); err == nil {
		t.Fatal("expected error for invalid port")
	}
	if m.Get().Port != 8080 {
		t.Error("failed update must not change settings")
	}
}
