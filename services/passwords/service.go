package passwords

import (
	"bufio"
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// defaultCredentials is the built-in fallback set used when the configured
// credential file is missing or unreadable. Startup never fails on a bad
// credential file; it degrades to these.
var defaultCredentials = []string{"movie123", "sunnymovies"}

var errNoCredentialFile = errors.New("no credential file configured")

// Service holds the set of shared passwords that are currently accepted for
// login. The set is loaded from an external file and can be swapped at
// runtime via Reload.
type Service struct {
	fs   afero.Fs
	path string

	mu          sync.RWMutex
	credentials []string
}

// NewService loads the credential file at path from the given filesystem.
// An empty path, a missing file, or a parse failure all fall back to the
// built-in default set; a readable file with no credentials in it yields an
// empty set.
func NewService(fsys afero.Fs, path string) *Service {
	svc := &Service{
		fs:   fsys,
		path: strings.TrimSpace(path),
	}
	svc.Reload()
	return svc
}

// IsValid reports whether the given secret is a member of the current set.
// Comparison is constant-time per candidate. Safe to call concurrently with
// an in-flight Reload.
func (s *Service) IsValid(secret string) bool {
	if secret == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	valid := false
	for _, c := range s.credentials {
		if len(c) == len(secret) && subtle.ConstantTimeCompare([]byte(c), []byte(secret)) == 1 {
			valid = true
		}
	}
	return valid
}

// Reload re-reads the credential file and atomically replaces the in-memory
// set. Read or parse failures are logged and the built-in defaults are
// installed instead; the error is deliberately not propagated so a broken
// config file can never lock everyone out. A file that reads fine but
// contains no credentials is honored as-is: an operator emptying the file
// means every login gets rejected, not that the defaults come back.
//
// Reload does not touch existing device bindings: a credential removed from
// the file stops validating immediately, but its stale binding record is
// left in place (it blocks other devices, it never grants access by itself).
func (s *Service) Reload() {
	loaded, err := s.readFile()
	if err != nil {
		loaded = append([]string(nil), defaultCredentials...)
		if s.path != "" {
			log.Printf("[passwords] credential file %q unusable, falling back to %d built-in defaults: %v", s.path, len(loaded), err)
		}
	} else if len(loaded) == 0 {
		log.Printf("[passwords] credential file %q contains no credentials, all logins will be rejected", s.path)
	}

	s.mu.Lock()
	s.credentials = loaded
	s.mu.Unlock()

	log.Printf("[passwords] loaded %d credentials", len(loaded))
}

// Count returns the number of credentials in the current set.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.credentials)
}

// readFile loads and parses the credential file. A non-nil error means the
// source was unreadable or malformed; a nil error with an empty slice means
// the file parsed fine and simply holds no credentials.
func (s *Service) readFile() ([]string, error) {
	if s.path == "" {
		return nil, errNoCredentialFile
	}

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, err
	}

	return parseCredentials(data)
}

// parseCredentials accepts either a JSON string array or a plain text file
// with one credential per line. Blank lines and #-comments are ignored.
func parseCredentials(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("parse JSON credential list: %w", err)
		}
		return dedupe(list), nil
	}

	var list []string
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		list = append(list, line)
	}
	return dedupe(list), nil
}

// dedupe removes empty and duplicate entries while preserving order.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
