package catalog

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// fileCache is the lookaside cache for TMDB responses: one JSON file per
// key, freshness judged by file mtime.
type fileCache struct {
	dir string
	ttl time.Duration
}

func newFileCache(dir string, ttlHours int) *fileCache {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	return &fileCache{dir: dir, ttl: time.Duration(ttlHours) * time.Hour}
}

// jitteredTTL staggers expiry between the base TTL and base TTL + 6 hours.
// The jitter is derived from the key hash so the same key always gets the
// same TTL, preventing whole-cache churn at one instant.
func (c *fileCache) jitteredTTL(key string) time.Duration {
	h := sha256.Sum256([]byte(key))
	n := binary.BigEndian.Uint64(h[:8])
	return c.ttl + time.Duration(n%uint64(6*time.Hour))
}

func (c *fileCache) get(key string, v any) bool {
	if key == "" || c.dir == "" {
		return false
	}
	path := filepath.Join(c.dir, key+".json")
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	if time.Since(fi.ModTime()) > c.jitteredTTL(key) {
		_ = os.Remove(path)
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return false
	}
	return true
}

func (c *fileCache) set(key string, v any) error {
	if key == "" {
		return errors.New("empty cache key")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(c.dir, key+".json")
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// clear removes every cached response. Used when the API key changes.
func (c *fileCache) clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		_ = os.Remove(filepath.Join(c.dir, entry.Name()))
	}
	return nil
}
