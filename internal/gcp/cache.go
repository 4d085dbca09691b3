package gcpinternal

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultCacheExpiration is the age after which a cached walker result is
// considered stale and refetched.
const DefaultCacheExpiration = 24 * time.Hour

// ConfigDirectory returns ~/.config/skywalker, creating it on first use.
func ConfigDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".config", "skywalker")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// CacheDirectory returns the walker result cache directory.
func CacheDirectory() (string, error) {
	configDir, err := ConfigDirectory()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(configDir, "cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	return dir, nil
}

// cacheEntry wraps a cached payload with its creation time so staleness is
// intrinsic to the entry, not the file's mtime.
type cacheEntry struct {
	CreatedAt time.Time       `json:"created_at"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
}

// CacheKeyFor derives the on-disk cache key from a function name and its
// arguments. Identical calls hash to identical keys.
func CacheKeyFor(function string, args ...string) string {
	h := sha1.New()
	io.WriteString(h, function)
	for _, arg := range args {
		io.WriteString(h, "\x00")
		io.WriteString(h, arg)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ReadCache loads a cached value into out. Returns false when the entry is
// missing, stale, or unreadable; corrupt entries are treated as misses.
func ReadCache(key string, maxAge time.Duration, out interface{}) bool {
	dir, err := CacheDirectory()
	if err != nil {
		return false
	}

	data, err := os.ReadFile(filepath.Join(dir, key+".json"))
	if err != nil {
		return false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return false
	}
	if time.Since(entry.CreatedAt) > maxAge {
		return false
	}

	return json.Unmarshal(entry.Payload, out) == nil
}

// WriteCache stores a value under key using an atomic write, so racing
// writers leave a whole file behind (last write wins).
func WriteCache(key string, value interface{}) error {
	dir, err := CacheDirectory()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}

	entry := cacheEntry{
		CreatedAt: time.Now(),
		Key:       key,
		Payload:   payload,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	return atomicWriteFile(filepath.Join(dir, key+".json"), data, 0o644)
}

// ClearCache removes every cached walker result.
func ClearCache() (int, error) {
	dir, err := CacheDirectory()
	if err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// atomicWriteFile writes data to a file atomically using a temp file and
// rename. This prevents corruption if the process is interrupted mid-write.
func atomicWriteFile(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempName := tempFile.Name()

	success := false
	defer func() {
		if !success {
			tempFile.Close()
			os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tempFile.Chmod(perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close: %w", err)
	}

	if err := os.Rename(tempName, filename); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
