package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveSessionState writes an opaque session blob to path, overwriting any
// previous state. Intermediate directories are created automatically.
func SaveSessionState(path string, blob []byte) error {
	if !json.Valid(blob) {
		return fmt.Errorf("session: blob is not valid JSON")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("session: create storage dir: %w", err)
	}
	if err := os.WriteFile(path, blob, 0600); err != nil {
		return fmt.Errorf("session: write %q: %w", path, err)
	}
	return nil
}

// LoadSessionState reads a previously saved session blob. A missing or
// unreadable file is not an error: it just means there is no session to
// reuse, and the second return value is false.
func LoadSessionState(path string) ([]byte, bool) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	if !json.Valid(blob) {
		return nil, false
	}
	return blob, true
}
