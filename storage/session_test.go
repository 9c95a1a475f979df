package storage

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestSessionStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage_state.json")
	blob := []byte(`[{"name":"session","value":"abc123","domain":"portal.example"}]`)

	if err := SaveSessionState(path, blob); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, ok := LoadSessionState(path)
	if !ok {
		t.Fatal("load: expected blob to be present")
	}
	if !bytes.Equal(loaded, blob) {
		t.Errorf("loaded blob differs: %s", loaded)
	}
}

func TestSessionStateOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage_state.json")

	if err := SaveSessionState(path, []byte(`{"old":true}`)); err != nil {
		t.Fatal(err)
	}
	if err := SaveSessionState(path, []byte(`{"new":true}`)); err != nil {
		t.Fatal(err)
	}

	loaded, ok := LoadSessionState(path)
	if !ok {
		t.Fatal("load: expected blob to be present")
	}
	if string(loaded) != `{"new":true}` {
		t.Errorf("expected overwrite, got %s", loaded)
	}
}

func TestSessionStateMissingFile(t *testing.T) {
	if _, ok := LoadSessionState(filepath.Join(t.TempDir(), "absent.json")); ok {
		t.Error("missing file must report no session")
	}
}

func TestSessionStateRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage_state.json")

	if err := SaveSessionState(path, []byte("not json")); err == nil {
		t.Error("expected save of invalid JSON to fail")
	}
	if _, ok := LoadSessionState(path); ok {
		t.Error("unwritten file must report no session")
	}
}
