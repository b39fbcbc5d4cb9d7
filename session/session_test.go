package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveRestoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := New(path)

	if _, _, ok := s.Restore(); ok {
		t.Fatalf("restored a session that was never saved")
	}

	if err := s.Save("token-abc", 7); err != nil {
		t.Fatalf("save: %v", err)
	}
	if s.Token() != "token-abc" || s.UserID() != 7 {
		t.Errorf("in-memory session not set after save")
	}

	// A second session over the same file sees the persisted state.
	restored := New(path)
	token, userID, ok := restored.Restore()
	if !ok || token != "token-abc" || userID != 7 {
		t.Errorf("restore: token=%q userID=%d ok=%v", token, userID, ok)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if s.Token() != "" || s.UserID() != 0 {
		t.Errorf("in-memory session survives clear")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("session file survives clear")
	}
	if err := s.Clear(); err != nil {
		t.Errorf("second clear: %v", err)
	}
}

func TestRestoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, ok := New(path).Restore(); ok {
		t.Errorf("restored a corrupt session file")
	}
}
