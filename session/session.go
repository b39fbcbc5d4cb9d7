package session

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Session holds the persisted access token and authenticated user id.
// It is the single owner of that state: Save on login, Restore at
// process start, Clear on logout. The on-disk file stands in for the
// browser's durable local storage.
type Session struct {
	path string

	mu     sync.Mutex
	token  string
	userID int64
}

type sessionFile struct {
	AccessToken string `json:"accessToken"`
	UserID      int64  `json:"userId"`
}

// New returns a session backed by the given file path. An empty path
// falls back to session.json under the user config directory.
func New(path string) *Session {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		path = filepath.Join(dir, "go-social", "session.json")
	}
	return &Session{path: path}
}

// Restore loads the persisted session, if any. ok reports whether a
// stored session was found.
func (s *Session) Restore() (token string, userID int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("session: read %s: %v", s.path, err)
		}
		return "", 0, false
	}
	var stored sessionFile
	if err := json.Unmarshal(data, &stored); err != nil {
		log.Printf("session: corrupt session file %s: %v", s.path, err)
		return "", 0, false
	}
	s.token = stored.AccessToken
	s.userID = stored.UserID
	return s.token, s.userID, s.token != ""
}

// Save persists the token and user id and makes them the active session.
func (s *Session) Save(token string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(sessionFile{AccessToken: token, UserID: userID})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return err
	}
	s.token = token
	s.userID = userID
	return nil
}

// Clear removes the persisted session and forgets the in-memory copy.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.userID = 0
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) UserID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}
