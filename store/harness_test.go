package store

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go-social/client"
	"go-social/devserver"
	"go-social/models"
	"go-social/session"
)

// testEnv runs the full stack for a test: the dev backend over a temp
// sqlite file, an httptest server in front of it, and a store wired to
// both.
type testEnv struct {
	store *Store
	sess  *session.Session
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	db, err := devserver.OpenDB(filepath.Join(dir, "social.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	server := httptest.NewServer(devserver.NewServer(db, "test-secret", filepath.Join(dir, "uploads")))
	t.Cleanup(server.Close)

	sess := session.New(filepath.Join(dir, "session.json"))
	api := client.New(server.URL, sess.Token)
	return &testEnv{store: New(api, sess), sess: sess}
}

func (env *testEnv) createUser(t *testing.T, username string) models.User {
	t.Helper()
	user, err := env.store.Users.CreateUser(context.Background(), models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret",
		Phone:    "555-0100",
		Role:     "user",
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// fetchUser reads a user record fresh from the backend through the
// profile path.
func (env *testEnv) fetchUser(t *testing.T, userID int64) models.User {
	t.Helper()
	user, err := env.store.Users.FetchProfile(context.Background(), userID)
	if err != nil {
		t.Fatalf("fetch user %d: %v", userID, err)
	}
	return user
}

// relationWith returns the friend relation held for the counterpart,
// if any.
func relationWith(user models.User, counterpartID int64) (models.FriendRelation, bool) {
	for _, relation := range user.Friends {
		if relation.UserID == counterpartID {
			return relation, true
		}
	}
	return models.FriendRelation{}, false
}
