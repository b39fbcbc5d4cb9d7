package store

import (
	"context"

	"go-social/client"
	"go-social/models"
)

// FriendsSlice owns the roster of non-admin accounts backing the
// friend-suggestion search.
type FriendsSlice struct {
	sliceState
	api *client.Client

	friendsList []models.User
}

// FetchAll loads every non-admin account into the roster.
func (s *FriendsSlice) FetchAll(ctx context.Context) ([]models.User, error) {
	s.begin()
	var users []models.User
	if err := s.api.Get(ctx, "users?role_like=user", &users); err != nil {
		s.fail(err)
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.friendsList = cloneUsers(users)
	return cloneUsers(users), nil
}

func (s *FriendsSlice) Roster() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUsers(s.friendsList)
}
