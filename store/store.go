// Package store holds the client-side state of the social network: a
// slice per domain (users, posts, groups, friends), each owning its own
// subtree and the operations that mutate it. Operations call the REST
// backend off-lock and merge responses under the slice lock in
// response-arrival order, so overlapping operations on the same entity
// resolve last-response-wins.
package store

import (
	"slices"
	"sync"
	"time"

	"go-social/client"
	"go-social/models"
	"go-social/session"
)

type Store struct {
	Users   *UsersSlice
	Posts   *PostsSlice
	Groups  *GroupsSlice
	Friends *FriendsSlice
}

func New(api *client.Client, sess *session.Session) *Store {
	return &Store{
		Users:   &UsersSlice{api: api, sess: sess},
		Posts:   &PostsSlice{api: api},
		Groups:  &GroupsSlice{api: api},
		Friends: &FriendsSlice{api: api},
	}
}

// sliceState is the pending/fulfilled/rejected bookkeeping every slice
// carries. The mutex also guards the embedding slice's own fields.
type sliceState struct {
	mu        sync.Mutex
	loading   bool
	lastError error
}

func (s *sliceState) begin() {
	s.mu.Lock()
	s.loading = true
	s.lastError = nil
	s.mu.Unlock()
}

func (s *sliceState) fail(err error) {
	s.mu.Lock()
	s.loading = false
	s.lastError = err
	s.mu.Unlock()
}

func (s *sliceState) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *sliceState) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// ClearError resets the rejected state without touching data.
func (s *sliceState) ClearError() {
	s.mu.Lock()
	s.lastError = nil
	s.mu.Unlock()
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// Snapshots handed to callers must not alias internal state, so every
// getter clones through one of these.

func cloneUser(u models.User) models.User {
	u.Friends = slices.Clone(u.Friends)
	u.Notify = slices.Clone(u.Notify)
	return u
}

func cloneUsers(users []models.User) []models.User {
	out := make([]models.User, len(users))
	for i, u := range users {
		out[i] = cloneUser(u)
	}
	return out
}

func clonePost(p models.Post) models.Post {
	p.Image = slices.Clone(p.Image)
	p.Reactions = slices.Clone(p.Reactions)
	p.Comments = slices.Clone(p.Comments)
	return p
}

func clonePosts(posts []models.Post) []models.Post {
	out := make([]models.Post, len(posts))
	for i, p := range posts {
		out[i] = clonePost(p)
	}
	return out
}

func cloneGroup(g models.Group) models.Group {
	g.Members = slices.Clone(g.Members)
	posts := make([]models.GroupPost, len(g.PostGroup))
	for i, p := range g.PostGroup {
		p.Img = slices.Clone(p.Img)
		p.Likes = slices.Clone(p.Likes)
		p.Comments = slices.Clone(p.Comments)
		posts[i] = p
	}
	g.PostGroup = posts
	return g
}

func cloneGroups(groups []models.Group) []models.Group {
	out := make([]models.Group, len(groups))
	for i, g := range groups {
		out[i] = cloneGroup(g)
	}
	return out
}
