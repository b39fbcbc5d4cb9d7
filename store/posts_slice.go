package store

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"go-social/client"
	"go-social/models"
	"go-social/utils/errors"
)

// PostsSlice owns the global feed, the viewed user's posts, and the
// denormalized author-info cache. Private posts are NOT filtered here:
// visibility is a view-layer concern and this state mirrors whatever
// the backend returns.
type PostsSlice struct {
	sliceState
	api *client.Client

	posts     []models.Post
	userPosts []models.Post
	accounts  []models.UserInfo
}

// FetchFeed loads the whole post collection in backend order.
func (s *PostsSlice) FetchFeed(ctx context.Context) ([]models.Post, error) {
	s.begin()
	var posts []models.Post
	if err := s.api.Get(ctx, "posts", &posts); err != nil {
		s.fail(err)
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.posts = clonePosts(posts)
	return clonePosts(posts), nil
}

// FetchPostsOf loads the posts authored by one user.
func (s *PostsSlice) FetchPostsOf(ctx context.Context, userID int64) ([]models.Post, error) {
	s.begin()
	var posts []models.Post
	if err := s.api.Get(ctx, fmt.Sprintf("users/%d/posts", userID), &posts); err != nil {
		s.fail(err)
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.userPosts = clonePosts(posts)
	return clonePosts(posts), nil
}

// CreatePost sends a new post and prepends the server's copy (which
// carries the assigned id) to both the feed and the user list, keeping
// newest-first ordering client-side.
func (s *PostsSlice) CreatePost(ctx context.Context, authorID int64, content string, images []string, privacy string) (models.Post, error) {
	s.begin()
	post := models.Post{
		UserID:    authorID,
		Content:   content,
		Image:     images,
		Privacy:   privacy,
		Date:      nowISO(),
		Reactions: []string{},
		Comments:  []models.Comment{},
	}
	var created models.Post
	if err := s.api.Post(ctx, "posts", post, &created); err != nil {
		s.fail(err)
		return models.Post{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.posts = append([]models.Post{clonePost(created)}, s.posts...)
	s.userPosts = append([]models.Post{clonePost(created)}, s.userPosts...)
	return clonePost(created), nil
}

// UpdatePost merges partial fields into a post and replaces it wherever
// it appears in client state.
func (s *PostsSlice) UpdatePost(ctx context.Context, postID int64, fields map[string]any) (models.Post, error) {
	s.begin()
	var updated models.Post
	if err := s.api.Patch(ctx, fmt.Sprintf("posts/%d", postID), fields, &updated); err != nil {
		s.fail(err)
		return models.Post{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	replacePost(s.posts, updated)
	replacePost(s.userPosts, updated)
	return clonePost(updated), nil
}

// DeletePost removes a post from the backend and from both lists.
func (s *PostsSlice) DeletePost(ctx context.Context, postID int64) error {
	s.begin()
	if err := s.api.Delete(ctx, fmt.Sprintf("posts/%d", postID)); err != nil {
		s.fail(err)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.posts = slices.DeleteFunc(s.posts, func(p models.Post) bool { return p.ID == postID })
	s.userPosts = slices.DeleteFunc(s.userPosts, func(p models.Post) bool { return p.ID == postID })
	return nil
}

// ToggleReaction adds or removes the user's reaction based on the
// client-held copy of the post. The membership check runs against local
// state, so it can disagree with the server under concurrent edits;
// last write wins.
func (s *PostsSlice) ToggleReaction(ctx context.Context, postID, userID int64) error {
	reactor := strconv.FormatInt(userID, 10)

	s.mu.Lock()
	post, ok := findPost(s.posts, postID)
	if !ok {
		post, ok = findPost(s.userPosts, postID)
	}
	if !ok {
		s.mu.Unlock()
		s.fail(errors.ErrNotFound)
		return errors.ErrNotFound
	}
	present := slices.Contains(post.Reactions, reactor)
	s.mu.Unlock()

	s.begin()
	if present {
		if err := s.api.Delete(ctx, fmt.Sprintf("posts/%d/reactions/%d", postID, userID)); err != nil {
			s.fail(err)
			return err
		}
	} else {
		if err := s.api.Post(ctx, fmt.Sprintf("posts/%d/reactions", postID), map[string]int64{"userId": userID}, nil); err != nil {
			s.fail(err)
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if present {
		removeReaction(s.posts, postID, reactor)
		removeReaction(s.userPosts, postID, reactor)
	} else {
		addReaction(s.posts, postID, reactor)
		addReaction(s.userPosts, postID, reactor)
	}
	return nil
}

// AddComment appends a comment to the post wherever it currently
// appears in client state. Comments are append-only.
func (s *PostsSlice) AddComment(ctx context.Context, postID, userID int64, content string) (models.Comment, error) {
	s.begin()
	comment := models.Comment{UserID: userID, Content: content, Date: nowISO()}
	var created models.Comment
	if err := s.api.Post(ctx, fmt.Sprintf("posts/%d/comments", postID), comment, &created); err != nil {
		s.fail(err)
		return models.Comment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	appendComment(s.posts, postID, created)
	appendComment(s.userPosts, postID, created)
	return created, nil
}

// LoadUserInfoCache bulk-loads every non-admin account and keeps the
// {id, name, avatar} projection for rendering post authorship.
func (s *PostsSlice) LoadUserInfoCache(ctx context.Context) ([]models.UserInfo, error) {
	s.begin()
	var users []models.User
	if err := s.api.Get(ctx, "users?role_like=user", &users); err != nil {
		s.fail(err)
		return nil, err
	}
	accounts := make([]models.UserInfo, len(users))
	for i, u := range users {
		accounts[i] = models.UserInfo{ID: u.ID, Name: u.Username, Avatar: u.Avatar}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.accounts = slices.Clone(accounts)
	return accounts, nil
}

func (s *PostsSlice) Feed() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePosts(s.posts)
}

func (s *PostsSlice) UserPosts() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePosts(s.userPosts)
}

func (s *PostsSlice) UserInfoCache() []models.UserInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.accounts)
}

func findPost(posts []models.Post, postID int64) (models.Post, bool) {
	for _, p := range posts {
		if p.ID == postID {
			return p, true
		}
	}
	return models.Post{}, false
}

func replacePost(posts []models.Post, updated models.Post) {
	for i := range posts {
		if posts[i].ID == updated.ID {
			posts[i] = clonePost(updated)
			return
		}
	}
}

func addReaction(posts []models.Post, postID int64, reactor string) {
	for i := range posts {
		if posts[i].ID == postID && !slices.Contains(posts[i].Reactions, reactor) {
			posts[i].Reactions = append(posts[i].Reactions, reactor)
		}
	}
}

func removeReaction(posts []models.Post, postID int64, reactor string) {
	for i := range posts {
		if posts[i].ID == postID {
			posts[i].Reactions = slices.DeleteFunc(posts[i].Reactions, func(r string) bool { return r == reactor })
		}
	}
}

func appendComment(posts []models.Post, postID int64, comment models.Comment) {
	for i := range posts {
		if posts[i].ID == postID {
			posts[i].Comments = append(posts[i].Comments, comment)
		}
	}
}
