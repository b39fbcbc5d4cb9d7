package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go-social/client"
	"go-social/models"
	"go-social/utils/errors"
)

// GroupsSlice owns the group list and the currently-opened group with
// its nested members and posts. Every nested mutation is a
// read-modify-write of the whole array field: compute the new members
// or postGroup value locally, PATCH it back, then merge the returned
// group into both the list and currentGroup when ids match.
type GroupsSlice struct {
	sliceState
	api *client.Client

	groups       []models.Group
	currentGroup *models.Group
}

// ListGroups loads the full group collection.
func (s *GroupsSlice) ListGroups(ctx context.Context) ([]models.Group, error) {
	s.begin()
	var groups []models.Group
	if err := s.api.Get(ctx, "groups", &groups); err != nil {
		s.fail(err)
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.groups = cloneGroups(groups)
	return cloneGroups(groups), nil
}

// GetGroup loads one group, nested members and posts included, into the
// currently-opened slot.
func (s *GroupsSlice) GetGroup(ctx context.Context, groupID int64) (models.Group, error) {
	s.begin()
	var group models.Group
	if err := s.api.Get(ctx, fmt.Sprintf("groups/%d", groupID), &group); err != nil {
		s.fail(err)
		return models.Group{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	current := cloneGroup(group)
	s.currentGroup = &current
	return cloneGroup(group), nil
}

// CreateGroup creates an active, unlocked group whose only member is
// the creator, marked admin.
func (s *GroupsSlice) CreateGroup(ctx context.Context, name string, creatorID int64) (models.Group, error) {
	s.begin()
	now := nowISO()
	group := models.Group{
		GroupName: name,
		DateAt:    now,
		Avatar:    "",
		Status:    true,
		IsLocked:  false,
		Members: []models.GroupMember{
			{UserID: creatorID, Role: true, DateJoin: now},
		},
		PostGroup: []models.GroupPost{},
	}
	var created models.Group
	if err := s.api.Post(ctx, "groups", group, &created); err != nil {
		s.fail(err)
		return models.Group{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.groups = append(s.groups, cloneGroup(created))
	return cloneGroup(created), nil
}

// UpdateGroupInfo merges partial fields into a group record.
func (s *GroupsSlice) UpdateGroupInfo(ctx context.Context, groupID int64, fields map[string]any) (models.Group, error) {
	s.begin()
	var updated models.Group
	if err := s.api.Patch(ctx, fmt.Sprintf("groups/%d", groupID), fields, &updated); err != nil {
		s.fail(err)
		return models.Group{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.mergeGroupLocked(updated)
	return cloneGroup(updated), nil
}

// JoinGroup appends a non-admin member entry and writes the whole
// member array back. Lock enforcement lives with the caller: a locked
// group's member write still goes through here.
func (s *GroupsSlice) JoinGroup(ctx context.Context, groupID, userID int64) error {
	s.begin()
	group, err := s.localGroup(groupID)
	if err != nil {
		s.fail(err)
		return err
	}
	for _, member := range group.Members {
		if member.UserID == userID {
			// Already a member; the member list keys uniquely by user.
			s.mu.Lock()
			s.loading = false
			s.mu.Unlock()
			return nil
		}
	}

	members := append(slices.Clone(group.Members), models.GroupMember{
		UserID:   userID,
		Role:     false,
		DateJoin: nowISO(),
	})
	return s.patchGroup(ctx, groupID, map[string]any{"members": members})
}

// LeaveGroup removes the member entry and writes the whole member array
// back.
func (s *GroupsSlice) LeaveGroup(ctx context.Context, groupID, userID int64) error {
	s.begin()
	group, err := s.localGroup(groupID)
	if err != nil {
		s.fail(err)
		return err
	}

	members := slices.DeleteFunc(slices.Clone(group.Members), func(m models.GroupMember) bool {
		return m.UserID == userID
	})
	return s.patchGroup(ctx, groupID, map[string]any{"members": members})
}

// CreateGroupPost appends a post to the group's post list and writes
// the whole list back. The id is generated client-side from the clock
// before the roundtrip, so a rapid double-submit within the same
// millisecond would collide; fixing that needs server-assigned ids.
func (s *GroupsSlice) CreateGroupPost(ctx context.Context, groupID, authorID int64, content string, images []string) (models.GroupPost, error) {
	s.begin()
	group, err := s.localGroup(groupID)
	if err != nil {
		s.fail(err)
		return models.GroupPost{}, err
	}

	post := models.GroupPost{
		IDPostGroup: time.Now().UnixMilli(),
		UserID:      authorID,
		Content:     content,
		Img:         images,
		Dateat:      nowISO(),
	}
	posts := append(slices.Clone(group.PostGroup), post)
	if err := s.patchGroup(ctx, groupID, map[string]any{"postGroup": posts}); err != nil {
		return models.GroupPost{}, err
	}
	return post, nil
}

// UpdateGroupPost replaces the matching post in the group's post array
// and writes the whole array back.
func (s *GroupsSlice) UpdateGroupPost(ctx context.Context, groupID, postID int64, updated models.GroupPost) error {
	s.begin()
	group, err := s.localGroup(groupID)
	if err != nil {
		s.fail(err)
		return err
	}

	posts := slices.Clone(group.PostGroup)
	for i := range posts {
		if posts[i].IDPostGroup == postID {
			updated.IDPostGroup = postID
			posts[i] = updated
		}
	}
	return s.patchGroup(ctx, groupID, map[string]any{"postGroup": posts})
}

// DeleteGroupPost removes the matching post from the group's post array
// and writes the whole array back.
func (s *GroupsSlice) DeleteGroupPost(ctx context.Context, groupID, postID int64) error {
	s.begin()
	group, err := s.localGroup(groupID)
	if err != nil {
		s.fail(err)
		return err
	}

	posts := slices.DeleteFunc(slices.Clone(group.PostGroup), func(p models.GroupPost) bool {
		return p.IDPostGroup == postID
	})
	return s.patchGroup(ctx, groupID, map[string]any{"postGroup": posts})
}

// UpdateGroupAvatar uploads a new avatar through the multipart endpoint
// and rewrites the avatar field on the local copies.
func (s *GroupsSlice) UpdateGroupAvatar(ctx context.Context, groupID int64, filename string, data []byte) (string, error) {
	s.begin()
	var updated models.Group
	if err := s.api.PatchMultipart(ctx, fmt.Sprintf("groups/%d/avatar", groupID), "avatar", filename, data, &updated); err != nil {
		s.fail(err)
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if s.currentGroup != nil && s.currentGroup.ID == updated.ID {
		s.currentGroup.Avatar = updated.Avatar
	}
	for i := range s.groups {
		if s.groups[i].ID == updated.ID {
			s.groups[i].Avatar = updated.Avatar
		}
	}
	return updated.Avatar, nil
}

// LockGroup closes a group to membership changes. Admin-gated at the
// calling layer.
func (s *GroupsSlice) LockGroup(ctx context.Context, groupID int64) error {
	return s.setLocked(ctx, groupID, true)
}

// UnlockGroup reopens a locked group.
func (s *GroupsSlice) UnlockGroup(ctx context.Context, groupID int64) error {
	return s.setLocked(ctx, groupID, false)
}

func (s *GroupsSlice) setLocked(ctx context.Context, groupID int64, locked bool) error {
	s.begin()
	var updated models.Group
	if err := s.api.Patch(ctx, fmt.Sprintf("groups/%d", groupID), map[string]any{"isLocked": locked}, &updated); err != nil {
		s.fail(err)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.mergeGroupLocked(updated)
	return nil
}

// DeleteGroup removes a group, but only when the requesting user is an
// admin member in the locally held record.
func (s *GroupsSlice) DeleteGroup(ctx context.Context, groupID, requestingUserID int64) error {
	s.begin()
	group, err := s.localGroup(groupID)
	if err != nil {
		s.fail(err)
		return err
	}

	isAdmin := slices.ContainsFunc(group.Members, func(m models.GroupMember) bool {
		return m.UserID == requestingUserID && m.Role
	})
	if !isAdmin {
		s.fail(errors.ErrPermissionDenied)
		return errors.ErrPermissionDenied
	}

	if err := s.api.Delete(ctx, fmt.Sprintf("groups/%d", groupID)); err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.groups = slices.DeleteFunc(s.groups, func(g models.Group) bool { return g.ID == groupID })
	if s.currentGroup != nil && s.currentGroup.ID == groupID {
		s.currentGroup = nil
	}
	return nil
}

// ClearCurrentGroup drops the currently-opened group, typically on
// navigating away.
func (s *GroupsSlice) ClearCurrentGroup() {
	s.mu.Lock()
	s.currentGroup = nil
	s.mu.Unlock()
}

func (s *GroupsSlice) Groups() []models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneGroups(s.groups)
}

func (s *GroupsSlice) CurrentGroup() (models.Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentGroup == nil {
		return models.Group{}, false
	}
	return cloneGroup(*s.currentGroup), true
}

// localGroup resolves a group from client-held state: the list first,
// then the currently-opened group. Nested mutations need the parent
// loaded; a miss is a NOT_FOUND, not a fetch.
func (s *GroupsSlice) localGroup(groupID int64) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.ID == groupID {
			return cloneGroup(g), nil
		}
	}
	if s.currentGroup != nil && s.currentGroup.ID == groupID {
		return cloneGroup(*s.currentGroup), nil
	}
	return models.Group{}, errors.ErrNotFound
}

// patchGroup writes a partial update and merges the returned group into
// local state. Used by every nested-array mutation.
func (s *GroupsSlice) patchGroup(ctx context.Context, groupID int64, fields map[string]any) error {
	var updated models.Group
	if err := s.api.Patch(ctx, fmt.Sprintf("groups/%d", groupID), fields, &updated); err != nil {
		s.fail(err)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.mergeGroupLocked(updated)
	return nil
}

// mergeGroupLocked replaces the group in the list and refreshes
// currentGroup when ids match. Caller holds the slice lock.
func (s *GroupsSlice) mergeGroupLocked(updated models.Group) {
	for i := range s.groups {
		if s.groups[i].ID == updated.ID {
			s.groups[i] = cloneGroup(updated)
			break
		}
	}
	if s.currentGroup != nil && s.currentGroup.ID == updated.ID {
		current := cloneGroup(updated)
		s.currentGroup = &current
	}
}
