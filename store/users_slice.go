package store

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strconv"

	"go-social/client"
	"go-social/models"
	"go-social/session"
	"go-social/utils/errors"
)

// UsersSlice owns the authenticated identity, the profile being viewed,
// that profile's resolved friends, and the admin user listing.
type UsersSlice struct {
	sliceState
	api  *client.Client
	sess *session.Session

	users          []models.User
	userLogin      *models.User
	profileUser    *models.User
	profileFriends []models.User
}

type loginResponse struct {
	AccessToken string      `json:"accessToken"`
	User        models.User `json:"user"`
}

// Register creates an account through the self-service endpoint and
// appends it to the admin listing.
func (s *UsersSlice) Register(ctx context.Context, fields models.User) (models.User, error) {
	s.begin()
	var created models.User
	if err := s.api.Post(ctx, "register", fields, &created); err != nil {
		s.fail(err)
		return models.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.users = append(s.users, created)
	return cloneUser(created), nil
}

// CreateUser is the admin-dashboard create, hitting the collection
// directly instead of the register route.
func (s *UsersSlice) CreateUser(ctx context.Context, fields models.User) (models.User, error) {
	s.begin()
	var created models.User
	if err := s.api.Post(ctx, "users", fields, &created); err != nil {
		s.fail(err)
		return models.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.users = append(s.users, created)
	return cloneUser(created), nil
}

// Login exchanges credentials for an access token. A locked account is
// rejected with ACCOUNT_LOCKED even when the credentials are correct,
// and no session is persisted for it.
func (s *UsersSlice) Login(ctx context.Context, email, password string) (models.User, error) {
	s.begin()
	var resp loginResponse
	err := s.api.Post(ctx, "login", map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		s.fail(err)
		return models.User{}, err
	}
	if resp.User.IsLocked {
		s.fail(errors.ErrAccountLocked)
		return models.User{}, errors.ErrAccountLocked
	}
	if err := s.sess.Save(resp.AccessToken, resp.User.ID); err != nil {
		err = errors.Wrap(err, "INTERNAL_SERVER_ERROR", "failed to persist session", errors.ErrInternal.Status)
		s.fail(err)
		return models.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	identity := cloneUser(resp.User)
	s.userLogin = &identity
	return cloneUser(resp.User), nil
}

// Logout drops the persisted session and the current identity. No
// network call is made.
func (s *UsersSlice) Logout() {
	if err := s.sess.Clear(); err != nil {
		log.Printf("users: failed to clear session: %v", err)
	}
	s.mu.Lock()
	s.userLogin = nil
	s.mu.Unlock()
}

// AutoLogin restores the persisted session at process start by
// re-fetching the stored user through the authenticated route.
func (s *UsersSlice) AutoLogin(ctx context.Context) (models.User, error) {
	_, userID, ok := s.sess.Restore()
	if !ok {
		return models.User{}, errors.ErrUnauthorized
	}
	var user models.User
	if err := s.api.Get(ctx, fmt.Sprintf("660/users/%d", userID), &user); err != nil {
		return models.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	identity := cloneUser(user)
	s.userLogin = &identity
	return cloneUser(user), nil
}

// FetchProfile loads a user into the viewed-profile state. When the
// loaded id is the current identity, the identity copy is refreshed
// from the same response instead of a second request.
func (s *UsersSlice) FetchProfile(ctx context.Context, userID int64) (models.User, error) {
	s.begin()
	var user models.User
	if err := s.api.Get(ctx, fmt.Sprintf("users/%d", userID), &user); err != nil {
		s.fail(err)
		return models.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	profile := cloneUser(user)
	s.profileUser = &profile
	if s.userLogin != nil && s.userLogin.ID == user.ID {
		identity := cloneUser(user)
		s.userLogin = &identity
	}
	return cloneUser(user), nil
}

// UpdateProfile merges partial fields into a user record. The current
// identity always takes the response; the viewed profile only when it
// is the same user.
func (s *UsersSlice) UpdateProfile(ctx context.Context, userID int64, fields map[string]any) (models.User, error) {
	s.begin()
	var updated models.User
	if err := s.api.Patch(ctx, fmt.Sprintf("users/%d", userID), fields, &updated); err != nil {
		s.fail(err)
		return models.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	identity := cloneUser(updated)
	s.userLogin = &identity
	if s.profileUser != nil && s.profileUser.ID == updated.ID {
		profile := cloneUser(updated)
		s.profileUser = &profile
	}
	return cloneUser(updated), nil
}

// SendFriendRequest records the pending relation on both user records
// and drops a notification in the receiver's mailbox. Two writes, not
// atomic: a failure after the first leaves a one-sided relation until a
// later re-fetch reconciles it.
func (s *UsersSlice) SendFriendRequest(ctx context.Context, senderID, receiverID int64) error {
	s.begin()
	sender, receiver, err := s.fetchPair(ctx, senderID, receiverID)
	if err != nil {
		s.fail(err)
		return err
	}

	date := nowISO()
	senderUpdate := map[string]any{
		"friends": append(slices.Clone(sender.Friends), models.FriendRelation{UserID: receiverID, Status: false, Date: date}),
	}
	receiverUpdate := map[string]any{
		"friends": append(slices.Clone(receiver.Friends), models.FriendRelation{UserID: senderID, Status: false, Date: date}),
		"notify": append(slices.Clone(receiver.Notify), models.Notification{
			From:    strconv.FormatInt(senderID, 10),
			Message: fmt.Sprintf("User %d sent you a friend request", senderID),
			Date:    date,
		}),
	}

	updatedSender, updatedReceiver, err := s.patchPair(ctx, senderID, senderUpdate, receiverID, receiverUpdate)
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.mergeUserLocked(updatedSender)
	s.mergeUserLocked(updatedReceiver)
	return nil
}

// CancelFriendRequest removes the pending relation from both sides and
// the notification from the receiver's mailbox. Calling it again is a
// no-op on the already-clean records.
func (s *UsersSlice) CancelFriendRequest(ctx context.Context, senderID, receiverID int64) error {
	s.begin()
	sender, receiver, err := s.fetchPair(ctx, senderID, receiverID)
	if err != nil {
		s.fail(err)
		return err
	}

	senderUpdate := map[string]any{
		"friends": withoutRelation(sender.Friends, receiverID),
	}
	receiverUpdate := map[string]any{
		"friends": withoutRelation(receiver.Friends, senderID),
		"notify":  withoutNotify(receiver.Notify, senderID),
	}

	updatedSender, updatedReceiver, err := s.patchPair(ctx, senderID, senderUpdate, receiverID, receiverUpdate)
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.mergeUserLocked(updatedSender)
	s.mergeUserLocked(updatedReceiver)
	return nil
}

// AcceptFriendRequest flips both relation entries to accepted and
// removes the originating notification from the accepter's mailbox.
func (s *UsersSlice) AcceptFriendRequest(ctx context.Context, accepterID, requesterID int64) error {
	s.begin()
	accepter, requester, err := s.fetchPair(ctx, accepterID, requesterID)
	if err != nil {
		s.fail(err)
		return err
	}

	date := nowISO()
	accepterUpdate := map[string]any{
		"friends": acceptRelation(accepter.Friends, requesterID, date),
		"notify":  withoutNotify(accepter.Notify, requesterID),
	}
	requesterUpdate := map[string]any{
		"friends": acceptRelation(requester.Friends, accepterID, date),
	}

	updatedAccepter, updatedRequester, err := s.patchPair(ctx, accepterID, accepterUpdate, requesterID, requesterUpdate)
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.mergeUserLocked(updatedAccepter)
	s.mergeUserLocked(updatedRequester)
	return nil
}

// RejectFriendRequest clears the pending relation on both sides and the
// notification on the rejecter. Accepted relations are left alone, so a
// stray reject cannot sever an existing friendship.
func (s *UsersSlice) RejectFriendRequest(ctx context.Context, rejecterID, requesterID int64) error {
	s.begin()
	rejecter, requester, err := s.fetchPair(ctx, rejecterID, requesterID)
	if err != nil {
		s.fail(err)
		return err
	}

	rejecterUpdate := map[string]any{
		"friends": withoutPendingRelation(rejecter.Friends, requesterID),
		"notify":  withoutNotify(rejecter.Notify, requesterID),
	}
	requesterUpdate := map[string]any{
		"friends": withoutPendingRelation(requester.Friends, rejecterID),
	}

	updatedRejecter, updatedRequester, err := s.patchPair(ctx, rejecterID, rejecterUpdate, requesterID, requesterUpdate)
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.mergeUserLocked(updatedRejecter)
	s.mergeUserLocked(updatedRequester)
	return nil
}

// FetchFriendsOf resolves a user's accepted relations into full user
// records for the viewed profile's friends list.
func (s *UsersSlice) FetchFriendsOf(ctx context.Context, userID int64) ([]models.User, error) {
	s.begin()
	var user models.User
	if err := s.api.Get(ctx, fmt.Sprintf("users/%d", userID), &user); err != nil {
		s.fail(err)
		return nil, err
	}

	friends := []models.User{}
	for _, relation := range user.Friends {
		if !relation.Status {
			continue
		}
		var friend models.User
		if err := s.api.Get(ctx, fmt.Sprintf("users/%d", relation.UserID), &friend); err != nil {
			s.fail(err)
			return nil, err
		}
		friends = append(friends, friend)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.profileFriends = cloneUsers(friends)
	return cloneUsers(friends), nil
}

// ListAllUsers loads the full user collection for the admin dashboard.
func (s *UsersSlice) ListAllUsers(ctx context.Context) ([]models.User, error) {
	s.begin()
	var users []models.User
	if err := s.api.Get(ctx, "users", &users); err != nil {
		s.fail(err)
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.users = cloneUsers(users)
	return cloneUsers(users), nil
}

// DeleteUser removes a user record and drops it from the admin listing.
func (s *UsersSlice) DeleteUser(ctx context.Context, userID int64) error {
	s.begin()
	if err := s.api.Delete(ctx, fmt.Sprintf("users/%d", userID)); err != nil {
		s.fail(err)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.users = slices.DeleteFunc(s.users, func(u models.User) bool { return u.ID == userID })
	return nil
}

// SetLocked flips a user's account-lock flag from the admin dashboard.
func (s *UsersSlice) SetLocked(ctx context.Context, userID int64, locked bool) error {
	s.begin()
	var updated models.User
	if err := s.api.Patch(ctx, fmt.Sprintf("users/%d", userID), map[string]any{"isLocked": locked}, &updated); err != nil {
		s.fail(err)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	for i := range s.users {
		if s.users[i].ID == updated.ID {
			s.users[i] = cloneUser(updated)
			break
		}
	}
	return nil
}

func (s *UsersSlice) CurrentIdentity() (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userLogin == nil {
		return models.User{}, false
	}
	return cloneUser(*s.userLogin), true
}

func (s *UsersSlice) ProfileUser() (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profileUser == nil {
		return models.User{}, false
	}
	return cloneUser(*s.profileUser), true
}

func (s *UsersSlice) Users() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUsers(s.users)
}

func (s *UsersSlice) ProfileFriends() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUsers(s.profileFriends)
}

// fetchPair reads both user records of a friend operation fresh from
// the backend before any relation math. Ordered: first id, second id.
func (s *UsersSlice) fetchPair(ctx context.Context, firstID, secondID int64) (models.User, models.User, error) {
	var first, second models.User
	if err := s.api.Get(ctx, fmt.Sprintf("users/%d", firstID), &first); err != nil {
		return models.User{}, models.User{}, err
	}
	if err := s.api.Get(ctx, fmt.Sprintf("users/%d", secondID), &second); err != nil {
		return models.User{}, models.User{}, err
	}
	return first, second, nil
}

// patchPair writes both sides of a friend operation in sequence. There
// is no rollback: if the second write fails the first has already
// landed and the two relation views disagree until re-fetched.
func (s *UsersSlice) patchPair(ctx context.Context, firstID int64, firstUpdate map[string]any, secondID int64, secondUpdate map[string]any) (models.User, models.User, error) {
	var first, second models.User
	if err := s.api.Patch(ctx, fmt.Sprintf("users/%d", firstID), firstUpdate, &first); err != nil {
		return models.User{}, models.User{}, err
	}
	if err := s.api.Patch(ctx, fmt.Sprintf("users/%d", secondID), secondUpdate, &second); err != nil {
		return models.User{}, models.User{}, err
	}
	return first, second, nil
}

// mergeUserLocked refreshes whichever identity copies match the updated
// record. Caller holds the slice lock.
func (s *UsersSlice) mergeUserLocked(u models.User) {
	if s.userLogin != nil && s.userLogin.ID == u.ID {
		identity := cloneUser(u)
		s.userLogin = &identity
	}
	if s.profileUser != nil && s.profileUser.ID == u.ID {
		profile := cloneUser(u)
		s.profileUser = &profile
	}
}

func withoutRelation(relations []models.FriendRelation, userID int64) []models.FriendRelation {
	out := []models.FriendRelation{}
	for _, r := range relations {
		if r.UserID != userID {
			out = append(out, r)
		}
	}
	return out
}

func withoutPendingRelation(relations []models.FriendRelation, userID int64) []models.FriendRelation {
	out := []models.FriendRelation{}
	for _, r := range relations {
		if r.UserID != userID || r.Status {
			out = append(out, r)
		}
	}
	return out
}

func acceptRelation(relations []models.FriendRelation, userID int64, date string) []models.FriendRelation {
	out := make([]models.FriendRelation, len(relations))
	for i, r := range relations {
		if r.UserID == userID {
			r.Status = true
			r.Date = date
		}
		out[i] = r
	}
	return out
}

func withoutNotify(notify []models.Notification, fromUserID int64) []models.Notification {
	from := strconv.FormatInt(fromUserID, 10)
	out := []models.Notification{}
	for _, n := range notify {
		if n.From != from {
			out = append(out, n)
		}
	}
	return out
}
