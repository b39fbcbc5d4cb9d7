package devserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	db, err := OpenDB(filepath.Join(dir, "social.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	server := httptest.NewServer(NewServer(db, "test-secret", filepath.Join(dir, "uploads")))
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestRegisterLoginFlow(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/register", map[string]any{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d", resp.StatusCode)
	}
	created := decodeBody(t, resp)
	if created["id"] == nil {
		t.Fatalf("register assigned no id: %v", created)
	}
	if stored, _ := created["password"].(string); stored == "secret" {
		t.Errorf("password stored in plaintext")
	}
	if role, _ := created["role"].(string); role != "user" {
		t.Errorf("default role %q", role)
	}

	// Wrong password
	resp = postJSON(t, server.URL+"/login", map[string]any{"email": "alice@example.com", "password": "nope"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong-password login status %d", resp.StatusCode)
	}

	// Correct credentials
	resp = postJSON(t, server.URL+"/login", map[string]any{"email": "alice@example.com", "password": "secret"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	token, _ := body["accessToken"].(string)
	if token == "" {
		t.Fatalf("login returned no token")
	}

	// The authed auto-login route accepts the token...
	user := body["user"].(map[string]any)
	id := int64(user["id"].(float64))
	req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/660/users/%d", server.URL, id), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authed fetch: %v", err)
	}
	defer authResp.Body.Close()
	if authResp.StatusCode != http.StatusOK {
		t.Errorf("authed fetch status %d", authResp.StatusCode)
	}

	// ...and rejects its absence.
	plain, err := http.Get(fmt.Sprintf("%s/660/users/%d", server.URL, id))
	if err != nil {
		t.Fatalf("unauthenticated fetch: %v", err)
	}
	defer plain.Body.Close()
	if plain.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated fetch status %d", plain.StatusCode)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	server := newTestServer(t)
	account := map[string]any{"username": "alice", "email": "alice@example.com", "password": "secret"}

	if resp := postJSON(t, server.URL+"/register", account); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first register status %d", resp.StatusCode)
	}
	if resp := postJSON(t, server.URL+"/register", account); resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate register status %d, want 409", resp.StatusCode)
	}
}

func TestLoginLockedAccount(t *testing.T) {
	server := newTestServer(t)
	resp := postJSON(t, server.URL+"/register", map[string]any{
		"email": "alice@example.com", "password": "secret", "isLocked": true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d", resp.StatusCode)
	}

	resp = postJSON(t, server.URL+"/login", map[string]any{"email": "alice@example.com", "password": "secret"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("locked login status %d, want 403", resp.StatusCode)
	}
	if code, _ := decodeBody(t, resp)["code"].(string); code != "ACCOUNT_LOCKED" {
		t.Errorf("locked login code %q", code)
	}
}

func TestRoleLikeFilter(t *testing.T) {
	server := newTestServer(t)
	postJSON(t, server.URL+"/users", map[string]any{"username": "alice", "email": "a@example.com", "role": "user"})
	postJSON(t, server.URL+"/users", map[string]any{"username": "root", "email": "r@example.com", "role": "admin"})

	resp, err := http.Get(server.URL + "/users?role_like=user")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var users []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("filtered %d users, want 1", len(users))
	}
	if username, _ := users[0]["username"].(string); username != "alice" {
		t.Errorf("filtered user %q", username)
	}
}

func TestReactionEndpoints(t *testing.T) {
	server := newTestServer(t)
	resp := postJSON(t, server.URL+"/posts", map[string]any{
		"userId": 1, "content": "hello", "reactions": []string{},
	})
	post := decodeBody(t, resp)
	postID := int64(post["id"].(float64))

	// Adding twice keeps the set semantics.
	for i := 0; i < 2; i++ {
		resp := postJSON(t, fmt.Sprintf("%s/posts/%d/reactions", server.URL, postID), map[string]any{"userId": 9})
		if resp.StatusCode >= 300 {
			t.Fatalf("add reaction status %d", resp.StatusCode)
		}
	}
	resp = postJSON(t, fmt.Sprintf("%s/posts/%d/reactions", server.URL, postID), map[string]any{"userId": 12})
	updated := decodeBody(t, resp)
	reactions, _ := updated["reactions"].([]any)
	if len(reactions) != 2 {
		t.Fatalf("reactions %v, want two distinct entries", reactions)
	}

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/posts/%d/reactions/9", server.URL, postID), nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("remove reaction: %v", err)
	}
	defer delResp.Body.Close()
	remaining := decodeBody(t, delResp)
	reactions, _ = remaining["reactions"].([]any)
	if len(reactions) != 1 || reactions[0] != "12" {
		t.Errorf("reactions after remove: %v", reactions)
	}
}

func TestPatchMergesTopLevelOnly(t *testing.T) {
	server := newTestServer(t)
	resp := postJSON(t, server.URL+"/groups", map[string]any{
		"groupName": "Chess Club",
		"members":   []map[string]any{{"userId": 1, "role": true}},
	})
	group := decodeBody(t, resp)
	groupID := int64(group["id"].(float64))

	// PATCHing members replaces the whole array.
	patch, _ := json.Marshal(map[string]any{"members": []map[string]any{
		{"userId": 1, "role": true},
		{"userId": 2, "role": false},
	}})
	req, _ := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/groups/%d", server.URL, groupID), bytes.NewReader(patch))
	req.Header.Set("Content-Type", "application/json")
	patchResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	defer patchResp.Body.Close()
	updated := decodeBody(t, patchResp)
	members, _ := updated["members"].([]any)
	if len(members) != 2 {
		t.Errorf("members after patch: %v", members)
	}
	if name, _ := updated["groupName"].(string); name != "Chess Club" {
		t.Errorf("untouched field lost: groupName=%q", name)
	}
}

func TestAvatarUpload(t *testing.T) {
	server := newTestServer(t)
	resp := postJSON(t, server.URL+"/groups", map[string]any{"groupName": "Chess Club", "avatar": ""})
	group := decodeBody(t, resp)
	groupID := int64(group["id"].(float64))

	var buf bytes.Buffer
	boundary := "testboundary"
	fmt.Fprintf(&buf, "--%s\r\nContent-Disposition: form-data; name=\"avatar\"; filename=\"banner.png\"\r\nContent-Type: image/png\r\n\r\nfake-png-bytes\r\n--%s--\r\n", boundary, boundary)
	req, _ := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/groups/%d/avatar", server.URL, groupID), &buf)
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	uploadResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer uploadResp.Body.Close()
	if uploadResp.StatusCode != http.StatusOK {
		t.Fatalf("upload status %d", uploadResp.StatusCode)
	}
	updated := decodeBody(t, uploadResp)
	avatar, _ := updated["avatar"].(string)
	if !strings.HasPrefix(avatar, "/uploads/") || !strings.HasSuffix(avatar, ".png") {
		t.Errorf("avatar URL %q", avatar)
	}

	// The stored file is served back.
	fileResp, err := http.Get(server.URL + avatar)
	if err != nil {
		t.Fatalf("fetch avatar: %v", err)
	}
	defer fileResp.Body.Close()
	if fileResp.StatusCode != http.StatusOK {
		t.Errorf("avatar fetch status %d", fileResp.StatusCode)
	}
}
