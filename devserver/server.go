package devserver

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"go-social/middleware"
	"go-social/utils/errors"
)

type Server struct {
	db        *DB
	jwtSecret string
	uploadDir string
}

// NewServer wires the full REST surface the state layer consumes. The
// returned handler is safe to mount in main or under httptest.
func NewServer(db *DB, jwtSecret, uploadDir string) http.Handler {
	s := &Server{db: db, jwtSecret: jwtSecret, uploadDir: uploadDir}

	r := mux.NewRouter()
	r.Use(middleware.ErrorMiddleware())

	// Credential exchange
	r.HandleFunc("/register", s.register).Methods("POST", "OPTIONS")
	r.HandleFunc("/login", s.login).Methods("POST", "OPTIONS")

	// Authenticated user fetch used by auto-login
	authed := r.PathPrefix("/660").Subrouter()
	authed.Use(middleware.JWTMiddleware(jwtSecret))
	authed.HandleFunc("/users/{id}", s.getOwnUser).Methods("GET", "OPTIONS")

	// Users collection
	r.HandleFunc("/users", s.listUsers).Methods("GET", "OPTIONS")
	r.HandleFunc("/users", s.createUser).Methods("POST", "OPTIONS")
	r.HandleFunc("/users/{id}", s.getUser).Methods("GET", "OPTIONS")
	r.HandleFunc("/users/{id}", s.patchUser).Methods("PATCH", "OPTIONS")
	r.HandleFunc("/users/{id}", s.deleteDoc("users")).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/users/{id}/posts", s.userPosts).Methods("GET", "OPTIONS")

	// Posts collection and sub-resources
	r.HandleFunc("/posts", s.listDocs("posts")).Methods("GET", "OPTIONS")
	r.HandleFunc("/posts", s.createDoc("posts")).Methods("POST", "OPTIONS")
	r.HandleFunc("/posts/{id}", s.patchDoc("posts")).Methods("PATCH", "OPTIONS")
	r.HandleFunc("/posts/{id}", s.deleteDoc("posts")).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/posts/{id}/reactions", s.addReaction).Methods("POST", "OPTIONS")
	r.HandleFunc("/posts/{id}/reactions/{userId}", s.removeReaction).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/posts/{id}/comments", s.addComment).Methods("POST", "OPTIONS")

	// Groups collection
	r.HandleFunc("/groups", s.listDocs("groups")).Methods("GET", "OPTIONS")
	r.HandleFunc("/groups", s.createDoc("groups")).Methods("POST", "OPTIONS")
	r.HandleFunc("/groups/{id}", s.getDoc("groups")).Methods("GET", "OPTIONS")
	r.HandleFunc("/groups/{id}", s.patchDoc("groups")).Methods("PATCH", "OPTIONS")
	r.HandleFunc("/groups/{id}", s.deleteDoc("groups")).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/groups/{id}/avatar", s.updateGroupAvatar).Methods("PATCH", "OPTIONS")

	// Uploaded avatars
	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, errors.ErrInvalidInput
	}
	return id, nil
}

func decodeDoc(r *http.Request) (map[string]any, error) {
	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		return nil, errors.ErrInvalidInput
	}
	return doc, nil
}

func decodeInto(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.ErrInvalidInput
	}
	return nil
}

// docNumber reads a numeric field out of a decoded JSON document.
func docNumber(doc map[string]any, key string) (float64, bool) {
	n, ok := doc[key].(float64)
	return n, ok
}

// Generic collection handlers

func (s *Server) listDocs(table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := s.db.List(table)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

func (s *Server) getDoc(table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		doc, err := s.db.Get(table, id)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *Server) createDoc(table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := decodeDoc(r)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		created, err := s.db.Insert(table, doc)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func (s *Server) patchDoc(table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		partial, err := decodeDoc(r)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		doc, err := s.db.Patch(table, id, partial)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *Server) deleteDoc(table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		if err := s.db.Delete(table, id); err != nil {
			middleware.WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	}
}

// userPosts returns the posts authored by one user.
func (s *Server) userPosts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	docs, err := s.db.List("posts")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	authored := []map[string]any{}
	for _, doc := range docs {
		if userID, ok := docNumber(doc, "userId"); ok && int64(userID) == id {
			authored = append(authored, doc)
		}
	}
	writeJSON(w, http.StatusOK, authored)
}

// addReaction appends the reacting user to the post's reaction set.
func (s *Server) addReaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	body, err := decodeDoc(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	userID, ok := docNumber(body, "userId")
	if !ok {
		middleware.WriteError(w, errors.ErrInvalidInput)
		return
	}
	reactor := strconv.FormatInt(int64(userID), 10)

	post, err := s.db.Get("posts", id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	reactions, _ := post["reactions"].([]any)
	for _, existing := range reactions {
		if existing == reactor {
			writeJSON(w, http.StatusOK, post)
			return
		}
	}
	updated, err := s.db.Patch("posts", id, map[string]any{"reactions": append(reactions, reactor)})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, updated)
}

// removeReaction drops the user from the post's reaction set.
func (s *Server) removeReaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	reactor := mux.Vars(r)["userId"]

	post, err := s.db.Get("posts", id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	reactions, _ := post["reactions"].([]any)
	remaining := []any{}
	for _, existing := range reactions {
		if existing != reactor {
			remaining = append(remaining, existing)
		}
	}
	updated, err := s.db.Patch("posts", id, map[string]any{"reactions": remaining})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// addComment appends a comment to the post and echoes the stored copy.
func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	comment, err := decodeDoc(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	post, err := s.db.Get("posts", id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	comments, _ := post["comments"].([]any)
	if _, err := s.db.Patch("posts", id, map[string]any{"comments": append(comments, comment)}); err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// updateGroupAvatar stores the uploaded file and rewrites the group's
// avatar URL.
func (s *Server) updateGroupAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		middleware.WriteError(w, errors.ErrInvalidInput)
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		middleware.WriteError(w, errors.ErrInvalidInput)
		return
	}
	defer file.Close()

	name := uuid.New().String() + filepath.Ext(header.Filename)
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		middleware.WriteError(w, err)
		return
	}
	dst, err := os.Create(filepath.Join(s.uploadDir, name))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		middleware.WriteError(w, err)
		return
	}

	updated, err := s.db.Patch("groups", id, map[string]any{"avatar": "/uploads/" + name})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// listUsers serves the user collection, honoring the role_like filter
// the client uses to exclude admin accounts.
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	docs, err := s.db.List("users")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	roleLike := r.URL.Query().Get("role_like")
	if roleLike != "" {
		filtered := []map[string]any{}
		for _, doc := range docs {
			role, _ := doc["role"].(string)
			if strings.Contains(role, roleLike) {
				filtered = append(filtered, doc)
			}
		}
		docs = filtered
	}
	writeJSON(w, http.StatusOK, docs)
}

// getOwnUser serves the authenticated auto-login fetch. The token's
// subject can only read its own record.
func (s *Server) getOwnUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	tokenUserID, ok := middleware.UserIDFromContext(r.Context())
	if !ok || tokenUserID != id {
		middleware.WriteError(w, errors.ErrPermissionDenied)
		return
	}
	doc, err := s.db.Get("users", id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	doc, err := s.db.Get("users", id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) patchUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	partial, err := decodeDoc(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if password, ok := partial["password"].(string); ok && password != "" {
		hashed, err := hashPassword(password)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		partial["password"] = hashed
	}
	doc, err := s.db.Patch("users", id, partial)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
