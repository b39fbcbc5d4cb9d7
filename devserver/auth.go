package devserver

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"go-social/middleware"
	"go-social/utils/errors"
)

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "HASH_ERROR", "failed to hash password", http.StatusInternalServerError)
	}
	return string(hashed), nil
}

// newUserDoc fills the defaults a fresh user record carries.
func (s *Server) newUserDoc(doc map[string]any) (map[string]any, error) {
	if password, ok := doc["password"].(string); ok && password != "" {
		hashed, err := hashPassword(password)
		if err != nil {
			return nil, err
		}
		doc["password"] = hashed
	}
	if _, ok := doc["role"]; !ok {
		doc["role"] = "user"
	}
	if _, ok := doc["isLocked"]; !ok {
		doc["isLocked"] = false
	}
	if _, ok := doc["friends"]; !ok {
		doc["friends"] = []any{}
	}
	if _, ok := doc["notify"]; !ok {
		doc["notify"] = []any{}
	}
	return doc, nil
}

// register is the self-service account creation route.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeDoc(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	email, _ := doc["email"].(string)
	if email == "" {
		middleware.WriteError(w, errors.ErrInvalidInput)
		return
	}
	if _, err := s.findUserByEmail(email); err == nil {
		middleware.WriteError(w, errors.NewAPIError("CONFLICT", "Email already registered", http.StatusConflict))
		return
	}
	doc, err = s.newUserDoc(doc)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	created, err := s.db.Insert("users", doc)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// createUser is the admin-dashboard create against the collection. It
// hashes the password like register so login works for either path.
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeDoc(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	doc, err = s.newUserDoc(doc)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	created, err := s.db.Insert("users", doc)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// login exchanges credentials for a bearer token. A locked account is
// rejected with its own code so the client can tell it apart from bad
// credentials.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeInto(r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}

	user, err := s.findUserByEmail(input.Email)
	if err != nil {
		middleware.WriteError(w, errors.ErrInvalidCredentials)
		return
	}
	stored, _ := user["password"].(string)
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(input.Password)) != nil {
		middleware.WriteError(w, errors.ErrInvalidCredentials)
		return
	}
	if locked, _ := user["isLocked"].(bool); locked {
		middleware.WriteError(w, errors.ErrAccountLocked)
		return
	}

	userID, _ := docNumber(user, "id")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userID": userID,
		"exp":    time.Now().Add(24 * time.Hour).Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		middleware.WriteError(w, errors.Wrap(err, "JWT_ERROR", "Failed to generate token", http.StatusInternalServerError))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken": tokenString,
		"user":        user,
	})
}

func (s *Server) findUserByEmail(email string) (map[string]any, error) {
	users, err := s.db.List("users")
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		if stored, _ := user["email"].(string); stored == email {
			return user, nil
		}
	}
	return nil, errors.ErrNotFound
}
