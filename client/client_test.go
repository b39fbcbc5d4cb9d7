package client

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-social/utils/errors"
)

func TestBearerTokenAttached(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(server.URL, func() string { return "token-123" })
	var out map[string]any
	if err := c.Get(context.Background(), "users/1", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("Authorization header %q", gotAuth)
	}
}

func TestNoTokenNoHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(server.URL, func() string { return "" })
	var out map[string]any
	if err := c.Get(context.Background(), "users/1", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("unexpected Authorization header %q", gotAuth)
	}
}

// Backend APIError payloads must survive the wire with their taxonomy
// code intact.
func TestErrorCodePassthrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"code":"ACCOUNT_LOCKED","message":"Account is locked","status":403}`))
	}))
	defer server.Close()

	c := New(server.URL, nil)
	err := c.Post(context.Background(), "login", map[string]string{}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if code := errors.CodeOf(err); code != "ACCOUNT_LOCKED" {
		t.Errorf("code %s, want ACCOUNT_LOCKED", code)
	}
}

// A backend that does not speak the APIError format still surfaces a
// failure, with its body passed through verbatim.
func TestPlainErrorBecomesNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database is on fire", http.StatusBadGateway)
	}))
	defer server.Close()

	c := New(server.URL, nil)
	err := c.Get(context.Background(), "posts", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if code := errors.CodeOf(err); code != "NETWORK_ERROR" {
		t.Errorf("code %s, want NETWORK_ERROR", code)
	}
	var apiErr *errors.APIError
	if !stderrors.As(err, &apiErr) {
		t.Fatalf("error is not an APIError: %T", err)
	}
	if apiErr.Message != "database is on fire" {
		t.Errorf("message %q not passed through verbatim", apiErr.Message)
	}
}

func TestUnreachableBackend(t *testing.T) {
	c := New("http://127.0.0.1:1", nil)
	err := c.Get(context.Background(), "posts", nil)
	if code := errors.CodeOf(err); code != "NETWORK_ERROR" {
		t.Errorf("code %s, want NETWORK_ERROR", code)
	}
}
