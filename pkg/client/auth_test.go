package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/fruitsalade/explorer/internal/browse"
	"github.com/fruitsalade/explorer/pkg/protocol"
)

func TestLogin_Success(t *testing.T) {
	var gotAuth string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/login":
			var req protocol.LoginRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Username != "alice" || req.Password != "pass123" {
				t.Errorf("unexpected login request: %+v", req)
			}
			json.NewEncoder(w).Encode(protocol.LoginResponse{
				Token:     "jwt-token-123",
				ExpiresAt: time.Now().Add(24 * time.Hour),
				User:      protocol.UserInfo{ID: 1, Username: "alice"},
			})
		case "/api/v1/browse":
			gotAuth = r.Header.Get("Authorization")
			w.Write([]byte(`{"name":"/","type":"dir","size":0,"contents":[]}`))
		}
	}))
	defer ts.Close()
	c.SetAuthToken("")

	resp, err := c.Login(context.Background(), "alice", "pass123", "test-device")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Token != "jwt-token-123" || resp.User.Username != "alice" {
		t.Errorf("unexpected response: %+v", resp)
	}

	if _, err := c.ListDirectory(context.Background(), "/"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotAuth != "Bearer jwt-token-123" {
		t.Errorf("Authorization after login = %q", gotAuth)
	}
}

func TestLogin_Failure(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"username and password required","code":400}`))
	}))
	defer ts.Close()

	_, err := c.Login(context.Background(), "alice", "", "device")
	if !IsStatus(err, http.StatusBadRequest) {
		t.Fatalf("expected 400 StatusError, got %v", err)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid credentials","code":401}`))
	}))
	defer ts.Close()

	_, err := c.Login(context.Background(), "alice", "wrong", "device")
	if !errors.Is(err, browse.ErrUnauthorized) {
		t.Fatalf("error = %v, want %v", err, browse.ErrUnauthorized)
	}
	if IsStatus(err, http.StatusUnauthorized) {
		t.Error("401 should map to the unauthorized sentinel, not a StatusError")
	}
}

func TestLogout(t *testing.T) {
	calls := 0
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/logout" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("logout should send the current token")
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.authToken != "" {
		t.Error("token should be cleared after logout")
	}
}

func TestTokenFile_SaveLoadDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	want := &TokenFile{
		Token:     "abc",
		ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		Server:    "http://localhost:8080",
		Username:  "alice",
	}

	if err := SaveToken(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadToken(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Token != want.Token || !got.ExpiresAt.Equal(want.ExpiresAt) || got.Username != want.Username {
		t.Errorf("loaded %+v, want %+v", got, want)
	}

	if err := DeleteToken(path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := DeleteToken(path); err != nil {
		t.Errorf("deleting a missing file should succeed, got %v", err)
	}
	if _, err := LoadToken(path); err == nil {
		t.Error("expected error loading deleted token")
	}
}

func TestIsExpired(t *testing.T) {
	tf := &TokenFile{ExpiresAt: time.Now().Add(30 * time.Minute)}
	if tf.IsExpired(0) {
		t.Error("token should not be expired yet")
	}
	if !tf.IsExpired(time.Hour) {
		t.Error("token should count as expired within a 1h margin")
	}
}
