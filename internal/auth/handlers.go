package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/pkg/protocol"
)

// HandleLogin handles POST /api/v1/login.
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req protocol.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendAuthError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		sendAuthError(w, http.StatusBadRequest, "username and password required")
		return
	}

	resp, err := a.Login(r.Context(), req.Username, req.Password, req.DeviceName)
	if errors.Is(err, ErrInvalidCredentials) {
		sendAuthError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		logging.WithContext(r.Context()).Error("login failed", logging.Err(err))
		sendAuthError(w, http.StatusInternalServerError, "login failed")
		return
	}

	a.SetSessionCookie(w, resp.Token, resp.ExpiresAt)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleLogout handles POST /api/v1/logout. It revokes the presented token,
// if any, and always clears the session cookie.
func (a *Auth) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if tokenStr := ExtractToken(r); tokenStr != "" {
		if err := a.RevokeToken(r.Context(), tokenStr); err != nil {
			logging.WithContext(r.Context()).Error("logout revoke failed", logging.Err(err))
		}
	}
	a.ClearSessionCookie(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
