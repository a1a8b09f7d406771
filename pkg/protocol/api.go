// Package protocol defines the API request/response types.
package protocol

import "time"

// Entry types used in BrowseResponse and FileInfo.
const (
	TypeDir  = "dir"
	TypeFile = "file"
)

// FileInfo is one entry of a directory listing.
type FileInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // "dir" or "file"
	Size int64  `json:"size"`
}

// BrowseResponse is returned by GET /api/v1/browse?path=
type BrowseResponse struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Size     int64      `json:"size"`
	Contents []FileInfo `json:"contents"`
}

// LoginRequest is the body for POST /api/v1/login.
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	DeviceName string `json:"device_name,omitempty"`
}

// LoginResponse is returned by a successful POST /api/v1/login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserInfo  `json:"user"`
}

// UserInfo describes the authenticated user.
type UserInfo struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}
