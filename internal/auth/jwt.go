// Package auth provides JWT session authentication backed by the user table.
package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/metrics"
	"github.com/fruitsalade/explorer/internal/store"
	"github.com/fruitsalade/explorer/pkg/protocol"
)

type contextKey string

const userContextKey contextKey = "user"

// SessionCookie carries the JWT for browser sessions.
const SessionCookie = "session"

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Compared against when the user does not exist, so both paths cost one bcrypt.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("explorer-dummy-password"), bcrypt.DefaultCost)

// Claims holds JWT token claims.
type Claims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Auth handles JWT authentication.
type Auth struct {
	db     *store.DB
	secret []byte
	ttl    time.Duration
	oidc   *OIDCProvider

	// SecureCookies marks session cookies Secure; set when serving TLS.
	SecureCookies bool
}

// New creates a new Auth handler. Tokens live for ttl.
func New(db *store.DB, jwtSecret string, ttl time.Duration) *Auth {
	return &Auth{
		db:     db,
		secret: []byte(jwtSecret),
		ttl:    ttl,
	}
}

// Middleware rejects requests without a valid token with a JSON 401.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := ExtractToken(r)
		if tokenStr == "" {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "missing authentication token")
			return
		}

		claims, err := a.Verify(r.Context(), tokenStr)
		if err != nil {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// Optional attaches claims when the request carries a valid token and
// passes every request through. Page handlers decide what to do without one.
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenStr := ExtractToken(r); tokenStr != "" {
			if claims, err := a.Verify(r.Context(), tokenStr); err == nil {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Verify validates a local JWT, then falls back to OIDC when configured.
func (a *Auth) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := a.validateToken(tokenStr)
	if err == nil {
		revoked, rerr := a.isTokenRevoked(ctx, tokenStr)
		if rerr != nil {
			logging.Error("token revocation check failed", logging.Err(rerr))
		}
		if !revoked {
			return claims, nil
		}
		err = errors.New("token has been revoked")
	}

	if a.oidc != nil {
		if oc, oerr := a.oidc.ValidateToken(ctx, tokenStr); oerr == nil {
			return oc, nil
		}
	}
	return nil, fmt.Errorf("invalid token: %w", err)
}

// GetClaims extracts claims from the request context.
func GetClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(userContextKey).(*Claims)
	return claims
}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// ValidateCredentials checks a username and password against the user table.
func (a *Auth) ValidateCredentials(ctx context.Context, username, password string) (*protocol.UserInfo, error) {
	var (
		u      protocol.UserInfo
		hashed string
	)
	start := time.Now()
	err := a.db.QueryRowContext(ctx,
		a.db.Rebind(`SELECT id, username, password, is_admin FROM users WHERE username = ?`),
		username).Scan(&u.ID, &u.Username, &hashed, &u.IsAdmin)
	metrics.RecordDBQuery("lookup_user", time.Since(start))
	if errors.Is(err, sql.ErrNoRows) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

// Login validates credentials and issues a token.
func (a *Auth) Login(ctx context.Context, username, password, deviceName string) (*protocol.LoginResponse, error) {
	user, err := a.ValidateCredentials(ctx, username, password)
	if err != nil {
		metrics.RecordAuthAttempt(false)
		if errors.Is(err, ErrInvalidCredentials) {
			logging.Warn("login failed", logging.String("username", username))
		}
		return nil, err
	}

	tokenStr, expires, err := a.IssueToken(ctx, user, deviceName)
	if err != nil {
		metrics.RecordAuthAttempt(false)
		return nil, err
	}

	metrics.RecordAuthAttempt(true)
	logging.Info("login successful", logging.String("username", user.Username))
	return &protocol.LoginResponse{Token: tokenStr, ExpiresAt: expires, User: *user}, nil
}

// IssueToken signs a JWT for user and records it for revocation.
func (a *Auth) IssueToken(ctx context.Context, user *protocol.UserInfo, deviceName string) (string, time.Time, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "explorer",
			ID:        uuid.NewString(),
		},
	}

	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	if deviceName == "" {
		deviceName = "unknown"
	}
	_, err = a.db.ExecContext(ctx,
		a.db.Rebind(`INSERT INTO device_tokens (user_id, device_name, token_hash) VALUES (?, ?, ?)`),
		user.ID, deviceName, hashToken(tokenStr))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("record device token: %w", err)
	}

	return tokenStr, claims.ExpiresAt.Time, nil
}

// RevokeToken marks a token as revoked. Unknown tokens are ignored.
func (a *Auth) RevokeToken(ctx context.Context, tokenStr string) error {
	_, err := a.db.ExecContext(ctx,
		a.db.Rebind(`UPDATE device_tokens SET revoked = ? WHERE token_hash = ?`),
		true, hashToken(tokenStr))
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	metrics.RecordTokenRevoked()
	return nil
}

// CreateUser adds a user with a bcrypt-hashed password.
func (a *Auth) CreateUser(ctx context.Context, username, password string, isAdmin bool) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		a.db.Rebind(`INSERT INTO users (username, password, is_admin) VALUES (?, ?, ?)`),
		username, string(hashed), isAdmin)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	logging.Info("user created", logging.String("username", username))
	return nil
}

// EnsureDefaultAdmin creates admin/admin when the user table is empty.
func (a *Auth) EnsureDefaultAdmin(ctx context.Context) error {
	var count int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("count users: %w", err)
	}

	if count == 0 {
		logging.Warn("no users found, creating default admin (admin/admin)")
		logging.Warn("** change the default password immediately! **")
		return a.CreateUser(ctx, "admin", "admin", true)
	}
	return nil
}

func (a *Auth) validateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func (a *Auth) isTokenRevoked(ctx context.Context, tokenStr string) (bool, error) {
	var revoked bool
	start := time.Now()
	err := a.db.QueryRowContext(ctx,
		a.db.Rebind(`SELECT revoked FROM device_tokens WHERE token_hash = ?`),
		hashToken(tokenStr)).Scan(&revoked)
	metrics.RecordDBQuery("token_revoked", time.Since(start))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil // untracked tokens are not revoked
	}
	if err != nil {
		return false, err
	}
	return revoked, nil
}

// ExtractToken finds the token in the Authorization header, the session
// cookie, or the token query parameter, in that order.
func ExtractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SetSessionCookie stores tokenStr in an HttpOnly cookie.
func (a *Auth) SetSessionCookie(w http.ResponseWriter, tokenStr string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    tokenStr,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie expires the session cookie.
func (a *Auth) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func sendAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{Error: msg, Code: status})
}
