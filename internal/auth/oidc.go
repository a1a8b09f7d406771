package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/fruitsalade/explorer/internal/logging"
)

// OIDCConfig holds OIDC provider configuration.
type OIDCConfig struct {
	IssuerURL  string
	ClientID   string
	AdminClaim string // default "is_admin"
	AdminValue string // default "true"
}

// OIDCProvider verifies OIDC ID tokens and maps them to local users.
type OIDCProvider struct {
	verifier *oidc.IDTokenVerifier
	config   OIDCConfig
	auth     *Auth
}

// NewOIDCProvider returns nil, nil when IssuerURL is empty.
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig, a *Auth) (*OIDCProvider, error) {
	if cfg.IssuerURL == "" {
		return nil, nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider init: %w", err)
	}

	p := newOIDCProvider(provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}), cfg, a)
	logging.Info("OIDC provider initialized",
		zap.String("issuer", cfg.IssuerURL),
		zap.String("client_id", cfg.ClientID))
	return p, nil
}

func newOIDCProvider(v *oidc.IDTokenVerifier, cfg OIDCConfig, a *Auth) *OIDCProvider {
	if cfg.AdminClaim == "" {
		cfg.AdminClaim = "is_admin"
	}
	if cfg.AdminValue == "" {
		cfg.AdminValue = "true"
	}
	return &OIDCProvider{verifier: v, config: cfg, auth: a}
}

// SetOIDCProvider enables the OIDC fallback in Verify.
func (a *Auth) SetOIDCProvider(p *OIDCProvider) {
	a.oidc = p
}

// ValidateToken verifies tokenStr as an ID token. The local user is created
// on first sight.
func (o *OIDCProvider) ValidateToken(ctx context.Context, tokenStr string) (*Claims, error) {
	idToken, err := o.verifier.Verify(ctx, tokenStr)
	if err != nil {
		return nil, err
	}

	var std struct {
		Sub               string `json:"sub"`
		PreferredUsername string `json:"preferred_username"`
		Email             string `json:"email"`
	}
	if err := idToken.Claims(&std); err != nil {
		return nil, fmt.Errorf("parse oidc claims: %w", err)
	}

	username := std.PreferredUsername
	if username == "" {
		username = std.Email
	}
	if username == "" {
		username = std.Sub
	}

	var raw map[string]interface{}
	_ = idToken.Claims(&raw)
	isAdmin := o.isAdmin(raw)

	userID, err := o.ensureUser(ctx, username, isAdmin)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	return &Claims{
		UserID:   userID,
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: std.Sub,
			Issuer:  idToken.Issuer,
		},
	}, nil
}

func (o *OIDCProvider) isAdmin(raw map[string]interface{}) bool {
	val, ok := raw[o.config.AdminClaim]
	return ok && fmt.Sprintf("%v", val) == o.config.AdminValue
}

func (o *OIDCProvider) ensureUser(ctx context.Context, username string, isAdmin bool) (int, error) {
	db := o.auth.db

	var userID int
	err := db.QueryRowContext(ctx,
		db.Rebind(`SELECT id FROM users WHERE username = ?`), username).Scan(&userID)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	// The password column is unusable for bcrypt, so local login stays closed.
	err = db.QueryRowContext(ctx,
		db.Rebind(`INSERT INTO users (username, password, is_admin) VALUES (?, ?, ?) RETURNING id`),
		username, "oidc-managed", isAdmin).Scan(&userID)
	if err != nil {
		return 0, fmt.Errorf("create oidc user: %w", err)
	}

	logging.Info("auto-created OIDC user", zap.String("username", username), zap.Bool("is_admin", isAdmin))
	return userID, nil
}
