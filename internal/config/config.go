// Package config loads server configuration from the environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr      string        `mapstructure:"listen_addr" validate:"required"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	BrowsePrefix    string        `mapstructure:"browse_prefix" validate:"required,startswith=/,ne=/"`

	// Logging
	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=json console"`
	LogOutput string `mapstructure:"log_output"`

	// Database: postgres:// URLs use lib/pq, anything else is a SQLite file.
	DatabaseURL string `mapstructure:"database_url" validate:"required"`

	// TLS (optional, both or neither)
	TLSCertFile string `mapstructure:"tls_cert_file" validate:"required_with=TLSKeyFile"`
	TLSKeyFile  string `mapstructure:"tls_key_file" validate:"required_with=TLSCertFile"`

	// Auth
	JWTSecret string        `mapstructure:"jwt_secret" validate:"required"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" validate:"gt=0"`

	// OIDC (optional)
	OIDCIssuerURL  string `mapstructure:"oidc_issuer_url" validate:"omitempty,url"`
	OIDCClientID   string `mapstructure:"oidc_client_id" validate:"required_with=OIDCIssuerURL"`
	OIDCAdminClaim string `mapstructure:"oidc_admin_claim"`
	OIDCAdminValue string `mapstructure:"oidc_admin_value"`

	// CORS; empty allows every origin.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// Storage backend
	StorageBackend   string `mapstructure:"storage_backend" validate:"oneof=local s3 smb"`
	LocalStoragePath string `mapstructure:"local_storage_path" validate:"required_if=StorageBackend local"`
	LocalCreateDirs  bool   `mapstructure:"local_create_dirs"`
	SMBMountPath     string `mapstructure:"smb_mount_path" validate:"required_if=StorageBackend smb"`
	SMBServer        string `mapstructure:"smb_server"`

	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3Bucket    string `mapstructure:"s3_bucket" validate:"required_if=StorageBackend s3"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3Region    string `mapstructure:"s3_region"`
	S3UseSSL    bool   `mapstructure:"s3_use_ssl"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("browse_prefix", "/browse")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_output", "")

	v.SetDefault("database_url", "explorer.db")

	v.SetDefault("tls_cert_file", "")
	v.SetDefault("tls_key_file", "")

	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", 24*time.Hour)

	v.SetDefault("oidc_issuer_url", "")
	v.SetDefault("oidc_client_id", "")
	v.SetDefault("oidc_admin_claim", "is_admin")
	v.SetDefault("oidc_admin_value", "true")

	v.SetDefault("cors_allowed_origins", []string{})

	v.SetDefault("storage_backend", "local")
	v.SetDefault("local_storage_path", "/data/storage")
	v.SetDefault("local_create_dirs", false)
	v.SetDefault("smb_mount_path", "")
	v.SetDefault("smb_server", "")

	v.SetDefault("s3_endpoint", "http://localhost:9000")
	v.SetDefault("s3_bucket", "explorer")
	v.SetDefault("s3_access_key", "minioadmin")
	v.SetDefault("s3_secret_key", "minioadmin")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_use_ssl", false)
}

// Load reads configuration from environment variables (LISTEN_ADDR,
// JWT_SECRET, ...) layered over configFile, when given, and the defaults.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and reports the first failing field by its
// environment variable name.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: failed %q validation (value: %v)", envName(e.StructField()), e.Tag(), e.Value())
	}
	return fmt.Errorf("validate config: %w", err)
}

// envName maps a struct field to the variable that sets it.
func envName(field string) string {
	if f, ok := fieldEnv[field]; ok {
		return f
	}
	return field
}

var fieldEnv = map[string]string{
	"ListenAddr":       "LISTEN_ADDR",
	"ShutdownTimeout":  "SHUTDOWN_TIMEOUT",
	"BrowsePrefix":     "BROWSE_PREFIX",
	"LogLevel":         "LOG_LEVEL",
	"LogFormat":        "LOG_FORMAT",
	"DatabaseURL":      "DATABASE_URL",
	"TLSCertFile":      "TLS_CERT_FILE",
	"TLSKeyFile":       "TLS_KEY_FILE",
	"JWTSecret":        "JWT_SECRET",
	"TokenTTL":         "TOKEN_TTL",
	"OIDCIssuerURL":    "OIDC_ISSUER_URL",
	"OIDCClientID":     "OIDC_CLIENT_ID",
	"StorageBackend":   "STORAGE_BACKEND",
	"LocalStoragePath": "LOCAL_STORAGE_PATH",
	"SMBMountPath":     "SMB_MOUNT_PATH",
	"S3Bucket":         "S3_BUCKET",
}

// TLSEnabled reports whether the server should listen with HTTPS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}
