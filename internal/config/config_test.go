package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.StorageBackend != "local" {
		t.Errorf("StorageBackend = %q, want local", cfg.StorageBackend)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h", cfg.TokenTTL)
	}
	if cfg.BrowsePrefix != "/browse" {
		t.Errorf("BrowsePrefix = %q, want /browse", cfg.BrowsePrefix)
	}
	if cfg.TLSEnabled() {
		t.Error("TLS should be disabled by default")
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
	if !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Errorf("error %q should name JWT_SECRET", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("LISTEN_ADDR", ":7000")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("LOCAL_CREATE_DIRS", "true")
	t.Setenv("SMB_SERVER", "//nas/share")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7000" {
		t.Errorf("ListenAddr = %q, want :7000", cfg.ListenAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.TokenTTL != 2*time.Hour {
		t.Errorf("TokenTTL = %v, want 2h", cfg.TokenTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.LocalCreateDirs || cfg.SMBServer != "//nas/share" {
		t.Errorf("LocalCreateDirs = %v, SMBServer = %q", cfg.LocalCreateDirs, cfg.SMBServer)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad backend", map[string]string{"STORAGE_BACKEND": "ftp"}, "STORAGE_BACKEND"},
		{"smb without mount", map[string]string{"STORAGE_BACKEND": "smb"}, "SMB_MOUNT_PATH"},
		{"cert without key", map[string]string{"TLS_CERT_FILE": "cert.pem"}, "TLS_KEY_FILE"},
		{"relative prefix", map[string]string{"BROWSE_PREFIX": "browse"}, "BROWSE_PREFIX"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "s")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %s", err, tt.want)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("METRICS_ADDR", ":9191")

	path := filepath.Join(t.TempDir(), "explorer.yaml")
	data := "metrics_addr: \":9999\"\nstorage_backend: s3\ns3_bucket: listings\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorageBackend != "s3" || cfg.S3Bucket != "listings" {
		t.Errorf("backend = %q bucket = %q", cfg.StorageBackend, cfg.S3Bucket)
	}
	if cfg.MetricsAddr != ":9191" {
		t.Errorf("MetricsAddr = %q, env should win over file", cfg.MetricsAddr)
	}
}
