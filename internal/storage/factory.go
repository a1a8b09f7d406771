package storage

import (
	"context"
	"fmt"

	"github.com/fruitsalade/explorer/internal/config"
	"github.com/fruitsalade/explorer/internal/storage/local"
	s3lister "github.com/fruitsalade/explorer/internal/storage/s3"
	"github.com/fruitsalade/explorer/internal/storage/smb"
)

// NewFromConfig creates the Lister selected by STORAGE_BACKEND.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Lister, error) {
	var (
		l   Lister
		err error
	)
	switch cfg.StorageBackend {
	case "local":
		l, err = local.New(local.Config{RootPath: cfg.LocalStoragePath, CreateDirs: cfg.LocalCreateDirs})
	case "s3":
		l, err = s3lister.New(ctx, s3lister.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	case "smb":
		l, err = smb.New(smb.Config{Server: cfg.SMBServer, MountPath: cfg.SMBMountPath})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(l), nil
}
