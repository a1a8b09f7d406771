// Package smb lists an SMB/CIFS network share.
// The share must be pre-mounted on the OS (via mount.cifs or fstab); listing
// delegates to the local lister at the mount path.
package smb

import (
	"fmt"

	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/storage/local"
)

// Config holds SMB backend settings. Server only identifies the share in logs.
type Config struct {
	Server    string // e.g. //fileserver/share
	MountPath string
}

// Lister wraps a local.Lister at the SMB mount point.
type Lister struct {
	*local.Lister
}

// New creates an SMB lister. The mount point must already exist.
func New(cfg Config) (*Lister, error) {
	if cfg.MountPath == "" {
		return nil, fmt.Errorf("mount path is required")
	}

	lb, err := local.New(local.Config{RootPath: cfg.MountPath})
	if err != nil {
		return nil, fmt.Errorf("smb share at %s: %w", cfg.MountPath, err)
	}

	logging.Info("smb share ready",
		logging.String("server", cfg.Server),
		logging.String("mount", cfg.MountPath))
	return &Lister{Lister: lb}, nil
}

// Type returns "smb".
func (l *Lister) Type() string { return "smb" }
