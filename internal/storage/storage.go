// Package storage defines the Lister interface for directory listing
// backends and the factory that selects one from configuration.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/metrics"
	"github.com/fruitsalade/explorer/internal/storage/listing"
	"github.com/fruitsalade/explorer/pkg/protocol"
)

// Errors returned by every Lister.
var (
	ErrNotFound    = listing.ErrNotFound
	ErrNotDir      = listing.ErrNotDir
	ErrInvalidPath = listing.ErrInvalidPath
)

// Lister lists one directory level of a storage backend.
// Implementations handle the local filesystem, S3 buckets and SMB mounts.
type Lister interface {
	// List returns the direct children of the logical path p ("/" is the root).
	List(ctx context.Context, p string) (*protocol.BrowseResponse, error)

	// Type returns the backend type identifier ("local", "s3", "smb").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}

// instrumented records metrics and logs around another Lister.
type instrumented struct {
	Lister
}

// Instrument wraps l so every listing is counted and timed.
func Instrument(l Lister) Lister {
	if _, ok := l.(*instrumented); ok {
		return l
	}
	return &instrumented{Lister: l}
}

func (i *instrumented) List(ctx context.Context, p string) (*protocol.BrowseResponse, error) {
	start := time.Now()
	resp, err := i.Lister.List(ctx, p)

	entries := 0
	if resp != nil {
		entries = len(resp.Contents)
	}
	metrics.RecordListing(i.Type(), outcome(err), entries, time.Since(start))
	if err != nil && outcome(err) == "error" {
		logging.WithContext(ctx).Error("directory listing failed",
			logging.String("backend", i.Type()),
			logging.String("path", p),
			logging.Err(err),
		)
	}
	return resp, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotDir):
		return "not_dir"
	case errors.Is(err, ErrInvalidPath):
		return "invalid"
	default:
		return "error"
	}
}
