// Package listing holds what every storage backend shares: the error
// vocabulary, logical path cleaning and response assembly.
package listing

import (
	"errors"
	"path"
	"strings"

	"github.com/fruitsalade/explorer/pkg/protocol"
)

var (
	ErrNotFound    = errors.New("path not found")
	ErrNotDir      = errors.New("path is not a directory")
	ErrInvalidPath = errors.New("invalid path")
)

// Clean normalizes a logical path. Empty means the root. The result always
// starts with "/" and never climbs above it.
func Clean(p string) (string, error) {
	if p == "" {
		return "/", nil
	}
	if !strings.HasPrefix(p, "/") || strings.ContainsRune(p, 0) {
		return "", ErrInvalidPath
	}
	return path.Clean(p), nil
}

// Response builds the listing for dir. The directory size is the sum of its
// entry sizes.
func Response(dir string, entries []protocol.FileInfo) *protocol.BrowseResponse {
	if entries == nil {
		entries = []protocol.FileInfo{}
	}
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return &protocol.BrowseResponse{
		Name:     path.Base(dir),
		Type:     protocol.TypeDir,
		Size:     total,
		Contents: entries,
	}
}
