// Package local lists directories of the local filesystem below a fixed root.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/storage/listing"
	"github.com/fruitsalade/explorer/pkg/protocol"
)

// Config holds local filesystem backend settings.
type Config struct {
	RootPath   string
	CreateDirs bool
}

// Lister serves listings from a directory tree on disk.
type Lister struct {
	root string // absolute
}

// New creates a lister rooted at cfg.RootPath.
func New(cfg Config) (*Lister, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root path is required")
	}
	root, err := filepath.Abs(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("resolve root path %s: %w", cfg.RootPath, err)
	}

	info, err := os.Stat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist) && cfg.CreateDirs:
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, fmt.Errorf("create root path %s: %w", root, err)
		}
		logging.Info("created storage root", logging.String("path", root))
	case err != nil:
		return nil, fmt.Errorf("stat root path %s: %w", root, err)
	case !info.IsDir():
		return nil, fmt.Errorf("root path %s is not a directory", root)
	}

	// Containment checks compare resolved paths.
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path %s: %w", root, err)
	}
	return &Lister{root: resolved}, nil
}

func (l *Lister) Type() string { return "local" }
func (l *Lister) Close() error { return nil }

// resolve maps a logical path to a filesystem path inside the root.
func (l *Lister) resolve(p string) (string, string, error) {
	clean, err := listing.Clean(p)
	if err != nil {
		return "", "", err
	}
	full, err := filepath.Abs(filepath.Join(l.root, filepath.FromSlash(clean)))
	if err != nil {
		return "", "", err
	}
	// Anything escaping the root, directly or through a symlink, is
	// reported as missing.
	if !isSubpath(l.root, full) {
		return "", "", listing.ErrNotFound
	}
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", listing.ErrNotFound
		}
		return "", "", fmt.Errorf("resolve %s: %w", clean, err)
	}
	if !isSubpath(l.root, resolved) {
		return "", "", listing.ErrNotFound
	}
	return clean, resolved, nil
}

// List reads the direct children of p.
func (l *Lister) List(ctx context.Context, p string) (*protocol.BrowseResponse, error) {
	clean, full, err := l.resolve(p)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, listing.ErrNotFound
		}
		return nil, fmt.Errorf("stat %s: %w", clean, err)
	}
	if !info.IsDir() {
		return nil, listing.ErrNotDir
	}

	entries, err := l.readDir(ctx, full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", clean, err)
	}
	return listing.Response(clean, entries), nil
}

// readDir lists one level of dir with fastwalk. Symlinks report their
// target's kind and size and are hidden when the target lies outside the
// root; broken ones fall back to the link itself.
func (l *Lister) readDir(ctx context.Context, dir string) ([]protocol.FileInfo, error) {
	var (
		mu     sync.Mutex
		result = []protocol.FileInfo{}
	)

	err := fastwalk.Walk(&fastwalk.Config{Follow: false}, dir, func(fullPath string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if fullPath == dir {
			return err
		}
		if err != nil {
			logging.Debug("skipping unreadable entry", logging.String("path", fullPath), logging.Err(err))
			return nil
		}

		rel := strings.TrimPrefix(fullPath[len(dir):], string(filepath.Separator))
		if strings.ContainsRune(rel, filepath.Separator) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !l.contains(fullPath) {
			logging.Debug("hiding symlink outside root", logging.String("path", fullPath))
			return nil
		}

		info, err := fastwalk.StatDirEntry(fullPath, d)
		if err != nil {
			info, err = os.Lstat(fullPath)
			if err != nil {
				return nil
			}
		}

		kind := protocol.TypeFile
		if info.IsDir() {
			kind = protocol.TypeDir
		}
		mu.Lock()
		result = append(result, protocol.FileInfo{Name: d.Name(), Type: kind, Size: info.Size()})
		mu.Unlock()

		if d.IsDir() {
			return fastwalk.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// fastwalk visits in parallel; restore a stable order.
	slices.SortFunc(result, func(a, b protocol.FileInfo) int { return strings.Compare(a.Name, b.Name) })
	return result, nil
}

// contains reports whether the symlink at p resolves inside the root.
// Broken links stay listed as themselves.
func (l *Lister) contains(p string) bool {
	target, err := filepath.EvalSymlinks(p)
	if err != nil {
		return true
	}
	return isSubpath(l.root, target)
}

// isSubpath reports whether child is parent or lies below it.
func isSubpath(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
