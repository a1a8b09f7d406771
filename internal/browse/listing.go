// Package browse reconciles a route path, its query string and a fetched
// directory listing into one navigable view.
//
// The Controller owns the only mutable state: the current path, the view
// state mirrored into the query string, and the last applied listing. The
// display list and breadcrumbs are recomputed from those on every View call.
package browse

import (
	"errors"
	"fmt"

	"github.com/fruitsalade/explorer/pkg/protocol"
)

// Kind is the type of a directory entry.
type Kind string

const (
	KindDir  Kind = protocol.TypeDir
	KindFile Kind = protocol.TypeFile
)

// Entry is one immutable item of a listing.
type Entry struct {
	Name string
	Kind Kind
	Size int64
}

// IsDir reports whether the entry can be opened.
func (e Entry) IsDir() bool { return e.Kind == KindDir }

// Listing is the server's answer for one path.
type Listing struct {
	Name    string
	Kind    Kind
	Size    int64
	Entries []Entry
}

// ErrMalformed marks a listing response that does not have the expected shape.
var ErrMalformed = errors.New("malformed directory listing")

// FromResponse converts a wire response into a Listing, rejecting anything
// that is not a directory made of dir and file entries.
func FromResponse(r *protocol.BrowseResponse) (*Listing, error) {
	if r == nil {
		return nil, ErrMalformed
	}
	if r.Type != protocol.TypeDir {
		return nil, fmt.Errorf("%w: type %q", ErrMalformed, r.Type)
	}

	l := &Listing{
		Name:    r.Name,
		Kind:    KindDir,
		Size:    r.Size,
		Entries: make([]Entry, 0, len(r.Contents)),
	}
	for _, c := range r.Contents {
		k := Kind(c.Type)
		if k != KindDir && k != KindFile {
			return nil, fmt.Errorf("%w: entry %q has type %q", ErrMalformed, c.Name, c.Type)
		}
		if c.Size < 0 {
			return nil, fmt.Errorf("%w: entry %q has negative size", ErrMalformed, c.Name)
		}
		l.Entries = append(l.Entries, Entry{Name: c.Name, Kind: k, Size: c.Size})
	}
	return l, nil
}
