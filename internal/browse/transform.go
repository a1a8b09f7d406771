package browse

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// RootLabel is the label of the first breadcrumb.
const RootLabel = "root"

// Filter keeps the entries whose name contains text, ignoring case.
// The result never aliases entries.
func Filter(entries []Entry, text string) []Entry {
	if text == "" {
		return slices.Clone(entries)
	}
	needle := strings.ToLower(text)
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			out = append(out, e)
		}
	}
	return out
}

// Sorted returns a stably sorted copy of entries.
func Sorted(entries []Entry, field SortField, dir SortDirection) []Entry {
	out := slices.Clone(entries)
	sortInPlace(out, field, dir)
	return out
}

func sortInPlace(entries []Entry, field SortField, dir SortDirection) {
	var compare func(a, b Entry) int
	switch field {
	case SortName:
		// Collator keeps scratch buffers, one per call.
		col := collate.New(language.Und)
		compare = func(a, b Entry) int { return col.CompareString(a.Name, b.Name) }
	case SortSize:
		compare = func(a, b Entry) int { return cmp.Compare(a.Size, b.Size) }
	default:
		compare = func(a, b Entry) int { return strings.Compare(string(a.Kind), string(b.Kind)) }
	}

	if dir == Desc {
		asc := compare
		compare = func(a, b Entry) int { return -asc(a, b) }
	}
	slices.SortStableFunc(entries, compare)
}

// Display derives the list to render: filter first, then sort.
func Display(l *Listing, v ViewState) []Entry {
	if l == nil {
		return nil
	}
	out := Filter(l.Entries, v.Filter)
	sortInPlace(out, v.Sort, v.Direction)
	return out
}

// Crumb is one element of the breadcrumb trail.
type Crumb struct {
	Label     string
	Path      Path
	Navigable bool
}

// Breadcrumbs returns len(p)+1 crumbs: the root, then one per segment.
// The crumb for the current directory is never navigable.
func Breadcrumbs(p Path) []Crumb {
	crumbs := make([]Crumb, 0, len(p)+1)
	crumbs = append(crumbs, Crumb{Label: RootLabel, Path: Path{}, Navigable: len(p) > 0})
	for i, seg := range p {
		crumbs = append(crumbs, Crumb{
			Label:     seg,
			Path:      slices.Clone(p[:i+1]),
			Navigable: i < len(p)-1,
		})
	}
	return crumbs
}

// FormatSize renders a byte count in B, KB or MB.
func FormatSize(n int64) string {
	const kb = 1024
	switch {
	case n < kb:
		return fmt.Sprintf("%d B", n)
	case n < kb*kb:
		return fmt.Sprintf("%.1f KB", float64(n)/kb)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(kb*kb))
	}
}
