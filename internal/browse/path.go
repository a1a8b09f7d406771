package browse

import (
	"net/url"
	"slices"
	"strings"
)

// Path is a logical directory path as a sequence of decoded segments.
// The zero value is the root.
type Path []string

// Resolve derives the logical path from an escaped route path mounted under
// prefix. Anything that cannot be decoded, does not live under prefix, or
// decodes to a dot segment or a segment holding a slash resolves to the root.
func Resolve(routePath, prefix string) Path {
	prefix = strings.TrimSuffix(prefix, "/")
	rest, ok := strings.CutPrefix(routePath, prefix)
	if !ok || (rest != "" && rest[0] != '/') {
		return nil
	}

	var p Path
	for _, seg := range strings.Split(rest, "/") {
		if seg == "" {
			continue
		}
		dec, err := url.PathUnescape(seg)
		if err != nil || dec == "." || dec == ".." || strings.Contains(dec, "/") {
			return nil
		}
		p = append(p, dec)
	}
	return p
}

// ParsePath splits an unescaped slash separated path such as "/a/b".
func ParsePath(s string) Path {
	var p Path
	for _, seg := range strings.Split(s, "/") {
		if seg != "" {
			p = append(p, seg)
		}
	}
	return p
}

func (p Path) IsRoot() bool { return len(p) == 0 }

// String renders the path as the listing endpoint expects it: "/" at the
// root, "/a/b" below it.
func (p Path) String() string {
	return "/" + strings.Join(p, "/")
}

// Child returns a new path one level below p.
func (p Path) Child(name string) Path {
	c := make(Path, len(p), len(p)+1)
	copy(c, p)
	return append(c, name)
}

// Parent returns the path one level up. The parent of the root is the root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return slices.Clone(p[:len(p)-1])
}

func (p Path) Equal(o Path) bool { return slices.Equal(p, o) }

// Route renders the path as an escaped route below prefix.
func (p Path) Route(prefix string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(prefix, "/"))
	b.WriteByte('/')
	for i, seg := range p {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(url.PathEscape(seg))
	}
	return b.String()
}
