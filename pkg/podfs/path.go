package podfs

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Path addresses a location in the device's file tree. It is a pure
// value: construction and manipulation never touch the network, and a
// Path carries no connection state. Forward slashes separate
// components; a leading slash marks an absolute path.
//
// Paths are kept normalized: "." components collapse and ".."
// components resolve lexically, clamping at the root ("/.." is "/")
// while surviving at the front of relative paths ("../x" stays).
// Compare with Equal; the zero value and ParsePath(".") are Equal but
// not ==.
//
// The zero Path is ".", the relative current location.
type Path struct {
	s string
}

// ParsePath normalizes raw into a Path. Every string parses; there is
// no error case, only lexical cleanup.
func ParsePath(raw string) Path {
	return Path{s: path.Clean(raw)}
}

func (p Path) str() string {
	if p.s == "" {
		return "."
	}
	return p.s
}

// String renders the normalized path. ParsePath(p.String()) == p.
func (p Path) String() string {
	return p.str()
}

// IsAbs reports whether the path is anchored at the device root.
func (p Path) IsAbs() bool {
	return strings.HasPrefix(p.str(), "/")
}

// IsRoot reports whether the path is exactly the device root.
func (p Path) IsRoot() bool {
	return p.str() == "/"
}

// Join appends parts and renormalizes. A part may carry several
// components ("a/b"); an absolute part restarts the path from the
// root, discarding everything before it.
func (p Path) Join(parts ...string) Path {
	s := p.str()
	for _, part := range parts {
		switch {
		case part == "":
		case strings.HasPrefix(part, "/"):
			s = part
		default:
			s = s + "/" + part
		}
	}
	return ParsePath(s)
}

// Parent returns the path with its final component removed. The parent
// of the root is the root; the parent of "." is ".".
func (p Path) Parent() Path {
	return ParsePath(path.Dir(p.str()))
}

// Name returns the final path component, or "" when there is none
// (the root and ".").
func (p Path) Name() string {
	parts := p.Parts()
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// WithName returns a path whose final component is replaced by name.
func (p Path) WithName(name string) (Path, error) {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return Path{}, fmt.Errorf("podfs: invalid path component %q", name)
	}
	if len(p.Parts()) == 0 {
		return Path{}, fmt.Errorf("podfs: path %q has no name to replace", p)
	}
	return p.Parent().Join(name), nil
}

// Parts returns the path's components, without a root marker. The root
// and "." decompose to none.
func (p Path) Parts() []string {
	s := strings.TrimPrefix(p.str(), "/")
	if s == "" || s == "." {
		return nil
	}
	return strings.Split(s, "/")
}

// Equal reports whether two paths have the same normalized form.
func (p Path) Equal(q Path) bool {
	return p.str() == q.str()
}

// Compare orders paths by their component sequences, absolute before
// relative. The result is deterministic for sorting directory
// listings: a parent always sorts before the paths beneath it.
func (p Path) Compare(q Path) int {
	if pa, qa := p.IsAbs(), q.IsAbs(); pa != qa {
		if pa {
			return -1
		}
		return 1
	}
	pp, qp := p.Parts(), q.Parts()
	for i := 0; i < len(pp) && i < len(qp); i++ {
		if c := strings.Compare(pp[i], qp[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(pp) < len(qp):
		return -1
	case len(pp) > len(qp):
		return 1
	default:
		return 0
	}
}

// Less reports whether p orders before q. See Compare.
func (p Path) Less(q Path) bool {
	return p.Compare(q) < 0
}

// Resolve stats the path against the device. This is the only Path
// operation that performs network IO.
func (p Path) Resolve(ctx context.Context, c *Client) (Entry, error) {
	return c.Stat(ctx, p)
}
