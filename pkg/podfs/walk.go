package podfs

import (
	"context"
	"iter"
)

// Walk traverses the tree under root depth-first, yielding each entry
// before any of its children. root itself is not yielded; symlinks are
// reported but never followed. A directory that fails to list yields a
// zero Entry with the error, and the walk moves on to its siblings
// unless the consumer stops.
func (c *Client) Walk(ctx context.Context, root Path) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		c.walk(ctx, root, yield)
	}
}

func (c *Client) walk(ctx context.Context, dir Path, yield func(Entry, error) bool) bool {
	entries, err := c.List(ctx, dir)
	if err != nil {
		return yield(Entry{}, err)
	}
	for _, e := range entries {
		if !yield(e, nil) {
			return false
		}
		if e.IsDir() && !c.walk(ctx, e.Path, yield) {
			return false
		}
	}
	return true
}
