package backend

import (
	"context"
	"io/fs"
	"strings"
)

// ConfinedFS is the per-session view of a backend, restricted to a root
// prefix. Every operation takes a virtual path relative to that root,
// validates it, translates it, and delegates to the wrapped backend.
//
// The wrapper holds no mutable state beyond the root and the backend
// reference: it is cheap to construct per session and safe to use from
// that session's goroutines.
type ConfinedFS struct {
	backend Backend
	root    string
}

// Confine wraps a backend in a view restricted to rootPrefix.
// rootPrefix is a backend path ("/alice" for local mode, a key prefix
// for S3); the backend's own Join primitive is used for translation, so
// no native separator semantics are assumed here.
func Confine(b Backend, rootPrefix string) *ConfinedFS {
	return &ConfinedFS{
		backend: b,
		root:    b.Clean(rootPrefix),
	}
}

// Root returns the confined root prefix.
func (c *ConfinedFS) Root() string {
	return c.root
}

// Backend returns the wrapped backend.
func (c *ConfinedFS) Backend() Backend {
	return c.backend
}

// Resolve validates a virtual path and translates it to a backend path.
// A path whose lexical normalization would climb above the root yields a
// PathEscapeError; the translated result is always a descendant of the
// root (or the root itself).
func (c *ConfinedFS) Resolve(virtual string) (string, error) {
	if escapes(virtual) {
		return "", &PathEscapeError{Path: virtual, Root: c.root}
	}

	// Normalize against a synthetic root so "a/../b" and "/a/../b"
	// resolve the same way, then strip it back off for the join.
	norm := c.backend.Clean("/" + strings.TrimPrefix(virtual, "/"))
	rel := strings.TrimPrefix(norm, "/")
	if rel == "" {
		return c.root, nil
	}

	full := c.backend.Join(c.root, rel)

	// Defense in depth: the lexical walk above already rejected escapes,
	// but the translated path must still sit under the root.
	rootPrefix := c.root + "/"
	if c.root == "/" {
		rootPrefix = "/"
	}
	if full != c.root && !strings.HasPrefix(full, rootPrefix) {
		return "", &PathEscapeError{Path: virtual, Root: c.root}
	}
	return full, nil
}

// escapes walks the path segments and reports whether ".." ever climbs
// above the starting point.
func escapes(virtual string) bool {
	depth := 0
	for _, seg := range strings.Split(strings.TrimPrefix(virtual, "/"), "/") {
		switch seg {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return true
			}
		default:
			depth++
		}
	}
	return false
}

// Capabilities exposes the wrapped backend's capability declaration.
func (c *ConfinedFS) Capabilities() Capabilities {
	return c.backend.Capabilities()
}

// Open opens a file for reading.
func (c *ConfinedFS) Open(ctx context.Context, virtual string) (File, error) {
	p, err := c.Resolve(virtual)
	if err != nil {
		return nil, err
	}
	return c.backend.Open(ctx, p)
}

// Create opens a file for writing.
func (c *ConfinedFS) Create(ctx context.Context, virtual string) (File, error) {
	p, err := c.Resolve(virtual)
	if err != nil {
		return nil, err
	}
	return c.backend.Create(ctx, p)
}

// Stat returns file info.
func (c *ConfinedFS) Stat(ctx context.Context, virtual string) (fs.FileInfo, error) {
	p, err := c.Resolve(virtual)
	if err != nil {
		return nil, err
	}
	return c.backend.Stat(ctx, p)
}

// List returns directory entries.
func (c *ConfinedFS) List(ctx context.Context, virtual string) ([]fs.FileInfo, error) {
	p, err := c.Resolve(virtual)
	if err != nil {
		return nil, err
	}
	return c.backend.List(ctx, p)
}

// Mkdir creates a directory.
func (c *ConfinedFS) Mkdir(ctx context.Context, virtual string) error {
	p, err := c.Resolve(virtual)
	if err != nil {
		return err
	}
	return c.backend.Mkdir(ctx, p)
}

// Remove deletes a file or empty directory.
func (c *ConfinedFS) Remove(ctx context.Context, virtual string) error {
	p, err := c.Resolve(virtual)
	if err != nil {
		return err
	}
	return c.backend.Remove(ctx, p)
}

// Rename moves a file or directory. Both endpoints are validated; a
// rename cannot be used to smuggle content across roots.
func (c *ConfinedFS) Rename(ctx context.Context, oldVirtual, newVirtual string) error {
	oldPath, err := c.Resolve(oldVirtual)
	if err != nil {
		return err
	}
	newPath, err := c.Resolve(newVirtual)
	if err != nil {
		return err
	}
	return c.backend.Rename(ctx, oldPath, newPath)
}

// Setstat applies attribute changes. When the backend declares
// IgnoreSetstat the change is accepted as a no-op: this is the
// compatibility policy for object stores, not an error.
func (c *ConfinedFS) Setstat(ctx context.Context, virtual string, attr *FileAttributes) error {
	p, err := c.Resolve(virtual)
	if err != nil {
		return err
	}
	if c.backend.Capabilities().IgnoreSetstat {
		return nil
	}
	return c.backend.Setstat(ctx, p, attr)
}
