// Package local implements a backend on top of a directory of the host
// filesystem. Backend paths are slash separated and rooted at the
// configured base folder; translation to the native separator happens
// here and nowhere else.
package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dataexchange/sftpgate/pkg/backend"
)

// Store serves files from a base folder on local disk.
type Store struct {
	base string
}

// New creates a local store rooted at baseFolder, creating the folder
// if it does not exist yet.
func New(baseFolder string) (*Store, error) {
	abs, err := filepath.Abs(baseFolder)
	if err != nil {
		return nil, fmt.Errorf("resolving base folder %q: %w", baseFolder, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating base folder %q: %w", abs, err)
	}
	return &Store{base: abs}, nil
}

func (s *Store) Name() string {
	return "local"
}

func (s *Store) Capabilities() backend.Capabilities {
	return backend.Capabilities{}
}

func (s *Store) Join(elem ...string) string {
	return path.Join(elem...)
}

func (s *Store) Clean(p string) string {
	return path.Clean(p)
}

// native translates a rooted backend path to a host filesystem path.
func (s *Store) native(p string) string {
	rel := strings.TrimPrefix(path.Clean("/"+p), "/")
	if rel == "" {
		return s.base
	}
	return filepath.Join(s.base, filepath.FromSlash(rel))
}

func (s *Store) Open(_ context.Context, p string) (backend.File, error) {
	f, err := os.Open(s.native(p))
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) Create(_ context.Context, p string) (backend.File, error) {
	native := s.native(p)
	if err := os.MkdirAll(filepath.Dir(native), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(native, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) Stat(_ context.Context, p string) (fs.FileInfo, error) {
	return os.Stat(s.native(p))
}

func (s *Store) List(_ context.Context, p string) ([]fs.FileInfo, error) {
	entries, err := os.ReadDir(s.native(p))
	if err != nil {
		return nil, err
	}
	infos := make([]fs.FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			// Entry vanished between the listing and the stat.
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (s *Store) Mkdir(_ context.Context, p string) error {
	return os.Mkdir(s.native(p), 0o755)
}

func (s *Store) Remove(_ context.Context, p string) error {
	native := s.native(p)
	info, err := os.Stat(native)
	if err != nil {
		return err
	}
	if info.IsDir() {
		entries, err := os.ReadDir(native)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			return fmt.Errorf("removing %q: %w", p, backend.ErrDirNotEmpty)
		}
	}
	return os.Remove(native)
}

func (s *Store) Rename(_ context.Context, oldPath, newPath string) error {
	return os.Rename(s.native(oldPath), s.native(newPath))
}

func (s *Store) Setstat(_ context.Context, p string, attr *backend.FileAttributes) error {
	if attr == nil {
		return nil
	}
	native := s.native(p)

	if attr.Mode != nil {
		if err := os.Chmod(native, attr.Mode.Perm()); err != nil {
			return err
		}
	}
	if attr.Size != nil {
		if err := os.Truncate(native, int64(*attr.Size)); err != nil {
			return err
		}
	}
	if attr.UID != nil && attr.GID != nil {
		if err := os.Chown(native, int(*attr.UID), int(*attr.GID)); err != nil {
			return err
		}
	}
	if attr.AccessTime != nil && attr.ModTime != nil {
		if err := os.Chtimes(native, *attr.AccessTime, *attr.ModTime); err != nil {
			return err
		}
	}
	return nil
}
