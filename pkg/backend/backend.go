// Package backend defines the storage abstraction the gateway serves
// files from. Two implementations exist: local disk (backend/local) and
// S3 object storage (backend/s3). All paths crossing this interface are
// slash-separated and rooted at the backend's own root; translation to
// native form (OS paths, object keys) happens inside each implementation.
package backend

import (
	"context"
	"io"
	"io/fs"
	"time"
)

// File is an open handle for reading or writing.
//
// ReaderAt/WriterAt rather than streaming interfaces: the SFTP protocol
// addresses file content by offset, and both backends can serve that
// directly (the local backend from the OS file, the S3 backend from a
// buffered object).
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
}

// Capabilities declares what a backend cannot represent, so the layers
// above can negotiate behavior instead of surfacing spurious errors.
type Capabilities struct {
	// IgnoreSetstat reports that attribute changes (mode, ownership,
	// times) are not representable and must be accepted as no-ops.
	// Declared by the S3 backend: generic SFTP clients routinely chmod
	// after upload and must not see that fail.
	IgnoreSetstat bool
}

// FileAttributes carries the attribute subset a Setstat may change.
// Nil fields are left untouched.
type FileAttributes struct {
	Size       *uint64
	Mode       *fs.FileMode
	UID, GID   *uint32
	AccessTime *time.Time
	ModTime    *time.Time
}

// Backend is the uniform file-tree contract over one storage medium.
//
// Implementations must be safe for concurrent use by multiple sessions.
type Backend interface {
	// Name identifies the backend type: "local" or "s3".
	Name() string

	// Capabilities declares backend-specific limits.
	Capabilities() Capabilities

	// Join joins path elements with the backend's separator semantics
	// and normalizes the result.
	Join(elem ...string) string

	// Clean lexically normalizes a path (resolves "." and "..").
	Clean(path string) string

	// Open opens an existing file for reading.
	Open(ctx context.Context, path string) (File, error)

	// Create opens a file for writing, creating or truncating it.
	Create(ctx context.Context, path string) (File, error)

	// Stat returns file info for the path.
	Stat(ctx context.Context, path string) (fs.FileInfo, error)

	// List returns the entries of a directory.
	List(ctx context.Context, path string) ([]fs.FileInfo, error)

	// Mkdir creates a single directory level.
	Mkdir(ctx context.Context, path string) error

	// Remove deletes a file or an empty directory.
	Remove(ctx context.Context, path string) error

	// Rename moves a file or directory.
	Rename(ctx context.Context, oldPath, newPath string) error

	// Setstat applies attribute changes. Backends that cannot represent
	// them return ErrUnsupportedAttributes and set IgnoreSetstat.
	Setstat(ctx context.Context, path string, attr *FileAttributes) error
}

// ReadFile reads a whole file through a backend. Used for small control
// files such as the persisted host key.
func ReadFile(ctx context.Context, b Backend, path string) ([]byte, error) {
	info, err := b.Stat(ctx, path)
	if err != nil {
		return nil, err
	}

	f, err := b.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data := make([]byte, info.Size())
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, info.Size()), data); err != nil {
		return nil, err
	}
	return data, nil
}

// WriteFile writes a whole file through a backend.
func WriteFile(ctx context.Context, b Backend, path string, data []byte) error {
	f, err := b.Create(ctx, path)
	if err != nil {
		return err
	}

	if _, err := f.WriteAt(data, 0); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
