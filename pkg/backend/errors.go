package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by all backends. Implementations wrap the
// standard fs.ErrNotExist / fs.ErrExist for lookup failures so callers
// can use errors.Is uniformly.
var (
	// ErrUnsupportedAttributes is returned by Setstat on backends that
	// cannot represent POSIX attributes. With Capabilities.IgnoreSetstat
	// the confined layer swallows it; it never reaches a client.
	ErrUnsupportedAttributes = errors.New("attributes not supported by backend")

	// ErrDirNotEmpty is returned when removing a non-empty directory.
	ErrDirNotEmpty = errors.New("directory not empty")

	// ErrIsDirectory is returned when a file operation hits a directory.
	ErrIsDirectory = errors.New("is a directory")

	// ErrNotDirectory is returned when a directory operation targets a
	// regular file.
	ErrNotDirectory = errors.New("not a directory")
)

// PathEscapeError reports a virtual path that would resolve outside a
// session's confined root. Returned to the session as a rejected
// operation; never fatal to the server.
type PathEscapeError struct {
	Path string // the offending virtual path
	Root string // the confined root it tried to escape
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("path %q escapes confined root %q", e.Path, e.Root)
}

// CredentialExchangeError reports a failed role-assumption exchange.
// It surfaces on the operation that needed fresh credentials; the
// server keeps running.
type CredentialExchangeError struct {
	RoleARN string
	Err     error
}

func (e *CredentialExchangeError) Error() string {
	return fmt.Sprintf("credential exchange for role %q failed: %v", e.RoleARN, e.Err)
}

func (e *CredentialExchangeError) Unwrap() error {
	return e.Err
}
