package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so session and
// operation logs can be aggregated and queried per user.
const (
	// Session & client identification
	KeySessionID  = "session_id"  // Unique identifier for one SSH session
	KeyUsername   = "username"    // Authenticated (or claimed) username
	KeyRemoteAddr = "remote_addr" // Client address as "IP:port"
	KeyAuthMethod = "auth_method" // Authentication method: publickey, password

	// File operations
	KeyOp      = "op"       // SFTP operation: open, list, stat, mkdir, remove, rename, setstat
	KeyPath    = "path"     // Virtual path as seen by the client
	KeyOldPath = "old_path" // Source path for rename
	KeyNewPath = "new_path" // Destination path for rename
	KeySize    = "size"     // Byte count for transfers

	// Storage backend
	KeyBackend = "backend" // Backend type: local, s3
	KeyBucket  = "bucket"  // S3 bucket name
	KeyKey     = "key"     // Object key in the bucket
	KeyRegion  = "region"  // AWS region
	KeyRoot    = "root"    // Confined root prefix for a session

	// Operation metadata
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"      // Error message
	KeyOutcome    = "outcome"    // Operation outcome: ok, denied, error
)

// Field constructors for type safety.

// SessionID returns a slog.Attr for a session identifier.
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// Username returns a slog.Attr for a username.
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// RemoteAddr returns a slog.Attr for a client address.
func RemoteAddr(addr string) slog.Attr {
	return slog.String(KeyRemoteAddr, addr)
}

// AuthMethod returns a slog.Attr for an authentication method.
func AuthMethod(method string) slog.Attr {
	return slog.String(KeyAuthMethod, method)
}

// Op returns a slog.Attr for an SFTP operation name.
func Op(op string) slog.Attr {
	return slog.String(KeyOp, op)
}

// Path returns a slog.Attr for a virtual path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// OldPath returns a slog.Attr for a rename source path.
func OldPath(p string) slog.Attr {
	return slog.String(KeyOldPath, p)
}

// NewPath returns a slog.Attr for a rename destination path.
func NewPath(p string) slog.Attr {
	return slog.String(KeyNewPath, p)
}

// Size returns a slog.Attr for a byte count.
func Size(n int64) slog.Attr {
	return slog.Int64(KeySize, n)
}

// Backend returns a slog.Attr for a backend type.
func Backend(name string) slog.Attr {
	return slog.String(KeyBackend, name)
}

// Bucket returns a slog.Attr for an S3 bucket name.
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Root returns a slog.Attr for a confined root prefix.
func Root(prefix string) slog.Attr {
	return slog.String(KeyRoot, prefix)
}

// Err returns a slog.Attr for an error, or an empty Attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}
