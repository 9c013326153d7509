package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds session-scoped logging context.
//
// The SFTP server attaches one LogContext per authenticated session so that
// every operation log line carries the session identity without each call
// site having to thread it through.
type LogContext struct {
	SessionID  string    // Unique session identifier
	Username   string    // Authenticated username
	RemoteAddr string    // Client address as "IP:port"
	Root       string    // Confined root prefix for the session
	StartTime  time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a session.
func NewLogContext(sessionID, username, remoteAddr string) *LogContext {
	return &LogContext{
		SessionID:  sessionID,
		Username:   username,
		RemoteAddr: remoteAddr,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithRoot returns a copy with the confined root set
func (lc *LogContext) WithRoot(root string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Root = root
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
