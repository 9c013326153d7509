package sftpd

import (
	"github.com/dataexchange/sftpgate/internal/logger"
)

// EventTracker observes gateway activity. Implementations must be safe
// for concurrent use; callbacks run on session goroutines and should
// not block.
type EventTracker interface {
	SessionOpened(username, remoteAddr string)
	SessionClosed(username, remoteAddr string)
	AuthAttempt(username, method string, success bool)
	FileOpened(username, path string)
	FileClosed(username, path string, bytesRead, bytesWritten int64)
	PathRemoved(username, path string)
	PathRenamed(username, oldPath, newPath string)
	DirCreated(username, path string)
	OperationFailed(username, op, path string, err error)
}

// LogTracker emits one structured log line per event.
type LogTracker struct{}

func NewLogTracker() *LogTracker {
	return &LogTracker{}
}

func (t *LogTracker) SessionOpened(username, remoteAddr string) {
	logger.Info("session opened", logger.Username(username), logger.RemoteAddr(remoteAddr))
}

func (t *LogTracker) SessionClosed(username, remoteAddr string) {
	logger.Info("session closed", logger.Username(username), logger.RemoteAddr(remoteAddr))
}

func (t *LogTracker) AuthAttempt(username, method string, success bool) {
	if success {
		logger.Info("authentication succeeded",
			logger.Username(username), logger.AuthMethod(method))
		return
	}
	logger.Warn("authentication failed",
		logger.Username(username), logger.AuthMethod(method))
}

func (t *LogTracker) FileOpened(username, path string) {
	logger.Debug("file opened", logger.Username(username), logger.Path(path))
}

func (t *LogTracker) FileClosed(username, path string, bytesRead, bytesWritten int64) {
	logger.Info("file closed",
		logger.Username(username), logger.Path(path),
		"bytes_read", bytesRead, "bytes_written", bytesWritten)
}

func (t *LogTracker) PathRemoved(username, path string) {
	logger.Info("path removed", logger.Username(username), logger.Path(path))
}

func (t *LogTracker) PathRenamed(username, oldPath, newPath string) {
	logger.Info("path renamed",
		logger.Username(username), logger.OldPath(oldPath), logger.NewPath(newPath))
}

func (t *LogTracker) DirCreated(username, path string) {
	logger.Info("directory created", logger.Username(username), logger.Path(path))
}

func (t *LogTracker) OperationFailed(username, op, path string, err error) {
	logger.Warn("operation failed",
		logger.Username(username), logger.Op(op), logger.Path(path), logger.Err(err))
}

// MultiTracker fans events out to several trackers in order.
type MultiTracker []EventTracker

func (m MultiTracker) SessionOpened(username, remoteAddr string) {
	for _, t := range m {
		t.SessionOpened(username, remoteAddr)
	}
}

func (m MultiTracker) SessionClosed(username, remoteAddr string) {
	for _, t := range m {
		t.SessionClosed(username, remoteAddr)
	}
}

func (m MultiTracker) AuthAttempt(username, method string, success bool) {
	for _, t := range m {
		t.AuthAttempt(username, method, success)
	}
}

func (m MultiTracker) FileOpened(username, path string) {
	for _, t := range m {
		t.FileOpened(username, path)
	}
}

func (m MultiTracker) FileClosed(username, path string, bytesRead, bytesWritten int64) {
	for _, t := range m {
		t.FileClosed(username, path, bytesRead, bytesWritten)
	}
}

func (m MultiTracker) PathRemoved(username, path string) {
	for _, t := range m {
		t.PathRemoved(username, path)
	}
}

func (m MultiTracker) PathRenamed(username, oldPath, newPath string) {
	for _, t := range m {
		t.PathRenamed(username, oldPath, newPath)
	}
}

func (m MultiTracker) DirCreated(username, path string) {
	for _, t := range m {
		t.DirCreated(username, path)
	}
}

func (m MultiTracker) OperationFailed(username, op, path string, err error) {
	for _, t := range m {
		t.OperationFailed(username, op, path, err)
	}
}

// NopTracker discards all events.
type NopTracker struct{}

func (NopTracker) SessionOpened(string, string)                  {}
func (NopTracker) SessionClosed(string, string)                  {}
func (NopTracker) AuthAttempt(string, string, bool)              {}
func (NopTracker) FileOpened(string, string)                     {}
func (NopTracker) FileClosed(string, string, int64, int64)       {}
func (NopTracker) PathRemoved(string, string)                    {}
func (NopTracker) PathRenamed(string, string, string)            {}
func (NopTracker) DirCreated(string, string)                     {}
func (NopTracker) OperationFailed(string, string, string, error) {}
