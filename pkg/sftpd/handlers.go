package sftpd

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/sftp"

	"github.com/dataexchange/sftpgate/internal/logger"
	"github.com/dataexchange/sftpgate/pkg/backend"
)

// sessionHandlers bridges one authenticated session's requests onto
// its confined filesystem view.
type sessionHandlers struct {
	ctx      context.Context
	fs       *backend.ConfinedFS
	username string
	tracker  EventTracker
}

func newSessionHandlers(ctx context.Context, cfs *backend.ConfinedFS, username string, tracker EventTracker) sftp.Handlers {
	h := &sessionHandlers{
		ctx:      ctx,
		fs:       cfs,
		username: username,
		tracker:  tracker,
	}
	return sftp.Handlers{
		FileGet:  h,
		FilePut:  h,
		FileCmd:  h,
		FileList: h,
	}
}

func (h *sessionHandlers) Fileread(r *sftp.Request) (io.ReaderAt, error) {
	f, err := h.fs.Open(h.ctx, r.Filepath)
	if err != nil {
		return nil, h.mapError("open", r.Filepath, err)
	}
	h.tracker.FileOpened(h.username, r.Filepath)
	return &trackedFile{file: f, handlers: h, path: r.Filepath}, nil
}

func (h *sessionHandlers) Filewrite(r *sftp.Request) (io.WriterAt, error) {
	f, err := h.fs.Create(h.ctx, r.Filepath)
	if err != nil {
		return nil, h.mapError("create", r.Filepath, err)
	}
	h.tracker.FileOpened(h.username, r.Filepath)
	return &trackedFile{file: f, handlers: h, path: r.Filepath}, nil
}

func (h *sessionHandlers) Filecmd(r *sftp.Request) error {
	switch r.Method {
	case "Setstat":
		attr := requestAttributes(r)
		if err := h.fs.Setstat(h.ctx, r.Filepath, attr); err != nil {
			return h.mapError("setstat", r.Filepath, err)
		}
		return nil

	case "Rename", "PosixRename":
		if err := h.fs.Rename(h.ctx, r.Filepath, r.Target); err != nil {
			return h.mapError("rename", r.Filepath, err)
		}
		h.tracker.PathRenamed(h.username, r.Filepath, r.Target)
		return nil

	case "Mkdir":
		if err := h.fs.Mkdir(h.ctx, r.Filepath); err != nil {
			return h.mapError("mkdir", r.Filepath, err)
		}
		h.tracker.DirCreated(h.username, r.Filepath)
		return nil

	case "Rmdir", "Remove":
		if err := h.fs.Remove(h.ctx, r.Filepath); err != nil {
			return h.mapError("remove", r.Filepath, err)
		}
		h.tracker.PathRemoved(h.username, r.Filepath)
		return nil

	case "Link", "Symlink":
		return sftp.ErrSSHFxOpUnsupported

	default:
		return sftp.ErrSSHFxOpUnsupported
	}
}

func (h *sessionHandlers) Filelist(r *sftp.Request) (sftp.ListerAt, error) {
	switch r.Method {
	case "List":
		infos, err := h.fs.List(h.ctx, r.Filepath)
		if err != nil {
			return nil, h.mapError("list", r.Filepath, err)
		}
		return listerAt(infos), nil

	case "Stat", "Lstat":
		info, err := h.fs.Stat(h.ctx, r.Filepath)
		if err != nil {
			return nil, h.mapError("stat", r.Filepath, err)
		}
		return listerAt{info}, nil

	case "Readlink":
		return nil, sftp.ErrSSHFxOpUnsupported

	default:
		return nil, sftp.ErrSSHFxOpUnsupported
	}
}

// mapError translates backend errors to SFTP status codes. Every
// failure reaches the tracker so denied operations land in the audit
// trail. Escape attempts also warrant a warning of their own: they are
// either a broken client or someone probing.
func (h *sessionHandlers) mapError(op, path string, err error) error {
	h.tracker.OperationFailed(h.username, op, path, err)

	var escErr *backend.PathEscapeError
	switch {
	case errors.As(err, &escErr):
		logger.WarnCtx(h.ctx, "path escape rejected",
			logger.Op(op), logger.Path(path))
		return sftp.ErrSSHFxPermissionDenied

	case errors.Is(err, fs.ErrNotExist):
		return sftp.ErrSSHFxNoSuchFile

	case errors.Is(err, fs.ErrPermission):
		return sftp.ErrSSHFxPermissionDenied

	case errors.Is(err, backend.ErrUnsupportedAttributes):
		return sftp.ErrSSHFxOpUnsupported

	default:
		return sftp.ErrSSHFxFailure
	}
}

// requestAttributes converts the request's attribute payload into the
// backend representation, honoring the flag bits.
func requestAttributes(r *sftp.Request) *backend.FileAttributes {
	flags := r.AttrFlags()
	stat := r.Attributes()
	attr := &backend.FileAttributes{}

	if flags.Size {
		size := stat.Size
		attr.Size = &size
	}
	if flags.Permissions {
		mode := stat.FileMode()
		attr.Mode = &mode
	}
	if flags.UidGid {
		uid, gid := stat.UID, stat.GID
		attr.UID = &uid
		attr.GID = &gid
	}
	if flags.Acmodtime {
		atime := time.Unix(int64(stat.Atime), 0)
		mtime := time.Unix(int64(stat.Mtime), 0)
		attr.AccessTime = &atime
		attr.ModTime = &mtime
	}
	return attr
}

// trackedFile counts traffic through an open file and reports it when
// the transfer finishes.
type trackedFile struct {
	file     backend.File
	handlers *sessionHandlers
	path     string

	bytesRead    atomic.Int64
	bytesWritten atomic.Int64
}

func (t *trackedFile) ReadAt(p []byte, off int64) (int, error) {
	n, err := t.file.ReadAt(p, off)
	t.bytesRead.Add(int64(n))
	return n, err
}

func (t *trackedFile) WriteAt(p []byte, off int64) (int, error) {
	n, err := t.file.WriteAt(p, off)
	t.bytesWritten.Add(int64(n))
	return n, err
}

func (t *trackedFile) Close() error {
	err := t.file.Close()
	t.handlers.tracker.FileClosed(t.handlers.username, t.path,
		t.bytesRead.Load(), t.bytesWritten.Load())
	return err
}

// listerAt serves directory entries in the offset-window form the
// request server asks for.
type listerAt []os.FileInfo

func (l listerAt) ListAt(f []os.FileInfo, off int64) (int, error) {
	if off >= int64(len(l)) {
		return 0, io.EOF
	}
	n := copy(f, l[off:])
	if n < len(f) {
		return n, io.EOF
	}
	return n, nil
}
