// Package sftpd implements the gateway's SFTP surface: host identity,
// authentication callbacks, the accept loop, and the per-session
// request handlers.
package sftpd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/dataexchange/sftpgate/internal/logger"
	"github.com/dataexchange/sftpgate/pkg/backend"
	"github.com/dataexchange/sftpgate/pkg/identity"
)

// Config holds the server's listen and identity settings.
type Config struct {
	// Host is the bind address; empty binds all interfaces.
	Host string

	// Port is the TCP port to listen on.
	Port int

	// HostKeyPath is the backend path of the persisted host key.
	// Defaults to DefaultHostKeyPath.
	HostKeyPath string

	// ShutdownTimeout bounds how long Shutdown waits for in-flight
	// sessions before giving up on them.
	ShutdownTimeout time.Duration
}

// Server is the SFTP gateway. Each authenticated session gets a view
// of the storage backend confined to /<username>.
type Server struct {
	cfg     Config
	store   backend.Backend
	auth    *authenticator
	tracker EventTracker
	sshCfg  *ssh.ServerConfig

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	sessions sync.WaitGroup
}

// New bootstraps a server: it loads or generates the host key through
// the storage backend and wires the authentication callbacks.
func New(ctx context.Context, cfg Config, store backend.Backend, provider identity.AuthProvider, users []*identity.User, tracker EventTracker) (*Server, error) {
	if tracker == nil {
		tracker = NopTracker{}
	}
	if cfg.HostKeyPath == "" {
		cfg.HostKeyPath = DefaultHostKeyPath
	}

	hostKey, err := LoadOrGenerateHostKey(ctx, store, cfg.HostKeyPath)
	if err != nil {
		return nil, fmt.Errorf("host key bootstrap: %w", err)
	}
	logger.Info("host key ready",
		"fingerprint", ssh.FingerprintSHA256(hostKey.PublicKey()),
		logger.Path(cfg.HostKeyPath))

	auth := newAuthenticator(provider, identity.NewKeyRing(users), tracker)

	sshCfg := &ssh.ServerConfig{
		ServerVersion:     "SSH-2.0-sftpgate",
		PublicKeyCallback: auth.publicKeyCallback,
		PasswordCallback:  auth.passwordCallback,
	}
	sshCfg.AddHostKey(hostKey)

	return &Server{
		cfg:     cfg,
		store:   store,
		auth:    auth,
		tracker: tracker,
		sshCfg:  sshCfg,
	}, nil
}

// Addr returns the listener address, or nil before ListenAndServe.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe binds the configured address and serves until
// Shutdown is called.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until the listener is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return errors.New("server is shut down")
	}
	s.listener = ln
	s.mu.Unlock()

	logger.Info("sftp server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.sessions.Add(1)
		go func() {
			defer s.sessions.Done()
			s.handleConn(conn)
		}()
	}
}

// Shutdown closes the listener and waits for in-flight sessions up to
// the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}

	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

func (s *Server) handleConn(raw net.Conn) {
	defer raw.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(raw, s.sshCfg)
	if err != nil {
		// Failed handshakes land here, auth failures included.
		logger.Debug("handshake failed",
			logger.RemoteAddr(raw.RemoteAddr().String()), logger.Err(err))
		return
	}
	defer sshConn.Close()

	username := sshConn.User()
	remoteAddr := sshConn.RemoteAddr().String()
	sessionID := uuid.NewString()

	ctx := logger.WithContext(context.Background(),
		logger.NewLogContext(sessionID, username, remoteAddr))

	s.tracker.SessionOpened(username, remoteAddr)
	defer s.tracker.SessionClosed(username, remoteAddr)

	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "only session channels supported")
			continue
		}

		ch, inReqs, err := newCh.Accept()
		if err != nil {
			logger.WarnCtx(ctx, "channel accept failed", logger.Err(err))
			continue
		}

		go s.handleChannel(ctx, username, ch, inReqs)
	}
}

func (s *Server) handleChannel(ctx context.Context, username string, ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()

	for req := range reqs {
		switch req.Type {
		case "subsystem":
			if subsystemName(req.Payload) != "sftp" {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			s.serveSession(ctx, username, ch)
			return

		default:
			// No shell, no exec, no PTY.
			req.Reply(false, nil)
		}
	}
}

// serveSession runs the SFTP request loop on an accepted channel. The
// session sees the backend through a view confined to /<username>,
// created on first login.
func (s *Server) serveSession(ctx context.Context, username string, ch ssh.Channel) {
	root := "/" + username
	if err := s.ensureRoot(ctx, root); err != nil {
		logger.ErrorCtx(ctx, "user root unavailable",
			logger.Root(root), logger.Err(err))
		return
	}

	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithRoot(root))
	cfs := backend.Confine(s.store, root)

	server := sftp.NewRequestServer(ch, newSessionHandlers(ctx, cfs, username, s.tracker))
	if err := server.Serve(); err != nil && !errors.Is(err, io.EOF) {
		logger.WarnCtx(ctx, "session ended with error", logger.Err(err))
	}
	server.Close()
}

func (s *Server) ensureRoot(ctx context.Context, root string) error {
	if _, err := s.store.Stat(ctx, root); err == nil {
		return nil
	}
	return s.store.Mkdir(ctx, root)
}

// subsystemName extracts the name from a subsystem request payload
// (a length-prefixed string).
func subsystemName(payload []byte) string {
	if len(payload) < 4 {
		return ""
	}
	length := int(uint32(payload[0])<<24 | uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3]))
	if length < 0 || len(payload) < 4+length {
		return ""
	}
	return string(payload[4 : 4+length])
}
