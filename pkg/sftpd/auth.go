package sftpd

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/dataexchange/sftpgate/internal/logger"
	"github.com/dataexchange/sftpgate/pkg/identity"
)

// authenticator binds the SSH callbacks to the identity layer. The key
// ring answers the cheap membership question first; only keys the ring
// recognizes reach the authentication provider.
type authenticator struct {
	provider identity.AuthProvider
	ring     *identity.KeyRing
	tracker  EventTracker
}

func newAuthenticator(provider identity.AuthProvider, ring *identity.KeyRing, tracker EventTracker) *authenticator {
	return &authenticator{provider: provider, ring: ring, tracker: tracker}
}

// publicKeyCallback verifies a presented key against the caller's
// registered keys. The SSH transport has already proven possession of
// the private key by the time this runs.
func (a *authenticator) publicKeyCallback(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
	username := conn.User()

	if !a.ring.Has(username, key) {
		a.tracker.AuthAttempt(username, "publickey", false)
		logger.Debug("presented key not registered",
			logger.Username(username),
			logger.RemoteAddr(conn.RemoteAddr().String()),
			"fingerprint", ssh.FingerprintSHA256(key))
		return nil, fmt.Errorf("unknown key for %q", username)
	}

	user, err := a.provider.Authenticate(context.Background(), &identity.PublicKeyCredentials{
		Username: username,
		Key:      key,
	})
	if err != nil {
		a.tracker.AuthAttempt(username, "publickey", false)
		if !errors.Is(err, identity.ErrAuthenticationFailed) {
			logger.Warn("authentication provider error",
				logger.Username(username), logger.Err(err))
		}
		return nil, fmt.Errorf("authentication failed for %q", username)
	}

	a.tracker.AuthAttempt(username, "publickey", true)
	return &ssh.Permissions{
		Extensions: map[string]string{
			"username":    user.Username,
			"fingerprint": ssh.FingerprintSHA256(key),
		},
	}, nil
}

func (a *authenticator) passwordCallback(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
	username := conn.User()

	user, err := a.provider.Authenticate(context.Background(), &identity.PasswordCredentials{
		Username: username,
		Password: string(password),
	})
	if err != nil {
		a.tracker.AuthAttempt(username, "password", false)
		return nil, fmt.Errorf("authentication failed for %q", username)
	}

	a.tracker.AuthAttempt(username, "password", true)
	return &ssh.Permissions{
		Extensions: map[string]string{"username": user.Username},
	}, nil
}
