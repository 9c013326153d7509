package sftpd

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/crypto/ssh"

	"github.com/dataexchange/sftpgate/pkg/backend"
)

// DefaultHostKeyPath is where the host key lives inside the storage
// backend. Storing it alongside the data means the identity follows
// the storage: a gateway rebuilt against the same bucket or folder
// presents the same fingerprint.
const DefaultHostKeyPath = "/_key"

// LoadOrGenerateHostKey returns the gateway's host key, generating and
// persisting a fresh ed25519 key on first boot.
func LoadOrGenerateHostKey(ctx context.Context, be backend.Backend, path string) (ssh.Signer, error) {
	data, err := backend.ReadFile(ctx, be, path)
	if err == nil {
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("parsing host key at %q: %w", path, err)
		}
		return signer, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading host key at %q: %w", path, err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating host key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return nil, fmt.Errorf("encoding host key: %w", err)
	}

	if err := backend.WriteFile(ctx, be, path, pem.EncodeToMemory(block)); err != nil {
		return nil, fmt.Errorf("persisting host key at %q: %w", path, err)
	}

	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, fmt.Errorf("building signer: %w", err)
	}
	return signer, nil
}
