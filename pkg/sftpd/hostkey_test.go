package sftpd

import (
	"bytes"
	"context"
	"testing"

	"github.com/dataexchange/sftpgate/pkg/backend"
	"github.com/dataexchange/sftpgate/pkg/backend/local"
)

func newTestBackend(t *testing.T) backend.Backend {
	t.Helper()
	store, err := local.New(t.TempDir())
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	return store
}

func TestHostKeyGeneratedOnFirstBoot(t *testing.T) {
	store := newTestBackend(t)
	ctx := context.Background()

	signer, err := LoadOrGenerateHostKey(ctx, store, DefaultHostKeyPath)
	if err != nil {
		t.Fatalf("LoadOrGenerateHostKey: %v", err)
	}
	if signer.PublicKey().Type() != "ssh-ed25519" {
		t.Fatalf("key type = %q, want ssh-ed25519", signer.PublicKey().Type())
	}

	if _, err := store.Stat(ctx, DefaultHostKeyPath); err != nil {
		t.Fatalf("host key not persisted: %v", err)
	}
}

func TestHostKeyStableAcrossBoots(t *testing.T) {
	store := newTestBackend(t)
	ctx := context.Background()

	first, err := LoadOrGenerateHostKey(ctx, store, DefaultHostKeyPath)
	if err != nil {
		t.Fatalf("first boot: %v", err)
	}
	second, err := LoadOrGenerateHostKey(ctx, store, DefaultHostKeyPath)
	if err != nil {
		t.Fatalf("second boot: %v", err)
	}

	if !bytes.Equal(first.PublicKey().Marshal(), second.PublicKey().Marshal()) {
		t.Fatal("host key changed between boots")
	}
}

func TestHostKeyCorruptFile(t *testing.T) {
	store := newTestBackend(t)
	ctx := context.Background()

	if err := backend.WriteFile(ctx, store, DefaultHostKeyPath, []byte("not a key")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadOrGenerateHostKey(ctx, store, DefaultHostKeyPath); err == nil {
		t.Fatal("expected error for corrupt host key")
	}
}
