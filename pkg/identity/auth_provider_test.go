package identity

import (
	"context"
	"errors"
	"testing"
)

func newTestProvider(t *testing.T) *LocalAuthProvider {
	t.Helper()
	users, err := LoadUsers([]UserSpec{
		{Username: "alice", PublicKey: keyAliceLaptop},
		{Username: "bob", Password: "hunter2-hunter2"},
	})
	if err != nil {
		t.Fatalf("LoadUsers failed: %v", err)
	}

	// Disabled account for negative tests.
	users = append(users, &User{ID: "u-3", Username: "carol", Enabled: false})

	store, err := NewConfigUserStore(users)
	if err != nil {
		t.Fatalf("NewConfigUserStore failed: %v", err)
	}
	return NewLocalAuthProvider(store)
}

func TestLocalAuthProvider_Password(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	user, err := p.Authenticate(ctx, &PasswordCredentials{Username: "bob", Password: "hunter2-hunter2"})
	if err != nil {
		t.Fatalf("Expected valid password to authenticate, got %v", err)
	}
	if user.Username != "bob" {
		t.Errorf("Expected bob, got %q", user.Username)
	}

	_, err = p.Authenticate(ctx, &PasswordCredentials{Username: "bob", Password: "wrong"})
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Expected ErrAuthenticationFailed for wrong password, got %v", err)
	}

	_, err = p.Authenticate(ctx, &PasswordCredentials{Username: "mallory", Password: "x"})
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Expected ErrAuthenticationFailed for unknown user, got %v", err)
	}
}

func TestLocalAuthProvider_PublicKey(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	user, err := p.Authenticate(ctx, &PublicKeyCredentials{
		Username: "alice",
		Key:      parseKey(t, keyAliceLaptop),
	})
	if err != nil {
		t.Fatalf("Expected registered key to authenticate, got %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("Expected alice, got %q", user.Username)
	}

	_, err = p.Authenticate(ctx, &PublicKeyCredentials{
		Username: "alice",
		Key:      parseKey(t, keyIntruder),
	})
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Expected ErrAuthenticationFailed for unregistered key, got %v", err)
	}
}

func TestLocalAuthProvider_DisabledAccount(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.Authenticate(context.Background(), &PublicKeyCredentials{
		Username: "carol",
		Key:      parseKey(t, keyIntruder),
	})
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Expected disabled account to reject, got %v", err)
	}
}

func TestLocalAuthProvider_UnsupportedCredType(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.Authenticate(context.Background(), fakeCredentials{})
	if !errors.Is(err, ErrUnsupportedCredType) {
		t.Errorf("Expected ErrUnsupportedCredType, got %v", err)
	}
	if p.SupportsCredentialType("kerberos") {
		t.Error("Expected kerberos to be unsupported")
	}
}

type fakeCredentials struct{}

func (fakeCredentials) Type() string { return "kerberos" }

func TestConfigUserStore_DuplicateUser(t *testing.T) {
	_, err := NewConfigUserStore([]*User{
		{ID: "1", Username: "alice", Enabled: true},
		{ID: "2", Username: "alice", Enabled: true},
	})
	if !errors.Is(err, ErrDuplicateUser) {
		t.Errorf("Expected ErrDuplicateUser, got %v", err)
	}
}

func TestConfigUserStore_GetUser(t *testing.T) {
	store, err := NewConfigUserStore([]*User{{ID: "1", Username: "alice", Enabled: true}})
	if err != nil {
		t.Fatalf("NewConfigUserStore failed: %v", err)
	}

	if _, err := store.GetUser("alice"); err != nil {
		t.Errorf("Expected alice to exist, got %v", err)
	}
	if _, err := store.GetUser("bob"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}
