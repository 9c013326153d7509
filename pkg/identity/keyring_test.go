package identity

import (
	"testing"

	"golang.org/x/crypto/ssh"
)

func parseKey(t *testing.T, encoded string) ssh.PublicKey {
	t.Helper()
	key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(encoded))
	if err != nil {
		t.Fatalf("Failed to parse test key: %v", err)
	}
	return key
}

func buildRing(t *testing.T) *KeyRing {
	t.Helper()
	users, err := LoadUsers([]UserSpec{
		{Username: "alice", PublicKey: keyAliceLaptop},
		{Username: "alice", PublicKey: keyAliceDesktop},
		{Username: "bob", Password: "hunter2-hunter2"},
	})
	if err != nil {
		t.Fatalf("LoadUsers failed: %v", err)
	}
	return NewKeyRing(users)
}

func TestKeyRing_HasAllRegisteredKeys(t *testing.T) {
	ring := buildRing(t)

	if !ring.Has("alice", parseKey(t, keyAliceLaptop)) {
		t.Error("Expected laptop key to match for alice")
	}
	if !ring.Has("alice", parseKey(t, keyAliceDesktop)) {
		t.Error("Expected desktop key to match for alice")
	}
}

func TestKeyRing_RejectsUnregisteredKey(t *testing.T) {
	ring := buildRing(t)

	if ring.Has("alice", parseKey(t, keyIntruder)) {
		t.Error("Expected unregistered key to be rejected")
	}
}

func TestKeyRing_UserWithoutKeys(t *testing.T) {
	ring := buildRing(t)

	if ring.Has("bob", parseKey(t, keyAliceLaptop)) {
		t.Error("Expected user without keys to reject everything")
	}
	if ring.Keys("bob") != nil {
		t.Error("Expected nil key list for key-less user")
	}
	if ring.Len() != 1 {
		t.Errorf("Expected 1 user with keys, got %d", ring.Len())
	}
}

func TestKeyRing_UnknownUser(t *testing.T) {
	ring := buildRing(t)

	if ring.Has("mallory", parseKey(t, keyIntruder)) {
		t.Error("Expected unknown user to be rejected")
	}
}
