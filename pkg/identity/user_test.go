package identity

import (
	"testing"
)

const (
	keyAliceLaptop  = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAINLxUs3CbjQqlbUvriw92zyL/EXO0Xe62oZ/piKsKm2h alice@laptop"
	keyAliceDesktop = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIHbG58HhGTwunE4aWkCw1pQ1zt5kIdHHzze/kncEJUez alice@desktop"
	keyIntruder     = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAINoWYYedAGPyXessNTP60rExC7psoTFwc5hVdpcGeMkH intruder"
)

func TestLoadUsers_MergesEntriesByUsername(t *testing.T) {
	users, err := LoadUsers([]UserSpec{
		{Username: "alice", PublicKey: keyAliceLaptop},
		{Username: "alice", PublicKey: keyAliceDesktop},
		{Username: "bob", Password: "hunter2-hunter2"},
	})
	if err != nil {
		t.Fatalf("LoadUsers failed: %v", err)
	}

	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}

	alice := users[0]
	if alice.Username != "alice" {
		t.Fatalf("Expected alice first, got %q", alice.Username)
	}
	if len(alice.PublicKeys) != 2 {
		t.Errorf("Expected alice to have 2 keys, got %d", len(alice.PublicKeys))
	}
	if !alice.Enabled {
		t.Error("Expected loaded users to be enabled")
	}
	if alice.ID == "" {
		t.Error("Expected alice to have an ID")
	}
}

func TestLoadUsers_DuplicateKeyIsIdempotent(t *testing.T) {
	users, err := LoadUsers([]UserSpec{
		{Username: "alice", PublicKey: keyAliceLaptop},
		{Username: "alice", PublicKey: keyAliceLaptop},
	})
	if err != nil {
		t.Fatalf("LoadUsers failed: %v", err)
	}

	if len(users[0].PublicKeys) != 1 {
		t.Errorf("Expected duplicate key to collapse to 1 entry, got %d", len(users[0].PublicKeys))
	}
}

func TestLoadUsers_BlankUsername(t *testing.T) {
	if _, err := LoadUsers([]UserSpec{{Username: "   "}}); err == nil {
		t.Error("Expected error for blank username")
	}
}

func TestLoadUsers_UndecodableKeyIsFatal(t *testing.T) {
	_, err := LoadUsers([]UserSpec{{Username: "alice", PublicKey: "ssh-ed25519 notakey"}})
	if err == nil {
		t.Error("Expected error for undecodable public key")
	}
}

func TestLoadUsers_PasswordIsHashed(t *testing.T) {
	users, err := LoadUsers([]UserSpec{{Username: "bob", Password: "hunter2-hunter2"}})
	if err != nil {
		t.Fatalf("LoadUsers failed: %v", err)
	}

	bob := users[0]
	if bob.PasswordHash == "hunter2-hunter2" {
		t.Error("Expected password to be hashed, found plaintext")
	}
	if !VerifyPassword("hunter2-hunter2", bob.PasswordHash) {
		t.Error("Expected hashed password to verify")
	}
	if VerifyPassword("wrong", bob.PasswordHash) {
		t.Error("Expected wrong password to fail verification")
	}
}

func TestLoadUsers_PrecomputedHashWins(t *testing.T) {
	hash, err := HashPassword("real-password")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	users, err := LoadUsers([]UserSpec{
		{Username: "carol", Password: "ignored", PasswordHash: hash},
	})
	if err != nil {
		t.Fatalf("LoadUsers failed: %v", err)
	}
	if users[0].PasswordHash != hash {
		t.Error("Expected pre-computed hash to take precedence")
	}
}

func TestVerifyPassword_EmptyHashNeverMatches(t *testing.T) {
	if VerifyPassword("", "") {
		t.Error("Expected empty hash to reject any password")
	}
	if VerifyPassword("anything", "") {
		t.Error("Expected empty hash to reject any password")
	}
}
