package identity

import (
	"golang.org/x/crypto/ssh"
)

// KeyRing maps usernames to their registered public key sets.
//
// Built once from the user table before the server starts accepting
// connections; read-only afterwards, so concurrent sessions share it
// without locking. Key identity is the canonical wire encoding
// (ssh.PublicKey.Marshal), never object identity.
type KeyRing struct {
	keys map[string]map[string]ssh.PublicKey
}

// NewKeyRing builds a key ring from the user table. Users without keys
// get no entry; authentication for them can only succeed by password.
func NewKeyRing(users []*User) *KeyRing {
	ring := &KeyRing{
		keys: make(map[string]map[string]ssh.PublicKey),
	}

	for _, u := range users {
		if len(u.PublicKeys) == 0 {
			continue
		}
		set := make(map[string]ssh.PublicKey, len(u.PublicKeys))
		for _, key := range u.PublicKeys {
			set[string(key.Marshal())] = key
		}
		ring.keys[u.Username] = set
	}

	return ring
}

// Has reports whether the presented key is registered for the username.
// Users with no registered keys always report false.
func (r *KeyRing) Has(username string, presented ssh.PublicKey) bool {
	set, ok := r.keys[username]
	if !ok {
		return false
	}
	_, ok = set[string(presented.Marshal())]
	return ok
}

// Keys returns the registered keys for a username, or nil.
func (r *KeyRing) Keys(username string) []ssh.PublicKey {
	set, ok := r.keys[username]
	if !ok {
		return nil
	}
	keys := make([]ssh.PublicKey, 0, len(set))
	for _, k := range set {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of users with at least one registered key.
func (r *KeyRing) Len() int {
	return len(r.keys)
}
