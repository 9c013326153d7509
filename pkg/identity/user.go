// Package identity holds the gateway's user model: the immutable user
// table built from configuration, bcrypt password credentials, the
// per-user public key ring, and the authentication provider interface
// that final accept/deny decisions are delegated to.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"
)

// Common errors for user operations.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserDisabled  = errors.New("user account is disabled")
	ErrDuplicateUser = errors.New("user already exists")
)

// User represents a gateway user.
//
// Users are built once from configuration at startup and are immutable
// afterwards; protocol handlers may share them across sessions without
// locking.
type User struct {
	// ID is the unique identifier for the user (UUID).
	ID string

	// Username is the unique human-readable identifier for the user.
	Username string

	// PasswordHash is the bcrypt hash of the user's password.
	// Empty when the user authenticates by public key only.
	PasswordHash string

	// PublicKeys are the user's registered public keys. Duplicates are
	// collapsed during construction; order follows the configuration.
	PublicKeys []ssh.PublicKey

	// Enabled indicates whether the account is active.
	Enabled bool
}

// Validate checks structural invariants of the user record.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return errors.New("username must not be blank")
	}
	return nil
}

// UserSpec is one raw configuration entry. The same username may appear
// in several entries, once per public key; LoadUsers merges them.
type UserSpec struct {
	Username     string
	Password     string // plaintext, hashed during load
	PasswordHash string // pre-computed bcrypt hash, wins over Password
	PublicKey    string // authorized_keys format
}

// LoadUsers builds the immutable user table from configuration entries.
//
// Entries sharing a username merge into one User: public keys accumulate
// into a set (registering the same key twice is idempotent) and the first
// non-empty password wins. Any undecodable key is a fatal error so a
// misconfigured server never starts.
func LoadUsers(specs []UserSpec) ([]*User, error) {
	byName := make(map[string]*User)
	var order []string

	for i, spec := range specs {
		username := strings.TrimSpace(spec.Username)
		if username == "" {
			return nil, fmt.Errorf("user entry %d: username must not be blank", i)
		}

		u, ok := byName[username]
		if !ok {
			u = &User{
				ID:       uuid.NewString(),
				Username: username,
				Enabled:  true,
			}
			byName[username] = u
			order = append(order, username)
		}

		if err := mergeSpec(u, spec); err != nil {
			return nil, fmt.Errorf("user entry %d (%s): %w", i, username, err)
		}
	}

	users := make([]*User, 0, len(order))
	for _, name := range order {
		users = append(users, byName[name])
	}
	return users, nil
}

func mergeSpec(u *User, spec UserSpec) error {
	if u.PasswordHash == "" {
		switch {
		case spec.PasswordHash != "":
			u.PasswordHash = spec.PasswordHash
		case spec.Password != "":
			hash, err := HashPassword(spec.Password)
			if err != nil {
				return fmt.Errorf("invalid password: %w", err)
			}
			u.PasswordHash = hash
		}
	}

	if spec.PublicKey == "" {
		return nil
	}

	key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(spec.PublicKey))
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	// Set semantics by canonical wire encoding, not object identity.
	encoded := string(key.Marshal())
	for _, existing := range u.PublicKeys {
		if string(existing.Marshal()) == encoded {
			return nil
		}
	}
	u.PublicKeys = append(u.PublicKeys, key)
	return nil
}
