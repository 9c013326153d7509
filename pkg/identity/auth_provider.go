package identity

import (
	"context"
	"errors"

	"golang.org/x/crypto/ssh"
)

// Common errors for AuthProvider operations.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrUnsupportedCredType  = errors.New("unsupported credential type")
)

// Credentials represents authentication credentials.
// Different implementations support different credential types.
type Credentials interface {
	// Type returns the credential type identifier: "password" or "publickey".
	Type() string
}

// PasswordCredentials represents username/password authentication.
type PasswordCredentials struct {
	Username string
	Password string
}

// Type returns "password".
func (c *PasswordCredentials) Type() string {
	return "password"
}

// PublicKeyCredentials represents public-key authentication. Key is the
// presented key that already matched the user's registered key set; the
// provider makes the final accept/deny decision.
type PublicKeyCredentials struct {
	Username string
	Key      ssh.PublicKey
}

// Type returns "publickey".
func (c *PublicKeyCredentials) Type() string {
	return "publickey"
}

// AuthProvider is the external identity authority. The transport layer
// delegates every final accept/deny decision here, even after a public
// key has matched the registered key set.
//
// The default LocalAuthProvider answers from the configuration-backed
// user store; deployments with a directory service supply their own.
type AuthProvider interface {
	// Name returns the provider identifier, e.g. "local".
	Name() string

	// Authenticate validates credentials and returns the authenticated user.
	// Returns ErrAuthenticationFailed if credentials are invalid.
	// Returns ErrUnsupportedCredType if the credential type is not supported.
	Authenticate(ctx context.Context, creds Credentials) (*User, error)

	// SupportsCredentialType returns true if the provider supports the given type.
	SupportsCredentialType(credType string) bool
}

// LocalAuthProvider implements AuthProvider using a UserStore.
type LocalAuthProvider struct {
	store UserStore
}

// NewLocalAuthProvider creates a new LocalAuthProvider with the given UserStore.
func NewLocalAuthProvider(store UserStore) *LocalAuthProvider {
	return &LocalAuthProvider{store: store}
}

// Name returns "local".
func (p *LocalAuthProvider) Name() string {
	return "local"
}

// Authenticate validates credentials against the local user store.
func (p *LocalAuthProvider) Authenticate(ctx context.Context, creds Credentials) (*User, error) {
	switch c := creds.(type) {
	case *PasswordCredentials:
		return p.authenticatePassword(c)
	case *PublicKeyCredentials:
		return p.authenticatePublicKey(c)
	default:
		return nil, ErrUnsupportedCredType
	}
}

func (p *LocalAuthProvider) authenticatePassword(creds *PasswordCredentials) (*User, error) {
	user, err := p.store.ValidateCredentials(creds.Username, creds.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrUserDisabled) {
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}
	return user, nil
}

// authenticatePublicKey double-checks key membership against the user
// record. Registry membership was already verified by the caller, but the
// provider is the authority: a disabled account or a stale key set
// rejects here.
func (p *LocalAuthProvider) authenticatePublicKey(creds *PublicKeyCredentials) (*User, error) {
	user, err := p.store.GetUser(creds.Username)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	if !user.Enabled {
		return nil, ErrAuthenticationFailed
	}

	encoded := string(creds.Key.Marshal())
	for _, key := range user.PublicKeys {
		if string(key.Marshal()) == encoded {
			return user, nil
		}
	}
	return nil, ErrAuthenticationFailed
}

// SupportsCredentialType returns true for "password" and "publickey".
func (p *LocalAuthProvider) SupportsCredentialType(credType string) bool {
	return credType == "password" || credType == "publickey"
}
