package identity

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the cost parameter for bcrypt hashing.
// Cost 10 balances security and per-connection latency.
const DefaultBcryptCost = 10

// ErrInvalidCredentials is returned when credentials are invalid.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrPasswordTooLong is returned when a password exceeds bcrypt's input limit.
var ErrPasswordTooLong = errors.New("password must be at most 72 characters")

// MaxPasswordLength is the maximum allowed password length.
// bcrypt silently truncates at 72 bytes, so we enforce this limit.
const MaxPasswordLength = 72

// HashPassword creates a bcrypt hash of the given password.
func HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// VerifyPassword checks a plaintext password against a bcrypt hash.
// An empty hash never matches: key-only users have no usable password.
func VerifyPassword(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
