package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/danghamo/robomap/internal/domain/shared"
)

// Credentials verifies the bridge's local access password. The password is
// stored as a bcrypt hash in configuration, never in plain text. An empty
// hash disables password auth entirely (token endpoint rejects everything).
type Credentials struct {
	passwordHash string
}

// NewCredentials creates credentials from a bcrypt password hash
func NewCredentials(passwordHash string) *Credentials {
	return &Credentials{passwordHash: passwordHash}
}

// HashPassword hashes a plain password with bcrypt, for provisioning the
// access_password_hash config value.
func HashPassword(plainPassword string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", shared.WrapDomainError(err, shared.ErrCodeInvalidInput, "Failed to hash password")
	}
	return string(hash), nil
}

// Verify checks a plain password against the stored hash
func (c *Credentials) Verify(plainPassword string) error {
	if c.passwordHash == "" {
		return shared.ErrInvalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(c.passwordHash), []byte(plainPassword)); err != nil {
		return shared.ErrInvalidCredentials()
	}

	return nil
}

// Enabled reports whether password auth is configured
func (c *Credentials) Enabled() bool {
	return c.passwordHash != ""
}
