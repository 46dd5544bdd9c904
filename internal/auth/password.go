package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 12

// ErrInvalidPassword is returned by Verify when the candidate does not match.
var ErrInvalidPassword = errors.New("auth: invalid password")

// PasswordService is the credential collaborator: it hashes plaintext
// passwords and checks candidates against stored hashes. Plaintext never
// leaves this type.
//
// The stored form is the full bcrypt output ($2a$<cost>$<salt><hash>); salt
// and cost travel inside it, so no separate column is needed.
type PasswordService struct {
	cost int
}

// NewPasswordService returns a PasswordService using cost, or DefaultCost when
// cost is outside bcrypt's accepted range. Tests pass bcrypt.MinCost (4).
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
//
// bcrypt silently truncates input after 72 bytes, so longer passwords are
// rejected instead.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// It returns ErrInvalidPassword on mismatch. The comparison is constant-time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	// Accounts created through GitHub have no password.
	if hash == "" {
		return ErrInvalidPassword
	}
	err :=bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
