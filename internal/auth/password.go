package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// PasswordCost is the bcrypt cost for admin password hashes.
	PasswordCost = bcrypt.DefaultCost

	maxPasswordBytes = 72
)

var ErrInvalidPasswordHash = errors.New("auth: invalid bcrypt password hash")

// HashPassword returns the bcrypt hash stored in ADMIN_PASSWORD_HASH.
// bcrypt reads at most 72 bytes, longer passwords are refused.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("auth: empty password")
	}
	if len(password) > maxPasswordBytes {
		return "", fmt.Errorf("auth: password longer than %d bytes", maxPasswordBytes)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword reports whether plain matches hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// checkHash rejects a configured hash that bcrypt cannot read.
func checkHash(hash string) error {
	if _, err := bcrypt.Cost([]byte(strings.TrimSpace(hash))); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPasswordHash, err)
	}
	return nil
}
