// Package auth guards the admin panel with a single configured password and
// signed session tokens.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// CookieName carries the admin session token in the browser.
	CookieName = "library_admin"
	SessionTTL = 12 * time.Hour

	DefaultPassword = "admin123"
)

var ErrUnauthorized = errors.New("unauthorized")

// Config holds the admin credential and token secret. PasswordHash wins over
// Password when both are set. An empty Secret is replaced with random bytes,
// so sessions end with the process.
type Config struct {
	Password     string
	PasswordHash string
	Secret       string
}

// Gate checks the admin password and issues session tokens.
type Gate struct {
	hash   string
	secret []byte
	now    func() time.Time
}

func NewGate(cfg Config) (*Gate, error) {
	hash := strings.TrimSpace(cfg.PasswordHash)
	if hash != "" {
		if err := checkHash(hash); err != nil {
			return nil, err
		}
	} else {
		password := cfg.Password
		if password == "" {
			password = DefaultPassword
		}
		h, err := HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("auth: hash admin password: %w", err)
		}
		hash = h
	}

	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("auth: generate session secret: %w", err)
		}
	}
	return &Gate{hash: hash, secret: secret, now: time.Now}, nil
}

// Login returns a session token when password is the admin password.
func (g *Gate) Login(password string) (string, error) {
	if password == "" || !VerifyPassword(g.hash, password) {
		return "", ErrUnauthorized
	}
	return GenerateToken(g.secret, g.now(), SessionTTL)
}

// Verify implements httpx.TokenVerifier.
func (g *Gate) Verify(token string) error {
	if _, err := ParseToken(g.secret, token, g.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return nil
}
