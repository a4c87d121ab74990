// Package auth provides the password verifier and opaque token minting
// used by the hub. It holds no session state of its own — the hub's
// Session Table (internal/hub) is the authority on who is bound to
// which connection.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword produces an opaque verifier for a plaintext password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// VerifyPassword reports whether password matches the stored verifier.
func VerifyPassword(verifier, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(verifier), []byte(password)) == nil
}

// NewToken returns a random hex token of n bytes. Used to mint
// spectate-room tokens (8 hex chars, 4 bytes, is sufficient given low
// concurrency per the room registry's spec).
func NewToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
