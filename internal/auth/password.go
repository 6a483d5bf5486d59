// password.go handles password hashing and verification with bcrypt.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the work factor for password hashes. The bcrypt default (10)
// is kept; raising it invalidates no existing hashes since the cost is
// embedded in each hash.
const bcryptCost = bcrypt.DefaultCost

// HashPassword returns the bcrypt hash of a plaintext password
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	// bcrypt silently truncates input beyond 72 bytes; reject instead
	if len(password) > 72 {
		return "", errors.New("password must not exceed 72 bytes")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a stored bcrypt hash.
// Returns true only on an exact match; errors from malformed hashes are
// treated as a mismatch.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
