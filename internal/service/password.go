package service

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 12

// HashPassword returns the bcrypt hash of a plaintext password. The error is
// deliberately generic: the plaintext must never appear in an error message
// or a log line.
func HashPassword(plain string, cost int) (string, error) {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", errors.New("password hashing failed")
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches the stored bcrypt hash. Any
// comparison error counts as a non-match: a malformed hash must fail closed,
// not surface as something a caller could mistake for success.
func CheckPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
