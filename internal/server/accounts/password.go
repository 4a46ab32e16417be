package accounts

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// HashPassword produces the bcrypt hash stored for newly provisioned
// accounts.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyStoredHash checks a candidate password against a stored hash.
// Legacy seeded records hold unsalted SHA-256 hex digests; accounts
// provisioned here hold bcrypt hashes. Both are compared in constant time.
func VerifyStoredHash(storedHash, password string) bool {
	if storedHash == "" {
		return false
	}
	if strings.HasPrefix(storedHash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
	}
	sum := sha256.Sum256([]byte(password))
	candidate := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(candidate)) == 1
}
