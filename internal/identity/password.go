// internal/identity/password.go
package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"

	"libris/internal/fault"
)

const passwordSpecials = `¡"#$%&/()!@`

// checkPasswordPolicy enforces the registration password rules: 8-15
// characters with at least one lowercase letter, one uppercase letter and one
// special character.
func checkPasswordPolicy(password string) error {
	runes := []rune(password)
	if len(runes) < 8 || len(runes) > 15 {
		return fault.Validation("password must be between 8 and 15 characters")
	}

	var hasLower, hasUpper bool
	for _, r := range runes {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		}
	}
	if !hasLower {
		return fault.Validation("password must contain a lowercase letter")
	}
	if !hasUpper {
		return fault.Validation("password must contain an uppercase letter")
	}
	if !strings.ContainsAny(password, passwordSpecials) {
		return fault.Validation("password must contain a special character")
	}
	return nil
}

// hashPassword generates a salted Argon2id hash of the password.
func hashPassword(password string) (string, string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", err
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	encodedHash := base64.StdEncoding.EncodeToString(hash)
	encodedSalt := base64.StdEncoding.EncodeToString(salt)

	return encodedHash, encodedSalt, nil
}

// verifyPassword compares a password with a salted hash in constant time.
func verifyPassword(password, salt, hash string) (bool, error) {
	decodedSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}

	decodedHash, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	comparisonHash := argon2.IDKey([]byte(password), decodedSalt, 1, 64*1024, 4, 32)

	return subtle.ConstantTimeCompare(decodedHash, comparisonHash) == 1, nil
}
