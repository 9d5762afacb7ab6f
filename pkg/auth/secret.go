package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// SecretHashCost is the bcrypt cost for opaque token secrets. Lower than the
// password cost because every token validation linear-scans the live set and
// runs one compare per candidate; opaque tokens already carry 256 bits of
// entropy, so the work factor matters far less than for human passwords.
const SecretHashCost = 10

// HashSecret produces a salted bcrypt hash of an opaque token secret. The salt
// is random per call, so the stored hash cannot be used as an equality lookup
// key; validation must verify candidates individually.
func HashSecret(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), SecretHashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hashedBytes), nil
}

// CompareSecret verifies a plaintext token against a stored hash in constant
// time, independent of how many characters match.
func CompareSecret(hashedSecret, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedSecret), []byte(plaintext)) == nil
}
