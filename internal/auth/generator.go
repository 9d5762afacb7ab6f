package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	// OpaqueTokenBytes is the entropy of an opaque token (256 bits = 64 hex chars).
	OpaqueTokenBytes = 32

	// APITokenPrefix marks plaintext API tokens so leaked keys are greppable.
	APITokenPrefix = "lct_"
)

// GenerateOpaqueToken returns a cryptographically random 64-hex-char string.
// Used for every opaque token type; the plaintext is shown once and only its
// bcrypt hash is persisted.
func GenerateOpaqueToken() (string, error) {
	randomBytes := make([]byte, OpaqueTokenBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}

// GenerateAPIToken returns a plaintext API token in the format lct_<64 hex chars>.
func GenerateAPIToken() (string, error) {
	token, err := GenerateOpaqueToken()
	if err != nil {
		return "", err
	}
	return APITokenPrefix + token, nil
}

// GenerateNumericCode returns a random decimal code of the given length,
// for MFA-style short codes.
func GenerateNumericCode(length int) (string, error) {
	return generateFromAlphabet("0123456789", length)
}

// GenerateAlphanumericCode returns a random code of uppercase letters and
// digits, for codes meant to be read aloud or typed by hand.
func GenerateAlphanumericCode(length int) (string, error) {
	return generateFromAlphabet("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", length)
}

func generateFromAlphabet(alphabet string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", length)
	}

	max := big.NewInt(int64(len(alphabet)))
	code := make([]byte, length)
	for i := range code {
		// crypto/rand.Int is uniform over [0, max); no modulo bias
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random code: %w", err)
		}
		code[i] = alphabet[n.Int64()]
	}

	return string(code), nil
}

// TokenDisplayPrefix returns the first 12 characters of a plaintext token,
// safe to store and show for identification.
func TokenDisplayPrefix(plaintext string) string {
	if len(plaintext) < 12 {
		return plaintext
	}
	return plaintext[:12]
}
