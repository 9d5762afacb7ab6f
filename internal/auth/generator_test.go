package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecternhq/lectern/internal/auth"
)

func TestGenerateOpaqueToken(t *testing.T) {
	token, err := auth.GenerateOpaqueToken()
	require.NoError(t, err)

	assert.Len(t, token, 64)
	assert.Equal(t, strings.ToLower(token), token, "hex encoding is lowercase")

	other, err := auth.GenerateOpaqueToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestGenerateAPIToken(t *testing.T) {
	token, err := auth.GenerateAPIToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, auth.APITokenPrefix))
	assert.Len(t, token, len(auth.APITokenPrefix)+64)
}

func TestGenerateNumericCode(t *testing.T) {
	code, err := auth.GenerateNumericCode(6)
	require.NoError(t, err)

	require.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9', "code %q contains non-digit", code)
	}
}

func TestGenerateAlphanumericCode(t *testing.T) {
	code, err := auth.GenerateAlphanumericCode(8)
	require.NoError(t, err)

	require.Len(t, code, 8)
	for _, r := range code {
		ok := (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		assert.True(t, ok, "code %q contains character outside A-Z0-9", code)
	}

	_, err = auth.GenerateAlphanumericCode(0)
	assert.Error(t, err)
}

func TestGenerateNumericCode_InvalidLength(t *testing.T) {
	_, err := auth.GenerateNumericCode(0)
	assert.Error(t, err)

	_, err = auth.GenerateNumericCode(-3)
	assert.Error(t, err)
}

func TestTokenDisplayPrefix(t *testing.T) {
	assert.Equal(t, "lct_abcdef01", auth.TokenDisplayPrefix("lct_abcdef0123456789"))
	assert.Equal(t, "short", auth.TokenDisplayPrefix("short"))
}
