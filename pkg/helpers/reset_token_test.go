package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateResetToken(t *testing.T) {
	plain, hashed, err := GenerateResetToken()
	require.NoError(t, err)

	assert.Len(t, plain, 64)
	assert.Len(t, hashed, 64)
	assert.NotEqual(t, plain, hashed)
	assert.Equal(t, hashed, HashResetToken(plain))

	other, _, err := GenerateResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, plain, other)
}

func TestHashResetTokenKnownDigest(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashResetToken("abc"))
}
