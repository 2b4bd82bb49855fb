package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordSaltsPerCall(t *testing.T) {
	first, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	second, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, VerifyPassword("correct horse battery staple", first))
	assert.True(t, VerifyPassword("correct horse battery staple", second))
}

func TestVerifyPasswordRejectsWrongSecret(t *testing.T) {
	digest, err := HashPassword("right-password")
	require.NoError(t, err)

	assert.False(t, VerifyPassword("wrong-password", digest))
	assert.False(t, VerifyPassword("", digest))
}
