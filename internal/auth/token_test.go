package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madvasya/lz-app-backend/internal/platform/httpx"
)

func TestIssueAndDecode(t *testing.T) {
	issuer := NewIssuer("test-secret", 15*time.Minute, 720*time.Hour)

	token, err := issuer.Issue("madvasya", TokenAccess)
	require.NoError(t, err)

	claims, err := issuer.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "madvasya", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt, 5*time.Second)
}

func TestRefreshTTLApplied(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Minute, time.Hour)

	token, err := issuer.Issue("session-id", TokenRefresh)
	require.NoError(t, err)

	claims, err := issuer.Decode(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestIssueUnknownKind(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Minute, time.Hour)

	_, err := issuer.Issue("whoever", TokenKind("id"))
	require.Error(t, err)
}

func TestDecodeRejectsBadSignature(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Minute, time.Hour)
	other := NewIssuer("other-secret", time.Minute, time.Hour)

	token, err := issuer.Issue("madvasya", TokenAccess)
	require.NoError(t, err)

	_, err = other.Decode(token)
	assert.True(t, errors.Is(err, httpx.ErrInvalidToken))

	_, err = other.DecodeSkipExpiry(token)
	assert.True(t, errors.Is(err, httpx.ErrInvalidToken), "signature must be checked even when expiry is not")
}

func TestDecodeRejectsMalformedToken(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Minute, time.Hour)

	_, err := issuer.Decode("not.a.token")
	assert.True(t, errors.Is(err, httpx.ErrInvalidToken))
}

func TestDecodeSkipExpiryIgnoresExpiredClaim(t *testing.T) {
	// Negative TTL makes the token born expired.
	issuer := NewIssuer("test-secret", -time.Minute, -time.Minute)

	token, err := issuer.Issue("session-id", TokenRefresh)
	require.NoError(t, err)

	_, err = issuer.Decode(token)
	assert.True(t, errors.Is(err, httpx.ErrInvalidToken))

	claims, err := issuer.DecodeSkipExpiry(token)
	require.NoError(t, err)
	assert.Equal(t, "session-id", claims.Subject)
}
