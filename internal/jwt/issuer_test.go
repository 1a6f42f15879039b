package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssuePairAndVerify(t *testing.T) {
	iss := NewIssuer("test-secret", 30*time.Minute, 7*24*time.Hour)

	pair, err := iss.IssuePair("user-123", "mario@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, int64(1800), pair.ExpiresIn)

	ac, err := iss.Verify(pair.AccessToken, KindAccess)
	require.NoError(t, err)
	require.Equal(t, "user-123", ac.Subject)
	require.Equal(t, "mario@example.com", ac.Email)

	rc, err := iss.Verify(pair.RefreshToken, KindRefresh)
	require.NoError(t, err)
	require.Equal(t, "user-123", rc.Subject)
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	iss := NewIssuer("test-secret", time.Minute, time.Hour)

	pair, err := iss.IssuePair("user-123", "")
	require.NoError(t, err)

	_, err = iss.Verify(pair.AccessToken, KindRefresh)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Verify(pair.RefreshToken, KindAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	iss := NewIssuer("test-secret", time.Minute, time.Hour)

	pair, err := iss.IssuePair("user-123", "")
	require.NoError(t, err)

	// Move the clock past the access TTL
	iss.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = iss.Verify(pair.AccessToken, KindAccess)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Refresh token is still within its TTL
	_, err = iss.Verify(pair.RefreshToken, KindRefresh)
	require.NoError(t, err)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	iss := NewIssuer("secret-a", time.Minute, time.Hour)
	other := NewIssuer("secret-b", time.Minute, time.Hour)

	pair, err := other.IssuePair("user-123", "")
	require.NoError(t, err)

	_, err = iss.Verify(pair.AccessToken, KindAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	iss := NewIssuer("test-secret", time.Minute, time.Hour)

	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := iss.Verify(tok, KindAccess)
		require.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestRefreshMintsNewPair(t *testing.T) {
	iss := NewIssuer("test-secret", time.Minute, time.Hour)

	pair, err := iss.IssuePair("user-123", "mario@example.com")
	require.NoError(t, err)

	next, err := iss.Refresh(pair.RefreshToken)
	require.NoError(t, err)

	ac, err := iss.Verify(next.AccessToken, KindAccess)
	require.NoError(t, err)
	require.Equal(t, "user-123", ac.Subject)
	require.Equal(t, "mario@example.com", ac.Email)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	iss := NewIssuer("test-secret", time.Minute, time.Hour)

	pair, err := iss.IssuePair("user-123", "")
	require.NoError(t, err)

	_, err = iss.Refresh(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}
