package auth

import (
	"testing"
	"time"

	"vibehive/errors"

	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret-of-reasonable-length")

func TestToken_Round_Trip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(secret, "alice", []string{"user"}, time.Hour)
	req.NoError(err)

	claims, err := ValidateToken(secret, token)
	req.NoError(err)
	req.Equal("alice", claims.UserID)
	req.Equal([]string{"user"}, claims.Roles)
}

func TestToken_Rejects_Wrong_Secret_And_Expiry(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(secret, "alice", nil, time.Hour)
	req.NoError(err)
	_, err = ValidateToken([]byte("another-secret"), token)
	req.Error(err)

	expired, err := GenerateToken(secret, "alice", nil, -time.Minute)
	req.NoError(err)
	_, err = ValidateToken(secret, expired)
	req.Error(err)
}

func TestVerifier_Bind(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier(string(secret))
	token, err := GenerateToken(secret, "alice", nil, time.Hour)
	req.NoError(err)

	req.NoError(verifier.Bind(token, "alice"))
	req.NoError(verifier.Bind("Bearer "+token, "alice"))
	req.ErrorIs(verifier.Bind(token, "bob"), errors.ErrIdentityMismatch)
	req.ErrorIs(verifier.Bind("", "alice"), errors.ErrUnauthenticated)
	req.ErrorIs(verifier.Bind("garbage", "alice"), errors.ErrUnauthenticated)
}

func TestVerifier_Disabled_Trusts_Identity(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier("")

	req.False(verifier.Enabled())
	req.NoError(verifier.Bind("", "anyone"))
}
