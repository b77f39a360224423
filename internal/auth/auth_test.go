package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier(t *testing.T) {
	verifier, err := NewJWTVerifier("s3cret", "impact")
	require.NoError(t, err)
	ctx := context.Background()

	token, err := IssueToken("s3cret", "impact", "user-42", time.Hour)
	require.NoError(t, err)

	userID, err := verifier.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)

	expired, err := IssueToken("s3cret", "impact", "user-42", -time.Minute)
	require.NoError(t, err)
	wrongSecret, err := IssueToken("other", "impact", "user-42", time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := IssueToken("s3cret", "someone-else", "user-42", time.Hour)
	require.NoError(t, err)
	noSubject, err := IssueToken("s3cret", "impact", "", time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-42"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong secret", wrongSecret},
		{"wrong issuer", wrongIssuer},
		{"no subject", noSubject},
		{"alg none", none},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(ctx, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = verifier.Verify(ctx, "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestNewJWTVerifier_RequiresSecret(t *testing.T) {
	_, err := NewJWTVerifier("", "")
	assert.Error(t, err)
}

func TestNullVerifier(t *testing.T) {
	userID, err := NullVerifier{}.Verify(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)

	_, err = NullVerifier{}.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken("abc"))
	assert.Equal(t, "", BearerToken(""))
}

func TestUserContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	userID, ok := UserFromContext(WithUser(context.Background(), "bob"))
	assert.True(t, ok)
	assert.Equal(t, "bob", userID)
}
