package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute)
	userID := primitive.NewObjectID()

	token, err := issuer.Issue(userID, "seller", "s@example.com")
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "seller", claims.Role)
	assert.Equal(t, "s@example.com", claims.Email)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, id)
}

func TestParseRejectsForeignAndExpiredTokens(t *testing.T) {
	userID := primitive.NewObjectID()

	foreign, err := NewIssuer("other", time.Minute).Issue(userID, "buyer", "b@example.com")
	require.NoError(t, err)
	_, err = NewIssuer("secret", time.Minute).Parse(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewIssuer("secret", -time.Minute).Issue(userID, "buyer", "b@example.com")
	require.NoError(t, err)
	_, err = NewIssuer("secret", time.Minute).Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewIssuer("secret", time.Minute).Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	token, ok = BearerToken("bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = BearerToken("abc")
	assert.False(t, ok)
	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
}

func TestRefreshTokenHashing(t *testing.T) {
	plain, hash, err := NewRefreshToken()
	require.NoError(t, err)
	assert.Len(t, plain, 64)
	assert.Equal(t, HashToken(plain), hash)
	assert.NotEqual(t, plain, hash)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "secret1"))
	assert.False(t, CheckPassword(hash, "secret2"))
}
