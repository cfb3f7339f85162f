package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)

	token, err := m.GenerateAccessToken("sess-1", 42, "alice", "Manager")
	require.NoError(t, err)

	claims, err := m.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID())
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "Manager", claims.Role)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestRejectedTokens(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)

	t.Run("Wrong Secret", func(t *testing.T) {
		token, err := NewJWTManager("other", time.Minute).GenerateAccessToken("s", 1, "u", "Tester")
		require.NoError(t, err)
		_, err = m.ParseAndValidate(token)
		assert.Error(t, err)
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := NewJWTManager("secret", -time.Minute).GenerateAccessToken("s", 1, "u", "Tester")
		require.NoError(t, err)
		_, err = m.ParseAndValidate(token)
		assert.Error(t, err)
	})

	t.Run("No Session", func(t *testing.T) {
		claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = m.ParseAndValidate(token)
		assert.Error(t, err)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := m.ParseAndValidate("not.a.token")
		assert.Error(t, err)
	})
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptPasswordHasherWithCost(4)
	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NoError(t, h.Compare(hash, "correct horse"))
	assert.ErrorIs(t, h.Compare(hash, "wrong"), ErrPasswordMismatch)

	err = h.Compare("not-a-hash", "correct horse")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrPasswordMismatch)
}

func TestBcryptCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptPasswordHasher().Cost())
	assert.Equal(t, 4, NewBcryptPasswordHasherWithCost(4).Cost())
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptPasswordHasherWithCost(0).Cost())
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptPasswordHasherWithCost(bcrypt.MaxCost+1).Cost())
}
