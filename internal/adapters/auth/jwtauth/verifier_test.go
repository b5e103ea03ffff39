package jwtauth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestVerify_OK(t *testing.T) {
	v, err := NewVerifier(secret)
	require.NoError(t, err)

	tok := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub":   "user-1",
		"email": "a@b.c",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	c, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", c.UserID)
	assert.Equal(t, "a@b.c", c.Email)
}

func TestVerify_UserIDFallback(t *testing.T) {
	v, _ := NewVerifier(secret)
	tok := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"user_id": "u2"})

	c, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "u2", c.UserID)
}

func TestVerify_Rejects(t *testing.T) {
	v, _ := NewVerifier(secret)
	ctx := context.Background()

	_, err := v.Verify(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(ctx, sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "u"}))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(ctx, sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub": "u",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(ctx, sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"email": "x"}))
	assert.ErrorIs(t, err, ErrMissingUserID)

	_, err = NewVerifier("  ")
	assert.ErrorIs(t, err, ErrNoSecret)
}
