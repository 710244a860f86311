package main

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuth(t *testing.T) (*Auth, *DB) {
	t.Helper()
	prev := bcryptCost
	bcryptCost = bcrypt.MinCost
	t.Cleanup(func() { bcryptCost = prev })
	db := newTestDB(t)
	return NewAuth(db, zaptest.NewLogger(t)), db
}

func TestRegisterAndLogin(t *testing.T) {
	a, _ := newTestAuth(t)

	id, token, err := a.Register("  ace  ", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	gotID, name, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, "ace", name, "username is trimmed")

	loginID, _, err := a.Login("ace", "hunter2", "1.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, id, loginID)

	_, _, err = a.Login("ace", "wrong", "1.1.1.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = a.Login("nobody", "hunter2", "1.1.1.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	a, _ := newTestAuth(t)

	_, _, err := a.Register("a", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidUsername)
	_, _, err = a.Register("abcdefghijklmnopq", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidUsername)
	_, _, err = a.Register("ace", "abc")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, _, err = a.Register("ace", "hunter2")
	require.NoError(t, err)
	_, _, err = a.Register("ace", "hunter3")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestSecretPersists(t *testing.T) {
	a, db := newTestAuth(t)
	_, token, err := a.Register("ace", "hunter2")
	require.NoError(t, err)

	again := NewAuth(db, nil)
	_, _, err = again.ValidateToken(token)
	assert.NoError(t, err, "a restarted server accepts earlier tokens")
}

func TestValidateTokenRejects(t *testing.T) {
	a, _ := newTestAuth(t)

	_, _, err := a.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"pid": 1, "usr": "ace"})
	s, _ := forged.SignedString([]byte("some other secret"))
	_, _, err = a.ValidateToken(s)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"pid": 1, "usr": "ace", "exp": time.Now().Add(-time.Hour).Unix(),
	})
	s, _ = expired.SignedString(a.signingKey)
	_, _, err = a.ValidateToken(s)
	assert.ErrorIs(t, err, ErrInvalidToken)

	missing := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"usr": "ace"})
	s, _ = missing.SignedString(a.signingKey)
	_, _, err = a.ValidateToken(s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLoginRateLimit(t *testing.T) {
	a, _ := newTestAuth(t)
	for i := 0; i < maxLoginAttempts; i++ {
		_, _, err := a.Login("nobody", "x", "9.9.9.9")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, _, err := a.Login("nobody", "x", "9.9.9.9")
	assert.ErrorIs(t, err, ErrRateLimited)

	_, _, err = a.Login("nobody", "x", "8.8.8.8")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "limits are per ip")
}

func TestLoginLimiterWindowResets(t *testing.T) {
	l := newLoginLimiter(2, time.Minute)
	now := time.Now()
	assert.True(t, l.allow("ip", now))
	assert.True(t, l.allow("ip", now))
	assert.False(t, l.allow("ip", now))
	assert.True(t, l.allow("ip", now.Add(2*time.Minute)), "a new window starts after the span")
}
