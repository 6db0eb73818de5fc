package service

import (
	"context"
	"testing"
	"time"

	"parkease/internal/domain"
	"parkease/internal/repository/memory"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_LoginAndValidate(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(memory.NewStore().Users(), "secret", time.Hour)

	user, err := auth.EnsureUser(ctx, "root", "hunter2", domain.RoleAdmin)
	require.NoError(t, err)

	again, err := auth.EnsureUser(ctx, "root", "other", domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID, "existing users are left alone")

	_, err = auth.Login(ctx, domain.LoginUserDTO{Username: "root", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.Login(ctx, domain.LoginUserDTO{Username: "nobody", Password: "x"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err := auth.Login(ctx, domain.LoginUserDTO{Username: "root", Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, resp.Role)

	id, err := auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{UserID: user.ID, IsAdmin: true}, id)
}

func TestAuth_ValidateTokenRejects(t *testing.T) {
	auth := NewAuthService(memory.NewStore().Users(), "secret", time.Hour)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "5", "exp": time.Now().Add(-time.Minute).Unix(),
	})
	expiredToken, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "5", "exp": time.Now().Add(time.Hour).Unix(),
	})
	foreignToken, err := foreign.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	noSubjectToken, err := noSubject.SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"malformed":  "not-a-jwt",
		"expired":    expiredToken,
		"bad secret": foreignToken,
		"no subject": noSubjectToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := auth.ValidateToken(token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestAuth_ProfileAndUpdateUsername(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(memory.NewStore().Users(), "secret", time.Hour)
	alice, err := auth.EnsureUser(ctx, "alice", "pw", domain.RoleUser)
	require.NoError(t, err)
	_, err = auth.EnsureUser(ctx, "bob", "pw", domain.RoleUser)
	require.NoError(t, err)

	profile, err := auth.Profile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)

	_, err = auth.Profile(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = auth.UpdateUsername(ctx, alice.ID, "bob")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = auth.UpdateUsername(ctx, alice.ID, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	same, err := auth.UpdateUsername(ctx, alice.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", same.Username)

	renamed, err := auth.UpdateUsername(ctx, alice.ID, " alicia ")
	require.NoError(t, err)
	assert.Equal(t, "alicia", renamed.Username)

	_, err = auth.Login(ctx, domain.LoginUserDTO{Username: "alicia", Password: "pw"})
	assert.NoError(t, err)
	_, err = auth.Login(ctx, domain.LoginUserDTO{Username: "alice", Password: "pw"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
