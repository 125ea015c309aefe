package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/repository"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/service"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_RoundTrip(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "Анна", "anna@example.com", models.RoleAnalyst, models.PermDownloadModels)

	// Act
	token, err := env.sessions.CreateSession(user)
	require.NoError(t, err)
	resolved := env.sessions.ResolveSession(context.Background(), token)

	// Assert
	require.NotNil(t, resolved)
	assert.Equal(t, user.ID, resolved.ID)
	assert.Equal(t, "Анна", resolved.Name)
	assert.Equal(t, []models.Permission{models.PermDownloadModels}, []models.Permission(resolved.Permissions))
}

func TestSession_RejectedAtExpiryInstant(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	user := testutil.CreateAdmin(t, env.db)

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	sessions := service.NewSessionService(repository.NewUserRepository(env.db), env.audit, "test-secret", 7*24*time.Hour).
		WithClock(func() time.Time { return now })

	token, err := sessions.CreateSession(user)
	require.NoError(t, err)

	// Act & Assert
	now = issued.Add(7*24*time.Hour - time.Second)
	assert.NotNil(t, sessions.ResolveSession(context.Background(), token), "valid just before expiry")

	now = issued.Add(7 * 24 * time.Hour)
	assert.Nil(t, sessions.ResolveSession(context.Background(), token), "rejected at the expiry instant")

	now = issued.Add(30 * 24 * time.Hour)
	assert.Nil(t, sessions.ResolveSession(context.Background(), token))
}

func TestSession_InvalidTokensResolveToNil(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	user := testutil.CreateAdmin(t, env.db)
	ghost := &models.User{Name: "ghost"}
	ghost.ID = user.ID
	ghost.ID[0] ^= 0xff

	foreign := service.NewSessionService(repository.NewUserRepository(env.db), env.audit, "other-secret", time.Hour)
	forged, err := foreign.CreateSession(user)
	require.NoError(t, err)
	unknown, err := env.sessions.CreateSession(ghost)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong signature", forged},
		{"unknown user", unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, env.sessions.ResolveSession(context.Background(), tt.token))
		})
	}
}

func TestSession_DeletedUserResolvesToNil(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "temp", "temp@example.com", models.RoleEmployee)
	token, err := env.sessions.CreateSession(user)
	require.NoError(t, err)

	// Act
	_, err = repository.NewUserRepository(env.db).DeleteUser(context.Background(), user.ID)
	require.NoError(t, err)

	// Assert
	assert.Nil(t, env.sessions.ResolveSession(context.Background(), token))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db)

	t.Run("email is case-insensitive", func(t *testing.T) {
		user, token, err := env.sessions.Login(context.Background(), "  ADMIN@Example.com ", testutil.DefaultPassword)

		require.NoError(t, err)
		assert.Equal(t, admin.ID, user.ID)
		assert.NotEmpty(t, token)
		assert.Equal(t, admin.ID, env.sessions.ResolveSession(context.Background(), token).ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := env.sessions.Login(context.Background(), "admin@example.com", "nope-nope")
		assert.True(t, errors.Is(err, apperr.ErrUnauthorized), "got %v", err)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := env.sessions.Login(context.Background(), "nobody@example.com", testutil.DefaultPassword)
		assert.True(t, errors.Is(err, apperr.ErrUnauthorized), "got %v", err)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, _, err := env.sessions.Login(context.Background(), "", "")
		assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
	})

	assert.Equal(t, int64(1), testutil.CountLogs(t, env.db, service.ActionLogin))
}
