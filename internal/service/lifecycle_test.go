package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manabi-dev/manabi/internal/domain"
	"github.com/manabi-dev/manabi/internal/session"
	"github.com/manabi-dev/manabi/internal/token"
)

// These scenarios run the service against a real token service and a real
// registry over an in-memory redis, so revocation is exercised end to end
// instead of through mocks.

func newLifecycleAuth(t *testing.T, storage *MockUserStorage) (*Auth, *session.Registry) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	registry := session.New(client, time.Second)
	tokens := token.New("access-secret", "refresh-secret", 15*time.Minute, time.Hour, registry)
	return NewAuth(storage, registry, tokens, &MockEmail{}, "http://client.test", time.Hour, time.Hour), registry
}

func lifecycleStorage(t *testing.T) *MockUserStorage {
	user := domain.User{
		Id:           1,
		Email:        "student@example.com",
		PasswordHash: hashFor(t, "password123"),
		Role:         domain.RoleGeneral,
		IsVerified:   true,
		IsActive:     true,
	}
	return &MockUserStorage{
		UserByEmailFunc: func(email domain.Email) (domain.User, error) { return user, nil },
		UserByIdFunc:    func(id domain.UserId) (domain.User, error) { return user, nil },
	}
}

func TestLoginRefreshLogout(t *testing.T) {
	ctx := context.Background()
	auth, _ := newLifecycleAuth(t, lifecycleStorage(t))

	pair, err := auth.Login(ctx, "student@example.com", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, pair.Refresh)

	// A live refresh token mints new access tokens
	access, err := auth.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, access)

	auth.Logout(ctx, pair.Access, pair.Refresh)

	// After logout the same refresh token is dead despite its valid signature
	_, err = auth.Refresh(ctx, pair.Refresh)
	assert.Error(t, err)
}

func TestPasswordChangeRevokesEverySession(t *testing.T) {
	ctx := context.Background()
	storage := lifecycleStorage(t)
	auth, _ := newLifecycleAuth(t, storage)

	first, err := auth.Login(ctx, "student@example.com", "password123")
	require.NoError(t, err)
	second, err := auth.Login(ctx, "student@example.com", "password123")
	require.NoError(t, err)
	require.NotEqual(t, first.Refresh, second.Refresh)

	require.NoError(t, auth.ChangePassword(ctx, 1, "password123", "a-new-password"))

	_, err = auth.Refresh(ctx, first.Refresh)
	assert.Error(t, err)
	_, err = auth.Refresh(ctx, second.Refresh)
	assert.Error(t, err)
}

func TestLogoutOnlyRevokesItsOwnSession(t *testing.T) {
	ctx := context.Background()
	auth, _ := newLifecycleAuth(t, lifecycleStorage(t))

	laptop, err := auth.Login(ctx, "student@example.com", "password123")
	require.NoError(t, err)
	phone, err := auth.Login(ctx, "student@example.com", "password123")
	require.NoError(t, err)

	auth.Logout(ctx, laptop.Access, laptop.Refresh)

	_, err = auth.Refresh(ctx, laptop.Refresh)
	assert.Error(t, err)

	_, err = auth.Refresh(ctx, phone.Refresh)
	assert.NoError(t, err)
}
