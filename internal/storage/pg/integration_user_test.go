package pg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manabi-dev/manabi/internal/domain"
	internal_errors "github.com/manabi-dev/manabi/internal/errors"
)

func testUser(email domain.Email) domain.User {
	return domain.User{
		Email:               email,
		Name:                "Test Student",
		PasswordHash:        "$2a$12$fakefakefakefakefakefake",
		Role:                domain.RoleGeneral,
		IsActive:            true,
		VerificationCode:    "abc123",
		VerificationExpires: time.Now().UTC().Add(time.Hour),
		PasswordHistory:     []string{"$2a$12$fakefakefakefakefakefake"},
	}
}

func requireNotFound(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	e, ok := err.(*internal_errors.ErrorWithStatusCode)
	require.True(t, ok, "Expected ErrorWithStatusCode, got %T", err)
	assert.Equal(t, 404, e.StatusCode)
}

func TestSaveUser(t *testing.T) {
	id, err := storage.SaveUser(testUser("save@example.com"))
	require.NoError(t, err, "SaveUser should not return an error")
	assert.Greater(t, id, int64(0), "Expected ID > 0")

	_, err = storage.SaveUser(testUser("save@example.com"))
	require.Error(t, err, "Saving the same email twice should return an error")
	e, ok := err.(*internal_errors.ErrorWithStatusCode)
	require.True(t, ok)
	assert.Equal(t, 400, e.StatusCode)
}

func TestUserByEmail(t *testing.T) {
	saved := testUser("byemail@example.com")
	id, err := storage.SaveUser(saved)
	require.NoError(t, err)

	user, err := storage.UserByEmail("byemail@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, user.Id)
	assert.Equal(t, saved.Email, user.Email)
	assert.Equal(t, saved.Name, user.Name)
	assert.Equal(t, saved.PasswordHash, user.PasswordHash)
	assert.Equal(t, domain.RoleGeneral, user.Role)
	assert.False(t, user.IsVerified)
	assert.True(t, user.IsActive)
	assert.Equal(t, saved.VerificationCode, user.VerificationCode)
	assert.Equal(t, saved.PasswordHistory, user.PasswordHistory)
	assert.False(t, user.CreatedAt.IsZero())

	_, err = storage.UserByEmail("nonexistent@example.com")
	requireNotFound(t, err)
}

func TestUserById(t *testing.T) {
	id, err := storage.SaveUser(testUser("byid@example.com"))
	require.NoError(t, err)

	user, err := storage.UserById(id)
	require.NoError(t, err)
	assert.Equal(t, "byid@example.com", user.Email)

	_, err = storage.UserById(99999)
	requireNotFound(t, err)
}

func TestSaveUserWithoutPassword(t *testing.T) {
	user := testUser("federated@example.com")
	user.PasswordHash = ""
	user.PasswordHistory = nil

	id, err := storage.SaveUser(user)
	require.NoError(t, err)

	loaded, err := storage.UserById(id)
	require.NoError(t, err)
	assert.Empty(t, loaded.PasswordHash)
	assert.Empty(t, loaded.PasswordHistory)
}

func TestUpdateUser(t *testing.T) {
	id, err := storage.SaveUser(testUser("update@example.com"))
	require.NoError(t, err)

	user, err := storage.UserById(id)
	require.NoError(t, err)

	user.PasswordHash = "$2a$12$newhashnewhashnewhashnew"
	user.PushPasswordHistory(user.PasswordHash)
	user.IsVerified = true
	user.VerificationCode = ""
	user.VerificationExpires = time.Time{}
	user.ResetTokenHash = "deadbeef"
	user.ResetExpires = time.Now().UTC().Add(time.Hour)
	user.Role = domain.RoleOfficial

	require.NoError(t, storage.UpdateUser(user))

	loaded, err := storage.UserById(id)
	require.NoError(t, err)
	assert.Equal(t, user.PasswordHash, loaded.PasswordHash)
	assert.Len(t, loaded.PasswordHistory, 2)
	assert.True(t, loaded.IsVerified)
	assert.Empty(t, loaded.VerificationCode)
	assert.True(t, loaded.VerificationExpires.IsZero())
	assert.Equal(t, "deadbeef", loaded.ResetTokenHash)
	assert.False(t, loaded.ResetExpires.IsZero())
	assert.Equal(t, domain.RoleOfficial, loaded.Role)

	missing := user
	missing.Id = 99999
	requireNotFound(t, storage.UpdateUser(missing))
}

func TestUpdateEmail(t *testing.T) {
	id, err := storage.SaveUser(testUser("before@example.com"))
	require.NoError(t, err)

	require.NoError(t, storage.UpdateEmail(id, "after@example.com"))

	user, err := storage.UserById(id)
	require.NoError(t, err)
	assert.Equal(t, "after@example.com", user.Email)

	_, err = storage.UserByEmail("before@example.com")
	requireNotFound(t, err)

	requireNotFound(t, storage.UpdateEmail(99999, "ghost@example.com"))
}

func TestDeleteUser(t *testing.T) {
	id, err := storage.SaveUser(testUser("delete@example.com"))
	require.NoError(t, err)

	require.NoError(t, storage.DeleteUser(id))

	_, err = storage.UserById(id)
	requireNotFound(t, err)

	requireNotFound(t, storage.DeleteUser(id))
}

func TestPasswordHistoryRoundTrip(t *testing.T) {
	user := testUser("history@example.com")
	user.PasswordHistory = []string{"h1", "h2", "h3", "h4", "h5"}

	id, err := storage.SaveUser(user)
	require.NoError(t, err)

	loaded, err := storage.UserById(id)
	require.NoError(t, err)
	assert.Equal(t, user.PasswordHistory, loaded.PasswordHistory)
}
