package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/odyssey-auth/internal/models"
	"github.com/pribylovaa/odyssey-auth/internal/storage"
	"github.com/stretchr/testify/require"
)

func newUser(username, email string) *models.User {
	return &models.User{
		ID:           uuid.New(),
		Name:         "Test " + username,
		Username:     username,
		Email:        email,
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestIntegration_SaveUser_And_Lookup_OK(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	u := newUser("alice", "alice@example.com")
	require.NoError(t, st.SaveUser(ctx, u))

	byEmail, err := st.UserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)
	require.Equal(t, "alice", byEmail.Username)
	require.Equal(t, "Test alice", byEmail.Name)

	byID, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, byID.Email)
	require.WithinDuration(t, u.CreatedAt, byID.CreatedAt, time.Second)
}

func TestIntegration_SaveUser_UniqueEmailAndUsername(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, st.SaveUser(ctx, newUser("bob", "bob@example.com")))

	// Тот же email, другой username.
	err := st.SaveUser(ctx, newUser("bobby", "bob@example.com"))
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	// Тот же username, другой email.
	err = st.SaveUser(ctx, newUser("bob", "other@example.com"))
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestIntegration_UserByEmailOrUsername(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	u := newUser("carol", "carol@example.com")
	require.NoError(t, st.SaveUser(ctx, u))

	got, err := st.UserByEmailOrUsername(ctx, "carol@example.com", "nobody")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	got, err = st.UserByEmailOrUsername(ctx, "nobody@example.com", "carol")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = st.UserByEmailOrUsername(ctx, "nobody@example.com", "nobody")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_UserLookup_NotFound(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()

	_, err := st.UserByEmail(ctx, "missing@example.com")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.UserByID(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_ListUsers_Ordered(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	require.Empty(t, users)

	first := newUser("first", "first@example.com")
	second := newUser("second", "second@example.com")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, st.SaveUser(ctx, second))
	require.NoError(t, st.SaveUser(ctx, first))

	users, err = st.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "first", users[0].Username)
	require.Equal(t, "second", users[1].Username)
}

func TestIntegration_UserByEmail_ContextCanceled(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.UserByEmail(ctx, "any@example.com")
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}
