package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Интеграционные тесты кэша поднимают redis:7-alpine через testcontainers-go.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/cache -v -count=1

func startRedis(t *testing.T) (*RedisCache, func()) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	rc, err := NewRedisCache(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()), "")
	require.NoError(t, err)

	cleanup := func() {
		_ = rc.Close()
		_ = c.Terminate(context.Background())
	}
	return rc, cleanup
}

func TestNewRedisCache_BadURL(t *testing.T) {
	t.Parallel()

	_, err := NewRedisCache(context.Background(), "://bad", "")
	require.Error(t, err)
}

func TestIntegration_SetGetRevoke(t *testing.T) {
	rc, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()
	hash := "h-" + uuid.NewString()
	entry := &RefreshEntry{
		UserID:    uuid.New(),
		ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}

	_, ok, err := rc.Get(ctx, hash)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, rc.Set(ctx, hash, entry, time.Hour))

	got, ok, err := rc.Get(ctx, hash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.UserID, got.UserID)
	require.True(t, entry.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, rc.Revoke(ctx, hash, time.Hour))
	got, ok, err = rc.Get(ctx, hash)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Revoked)

	// Повторный отзыв не ошибка.
	require.NoError(t, rc.Revoke(ctx, hash, time.Hour))
}

func TestIntegration_SetDoesNotOverwriteRevoked(t *testing.T) {
	rc, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()
	hash := "late-" + uuid.NewString()

	require.NoError(t, rc.Revoke(ctx, hash, time.Hour))
	require.NoError(t, rc.Set(ctx, hash, &RefreshEntry{
		UserID:    uuid.New(),
		ExpiresAt: time.Now().Add(time.Hour),
	}, time.Hour))

	got, ok, err := rc.Get(ctx, hash)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Revoked)
	require.Equal(t, uuid.Nil, got.UserID)
}

func TestIntegration_RevokeNonPositiveTTL_OnlyDeletes(t *testing.T) {
	rc, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()
	hash := "gone-" + uuid.NewString()

	require.NoError(t, rc.Set(ctx, hash, &RefreshEntry{UserID: uuid.New(), ExpiresAt: time.Now().Add(time.Hour)}, time.Hour))
	require.NoError(t, rc.Revoke(ctx, hash, 0))

	_, ok, err := rc.Get(ctx, hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIntegration_TTLExpires(t *testing.T) {
	rc, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()
	hash := "ttl-" + uuid.NewString()
	entry := &RefreshEntry{UserID: uuid.New(), ExpiresAt: time.Now().Add(time.Second)}

	require.NoError(t, rc.Set(ctx, hash, entry, time.Second))

	require.Eventually(t, func() bool {
		_, ok, err := rc.Get(ctx, hash)
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond)
}

func TestIntegration_NonPositiveTTL_Skipped(t *testing.T) {
	rc, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()
	hash := "zero-" + uuid.NewString()

	require.NoError(t, rc.Set(ctx, hash, &RefreshEntry{UserID: uuid.New()}, 0))

	_, ok, err := rc.Get(ctx, hash)
	require.NoError(t, err)
	require.False(t, ok)
}
