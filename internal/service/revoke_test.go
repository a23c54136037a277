package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pribylovaa/odyssey-auth/internal/cache"
	"github.com/pribylovaa/odyssey-auth/internal/models"
	"github.com/pribylovaa/odyssey-auth/internal/storage"
	"github.com/pribylovaa/odyssey-auth/internal/storage/memory"
	"github.com/pribylovaa/odyssey-auth/internal/token"
	"github.com/stretchr/testify/require"
)

// Сценарии отзыва refresh-токена при включённом кэше.

// memCache повторяет семантику RedisCache: Set не пишет поверх метки отзыва.
type memCache struct {
	mu        sync.Mutex
	entries   map[string]cache.RefreshEntry
	revokeErr error
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]cache.RefreshEntry)}
}

func (c *memCache) Get(_ context.Context, hash string) (*cache.RefreshEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[hash]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

func (c *memCache) Set(_ context.Context, hash string, e *cache.RefreshEntry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 || c.entries[hash].Revoked {
		return nil
	}
	c.entries[hash] = *e
	return nil
}

func (c *memCache) Revoke(_ context.Context, hash string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.revokeErr != nil {
		return c.revokeErr
	}
	delete(c.entries, hash)
	if ttl > 0 {
		c.entries[hash] = cache.RefreshEntry{Revoked: true}
	}
	return nil
}

func (c *memCache) Close() error { return nil }

func (c *memCache) failRevoke(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revokeErr = err
}

// interleavedStore выполняет afterLookup один раз сразу после чтения строки
// refresh-токена, до того как вызывающий успеет заполнить кэш.
type interleavedStore struct {
	storage.Storage

	armed       bool
	afterLookup func()
}

func (s *interleavedStore) RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	row, err := s.Storage.RefreshTokenByHash(ctx, hash)
	if s.armed && err == nil {
		// Снимаем флаг до вызова: afterLookup сам читает строку.
		s.armed = false
		s.afterLookup()
	}
	return row, err
}

func newCachedFlow(t *testing.T, st storage.Storage) *Service {
	t.Helper()

	iss, err := token.New(testCfg(), token.WithClock(func() time.Time { return t0 }))
	require.NoError(t, err)

	return New(st, iss, testCfg())
}

func TestRevoke_CacheFailureFailsLogout_RetryRevokes(t *testing.T) {
	t.Parallel()

	svc := newCachedFlow(t, memory.New())
	rc := newMemCache()
	svc.SetRefreshCache(rc)
	ctx := context.Background()

	_, err := svc.Register(ctx, validInput())
	require.NoError(t, err)
	res, err := svc.Login(ctx, "odysseus@ithaca.gr", "penelope")
	require.NoError(t, err)
	rt := res.Tokens.RefreshToken

	redisDown := errors.New("redis down")
	rc.failRevoke(redisDown)

	err = svc.Logout(ctx, rt)
	require.ErrorIs(t, err, redisDown)
	require.Equal(t, KindPersistence, Kind(err))

	// Выход не состоялся: токен по-прежнему действует.
	_, err = svc.Refresh(ctx, rt)
	require.NoError(t, err)

	rc.failRevoke(nil)
	require.NoError(t, svc.Logout(ctx, rt))

	_, err = svc.Refresh(ctx, rt)
	require.ErrorIs(t, err, ErrUnknownToken)
}

func TestRevoke_LateCacheFillAfterLogout_Ignored(t *testing.T) {
	t.Parallel()

	st := &interleavedStore{Storage: memory.New()}
	svc := newCachedFlow(t, st)
	ctx := context.Background()

	_, err := svc.Register(ctx, validInput())
	require.NoError(t, err)
	res, err := svc.Login(ctx, "odysseus@ithaca.gr", "penelope")
	require.NoError(t, err)
	rt := res.Tokens.RefreshToken

	// Кэш подключается после входа, чтобы Refresh пошёл в хранилище.
	rc := newMemCache()
	svc.SetRefreshCache(rc)

	var logoutErr error
	st.afterLookup = func() { logoutErr = svc.Logout(ctx, rt) }
	st.armed = true

	// Refresh прочитал строку до logout и поэтому успешен.
	_, err = svc.Refresh(ctx, rt)
	require.NoError(t, err)
	require.NoError(t, logoutErr)

	entry, ok, err := rc.Get(ctx, hashToken(rt))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, entry.Revoked)

	_, err = svc.Refresh(ctx, rt)
	require.ErrorIs(t, err, ErrUnknownToken)

	require.ErrorIs(t, svc.Logout(ctx, rt), ErrUnknownToken)
}
