// cache - опциональный Redis-кэш записей refresh-токенов.
// Кэш ускоряет /refresh, но не является источником истины:
// при промахе сервис идёт в хранилище и заполняет кэш.
//
// Отзыв оставляет в кэше метку revoked=1, которую Set не перезаписывает.
// Поэтому запоздалое заполнение кэша после logout не оживляет токен.
package cache

//go:generate mockgen -source=cache.go -destination=../../mocks/mock_cache.go -package=mocks -mock_names=RefreshCache=MockRefreshCache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix - префикс ключей по умолчанию.
const DefaultPrefix = "auth:rt:"

// RefreshEntry описывает данные, которые хранятся в Redis по хэшу refresh-токена.
// Revoked означает метку отзыва: остальные поля пусты.
type RefreshEntry struct {
	UserID    uuid.UUID
	Revoked   bool
	ExpiresAt time.Time
}

// RefreshCache - контракт кэша refresh-токенов.
type RefreshCache interface {
	// Get возвращает запись и признак её наличия в кэше.
	// Отозванный токен возвращается как запись с Revoked = true.
	Get(ctx context.Context, hash string) (*RefreshEntry, bool, error)
	// Set сохраняет запись с TTL (обычно ExpiresAt-now).
	// Поверх метки отзыва ничего не пишется.
	Set(ctx context.Context, hash string, e *RefreshEntry, ttl time.Duration) error
	// Revoke заменяет запись меткой отзыва, живущей ttl.
	Revoke(ctx context.Context, hash string, ttl time.Duration) error
	// Close закрывает клиент Redis.
	Close() error
}

// RedisCache - реализация RefreshCache поверх go-redis.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0)
// и проверяет соединение. Пустой prefix заменяется на DefaultPrefix.
func NewRedisCache(ctx context.Context, redisURL, prefix string) (*RedisCache, error) {
	const op = "cache.NewRedisCache"

	if prefix == "" {
		prefix = DefaultPrefix
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *RedisCache) key(hash string) string { return c.prefix + hash }

// setLiveScript пишет запись, только если ключ не помечен как отозванный.
var setLiveScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'revoked') == '1' then
  return 0
end
redis.call('HSET', KEYS[1], 'uid', ARGV[1], 'exp', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// Get читает Redis Hash с полями uid и exp (unix).
func (c *RedisCache) Get(ctx context.Context, hash string) (*RefreshEntry, bool, error) {
	const op = "cache.Get"

	m, err := c.rdb.HGetAll(ctx, c.key(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	if len(m) == 0 {
		return nil, false, nil
	}

	if m["revoked"] == "1" {
		return &RefreshEntry{Revoked: true}, true, nil
	}

	uid, err := uuid.Parse(m["uid"])
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	expUnix, err := strconv.ParseInt(m["exp"], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	return &RefreshEntry{
		UserID:    uid,
		ExpiresAt: time.Unix(expUnix, 0).UTC(),
	}, true, nil
}

// Set атомарно (Lua) записывает uid, exp и TTL. ttl <= 0 ничего не пишет.
func (c *RedisCache) Set(ctx context.Context, hash string, e *RefreshEntry, ttl time.Duration) error {
	const op = "cache.Set"

	if ttl <= 0 {
		return nil
	}

	err := setLiveScript.Run(ctx, c.rdb, []string{c.key(hash)},
		e.UserID.String(),
		strconv.FormatInt(e.ExpiresAt.Unix(), 10),
		ttl.Milliseconds(),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Revoke одной транзакцией удаляет запись и ставит метку отзыва.
// При ttl <= 0 запись только удаляется: токен уже истёк сам.
func (c *RedisCache) Revoke(ctx context.Context, hash string, ttl time.Duration) error {
	const op = "cache.Revoke"

	key := c.key(hash)

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if ttl > 0 {
		pipe.HSet(ctx, key, "revoked", "1")
		pipe.PExpire(ctx, key, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Ping проверяет доступность Redis (используется /healthz).
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) Close() error { return c.rdb.Close() }
