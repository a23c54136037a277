// memory - потокобезопасная in-memory реализация storage.Storage.
// Используется в тестах и в окружении local (db.driver: memory);
// данные живут до остановки процесса.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/odyssey-auth/internal/models"
	"github.com/pribylovaa/odyssey-auth/internal/storage"
)

type Storage struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]models.User
	emails  map[string]uuid.UUID
	names   map[string]uuid.UUID
	refresh map[string]models.RefreshToken
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		users:   make(map[uuid.UUID]models.User),
		emails:  make(map[string]uuid.UUID),
		names:   make(map[string]uuid.UUID),
		refresh: make(map[string]models.RefreshToken),
	}
}

// SaveUser создает нового пользователя.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.memory.SaveUser"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	if _, ok := s.emails[user.Email]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	if _, ok := s.names[user.Username]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	s.users[user.ID] = *user
	s.emails[user.Email] = user.ID
	s.names[user.Username] = user.ID

	return nil
}

// UserByEmail находит пользователя по email.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.memory.UserByEmail"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[email]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	u := s.users[id]
	return &u, nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.memory.UserByID"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return &u, nil
}

// UserByEmailOrUsername находит пользователя по email или username.
func (s *Storage) UserByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error) {
	const op = "storage.memory.UserByEmailOrUsername"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.emails[email]; ok {
		u := s.users[id]
		return &u, nil
	}
	if id, ok := s.names[username]; ok {
		u := s.users[id]
		return &u, nil
	}

	return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
}

// ListUsers возвращает всех пользователей в порядке регистрации.
func (s *Storage) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.memory.ListUsers"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID.String() < users[j].ID.String()
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})

	return users, nil
}

// SaveRefreshToken сохраняет новый refresh-токен.
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.memory.SaveRefreshToken"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[token.UserID]; !ok {
		return fmt.Errorf("%s: user %s: %w", op, token.UserID, storage.ErrNotFound)
	}
	if _, ok := s.refresh[token.TokenHash]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	s.refresh[token.TokenHash] = *token

	return nil
}

// RefreshTokenByHash находит refresh-токен по его хэшу.
func (s *Storage) RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	const op = "storage.memory.RefreshTokenByHash"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.refresh[hash]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return &t, nil
}

// DeleteRefreshToken удаляет refresh-токен по хэшу.
func (s *Storage) DeleteRefreshToken(ctx context.Context, hash string) error {
	const op = "storage.memory.DeleteRefreshToken"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refresh[hash]; !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	delete(s.refresh, hash)

	return nil
}

// DeleteExpiredTokens удаляет все токены с expires_at <= now.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.memory.DeleteExpiredTokens"

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, t := range s.refresh {
		if !t.ExpiresAt.After(now) {
			delete(s.refresh, hash)
			n++
		}
	}

	return n, nil
}

// Ping всегда успешен.
func (s *Storage) Ping(ctx context.Context) error { return ctx.Err() }

// Close - no-op.
func (s *Storage) Close() {}

var _ storage.Storage = (*Storage)(nil)
