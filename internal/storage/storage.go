package storage

//go:generate mockgen -source=storage.go -destination=../../mocks/mock_storage.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/odyssey-auth/internal/models"
)

var (
	// ErrNotFound - запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists - нарушение уникальности (email/username/refresh-token).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UserByEmailOrUsername находит первого пользователя, у которого совпадает
	// email ИЛИ username.
	UserByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error)
	// ListUsers возвращает всех пользователей в порядке регистрации.
	ListUsers(ctx context.Context) ([]models.User, error)
}

// RefreshTokenStorage выполняет операции над refresh-токенами.
type RefreshTokenStorage interface {
	// SaveRefreshToken сохраняет новый refresh-токен.
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByHash находит refresh-токен по его хэшу.
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// DeleteRefreshToken удаляет refresh-токен; ErrNotFound, если его нет.
	DeleteRefreshToken(ctx context.Context, hash string) error
	// DeleteExpiredTokens удаляет все токены с expires_at <= now и
	// возвращает количество удалённых строк.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// Storage задает контракт работы с хранилищем.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	Ping(ctx context.Context) error
	Close()
}
