package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pribylovaa/odyssey-auth/internal/models"
	"github.com/pribylovaa/odyssey-auth/internal/storage"
)

const (
	// Конфликт по хэшу не поднимает ошибку: вставка просто не происходит,
	// а вызывающий получает ErrAlreadyExists и выпускает новый токен.
	insertRefreshSQL = `INSERT INTO refresh_tokens (token_hash, user_id, created_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (token_hash) DO NOTHING`

	selectRefreshSQL = `SELECT token_hash, user_id, created_at, expires_at
FROM refresh_tokens WHERE token_hash = $1`

	deleteRefreshSQL = `DELETE FROM refresh_tokens WHERE token_hash = $1`

	purgeRefreshSQL = `DELETE FROM refresh_tokens WHERE expires_at <= $1`
)

// SaveRefreshToken записывает выданный refresh-токен.
// Повтор хэша даёт storage.ErrAlreadyExists, неизвестный владелец даёт storage.ErrNotFound.
func (s *Storage) SaveRefreshToken(ctx context.Context, rt *models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	tag, err := s.db.Exec(ctx, insertRefreshSQL, rt.TokenHash, rt.UserID, rt.CreatedAt, rt.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("%s: user %s: %w", op, rt.UserID, storage.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	return nil
}

// RefreshTokenByHash возвращает запись токена. Просроченные записи тоже
// возвращаются: решение об истечении принимает сервис.
func (s *Storage) RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByHash"

	rows, err := s.db.Query(ctx, selectRefreshSQL, hash)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rt, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[models.RefreshToken])
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rt, nil
}

// DeleteRefreshToken отзывает токен. Отсутствующая запись даёт storage.ErrNotFound.
func (s *Storage) DeleteRefreshToken(ctx context.Context, hash string) error {
	const op = "storage.postgres.DeleteRefreshToken"

	tag, err := s.db.Exec(ctx, deleteRefreshSQL, hash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// DeleteExpiredTokens чистит записи с expires_at <= now.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredTokens"

	tag, err := s.db.Exec(ctx, purgeRefreshSQL, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}
