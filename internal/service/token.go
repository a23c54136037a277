package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/odyssey-auth/internal/cache"
	"github.com/pribylovaa/odyssey-auth/internal/models"
	"github.com/pribylovaa/odyssey-auth/internal/pkg/log"
	"github.com/pribylovaa/odyssey-auth/internal/storage"
	"github.com/pribylovaa/odyssey-auth/internal/token"
	"golang.org/x/crypto/bcrypt"
)

// maxRefreshAttempts - сколько раз пробуем выпустить refresh-токен при коллизии хэша.
const maxRefreshAttempts = 5

// dummyHash используется в Login, когда пользователя нет.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("odyssey-dummy-password"), bcrypt.DefaultCost)

// hashToken - ключ записи в хранилище: sha256 от строки токена в base64url.
func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// issueTokenPair выпускает access- и refresh-токены и сохраняет запись refresh-токена.
func (s *Service) issueTokenPair(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	const op = "service.token.issueTokenPair"

	lg := log.From(ctx)

	access, accessExp, err := s.tokens.IssueAccessToken(user.ID, user.Email)
	if err != nil {
		lg.Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for attempt := 0; attempt < maxRefreshAttempts; attempt++ {
		refresh, refreshExp, err := s.tokens.IssueRefreshToken(user.ID, user.Email)
		if err != nil {
			lg.Error("refresh_token_sign_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		row := &models.RefreshToken{
			TokenHash: hashToken(refresh),
			UserID:    user.ID,
			CreatedAt: s.tokens.Now(),
			ExpiresAt: refreshExp,
		}

		if err := s.storage.SaveRefreshToken(ctx, row); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				// Редкая коллизия - пробуем выпустить заново.
				continue
			}

			lg.Error("save_refresh_token_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		s.putCached(ctx, row)

		return &models.TokenPair{
			AccessToken:      access,
			RefreshToken:     refresh,
			AccessExpiresAt:  accessExp,
			RefreshExpiresAt: refreshExp,
		}, nil
	}

	lg.Error("refresh_collision_exceeded",
		slog.String("op", op),
	)

	return nil, fmt.Errorf("%s: %w", op, ErrRefreshTokenCollision)
}

// verify проверяет подпись токена и его тип.
func (s *Service) verify(raw, typ string) (*token.Claims, error) {
	const op = "service.token.verify"

	claims, err := s.tokens.Verify(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if claims.Type != typ {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

// lookupRefresh находит неистёкшую запись refresh-токена: сначала в кэше,
// затем в хранилище. Промах кэша заполняет его с TTL = остаток срока.
func (s *Service) lookupRefresh(ctx context.Context, hash string) (*cache.RefreshEntry, error) {
	const op = "service.token.lookupRefresh"

	lg := log.From(ctx)
	now := s.tokens.Now()

	if s.rcache != nil {
		entry, ok, err := s.rcache.Get(ctx, hash)
		switch {
		case err != nil:
			lg.Warn("refresh_cache_get_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		case ok && entry.Revoked:
			lg.Warn("refresh_revoked",
				slog.String("op", op),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrUnknownToken)
		case ok:
			if !now.Before(entry.ExpiresAt) {
				return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
			}

			return entry, nil
		}
	}

	row, err := s.storage.RefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_lookup_not_found",
				slog.String("op", op),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrUnknownToken)
		}

		lg.Error("refresh_lookup_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if row.Expired(now) {
		lg.Warn("refresh_expired",
			slog.String("op", op),
			slog.String("user_id", row.UserID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	s.putCached(ctx, row)

	return &cache.RefreshEntry{UserID: row.UserID, ExpiresAt: row.ExpiresAt}, nil
}

// putCached кладёт запись в кэш. Ошибки кэша не прерывают запрос.
func (s *Service) putCached(ctx context.Context, row *models.RefreshToken) {
	if s.rcache == nil {
		return
	}

	ttl := row.ExpiresAt.Sub(s.tokens.Now())
	entry := &cache.RefreshEntry{UserID: row.UserID, ExpiresAt: row.ExpiresAt}
	if err := s.rcache.Set(ctx, row.TokenHash, entry, ttl); err != nil {
		log.From(ctx).Warn("refresh_cache_set_failed",
			slog.String("err", err.Error()),
		)
	}
}

// revokeCached ставит в кэше метку отзыва на оставшийся срок токена.
// В отличие от putCached ошибка возвращается: без метки живая запись
// в кэше продолжила бы обслуживать /refresh после logout.
func (s *Service) revokeCached(ctx context.Context, row *models.RefreshToken) error {
	const op = "service.token.revokeCached"

	if s.rcache == nil {
		return nil
	}

	ttl := row.ExpiresAt.Sub(s.tokens.Now())
	if err := s.rcache.Revoke(ctx, row.TokenHash, ttl); err != nil {
		log.From(ctx).Error("refresh_cache_revoke_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
