package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/odyssey-auth/internal/models"
	"github.com/pribylovaa/odyssey-auth/internal/pkg/log"
	"github.com/pribylovaa/odyssey-auth/internal/pkg/redact"
	"github.com/pribylovaa/odyssey-auth/internal/storage"
	"github.com/pribylovaa/odyssey-auth/internal/token"
	"golang.org/x/crypto/bcrypt"
)

// RegisterInput - данные для регистрации.
type RegisterInput struct {
	Name     string
	Username string
	Email    string
	Password string
}

// LoginResult - результат успешного входа.
type LoginResult struct {
	User   *models.User
	Tokens models.TokenPair
}

// RefreshResult - новый access-токен, выданный по refresh-токену.
type RefreshResult struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Register регистрирует нового пользователя.
// Поля проверяются до хэширования пароля, чтобы не тратить bcrypt на заведомо
// неполный запрос.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	const op = "service.auth.Register"

	name := strings.TrimSpace(in.Name)
	username := strings.TrimSpace(in.Username)
	if name == "" || username == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingField)
	}

	email, err := validateEmail(in.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.UserByEmailOrUsername(ctx, email, username)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrDuplicateIdentity)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.tokens.Now(),
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		// Гонка двух регистраций: уникальный индекс срабатывает позже pre-check.
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrDuplicateIdentity)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_registered",
		slog.String("user_id", user.ID.String()),
		slog.String("username", redact.Username(user.Username)),
		slog.String("email", redact.Email(user.Email)),
	)

	return user, nil
}

// Login выполняет вход по e-mail и паролю и выпускает пару токенов.
// Запись refresh-токена сохраняется со сроком, равным exp самого токена.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	const op = "service.auth.Login"

	norm := normalizeEmail(email)
	if norm == "" || password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, norm)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Сравнение с фиктивным хэшем выравнивает время ответа
			// для существующих и несуществующих e-mail.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			log.From(ctx).Info("login_failed",
				slog.String("email", redact.Email(norm)),
				slog.String("reason", "unknown_email"),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		log.From(ctx).Info("login_failed",
			slog.String("email", redact.Email(norm)),
			slog.String("reason", "password_mismatch"),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_logged_in",
		slog.String("user_id", user.ID.String()),
	)

	return &LoginResult{User: user, Tokens: *pair}, nil
}

// Refresh выдаёт новый access-токен по refresh-токену.
// Ротации нет: тот же refresh-токен можно использовать повторно до выхода
// или истечения срока.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	const op = "service.auth.Refresh"

	if refreshToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingToken)
	}

	var email string
	if !s.cfg.SkipRefreshSignature {
		claims, err := s.verify(refreshToken, token.TypeRefresh)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		email = claims.Email
	}

	entry, err := s.lookupRefresh(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	access, exp, err := s.tokens.IssueAccessToken(entry.UserID, email)
	if err != nil {
		log.From(ctx).Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RefreshResult{AccessToken: access, ExpiresAt: exp}, nil
}

// Logout отзывает refresh-токен. Повторный вызов с тем же токеном
// возвращает ErrUnknownToken.
//
// Порядок важен: сначала метка отзыва в кэше, затем удаление строки.
// Если кэш недоступен, строка остаётся, а вызывающий получает ошибку и
// может повторить выход.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	const op = "service.auth.Logout"

	if refreshToken == "" {
		return fmt.Errorf("%s: %w", op, ErrMissingToken)
	}

	hash := hashToken(refreshToken)

	row, err := s.storage.RefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUnknownToken)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.revokeCached(ctx, row); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.DeleteRefreshToken(ctx, hash); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Параллельный logout успел раньше.
			return fmt.Errorf("%s: %w", op, ErrUnknownToken)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_logged_out",
		slog.String("user_id", row.UserID.String()),
	)

	return nil
}

// Authenticate проверяет access-токен и возвращает его claims.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*token.Claims, error) {
	const op = "service.auth.Authenticate"

	if accessToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	claims, err := s.verify(accessToken, token.TypeAccess)
	if err != nil {
		log.From(ctx).Debug("access_token_rejected",
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return claims, nil
}

// UserByID возвращает пользователя по идентификатору.
func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "service.auth.UserByID"

	user, err := s.storage.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// Profiles возвращает всех пользователей в порядке регистрации.
func (s *Service) Profiles(ctx context.Context) ([]models.User, error) {
	const op = "service.auth.Profiles"

	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

// PurgeExpired удаляет просроченные записи refresh-токенов.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	const op = "service.auth.PurgeExpired"

	n, err := s.storage.DeleteExpiredTokens(ctx, s.tokens.Now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// Ping проверяет доступность хранилища (readiness).
func (s *Service) Ping(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

// hashPassword хэширует пароль с помощью bcrypt.
func (s *Service) hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	cost := s.cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(b), nil
}

// checkPassword сравнивает пароль с хэшем.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// validateEmail проверяет базовый формат email и приводит его к нижнему регистру.
func validateEmail(raw string) (string, error) {
	const op = "service.auth.validateEmail"

	email := normalizeEmail(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrMissingField)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return email, nil
}
