// token выпускает и проверяет подписанные JWT (HS256) для access- и refresh-токенов.
//
// Набор claims: id, email, iat, exp, jti, iss и typ. jti (uuid) делает
// токены уникальными даже при выпуске в одну и ту же секунду.
// Токен считается истёкшим, когда now >= exp (с учётом leeway).
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pribylovaa/odyssey-auth/internal/config"
)

// Типы токенов (claim "typ").
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	// ErrEmptySecret - секрет подписи не задан; сервис не должен стартовать.
	ErrEmptySecret = errors.New("jwt secret is empty")
	// ErrInvalidSignature - подпись не сходится, алгоритм не HS256,
	// токен повреждён или выпущен другим issuer.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired - срок действия токена истёк.
	ErrExpired = errors.New("token expired")
)

// Claims - полезная нагрузка токена.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// UID разбирает идентификатор пользователя из claims.
func (c *Claims) UID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

// Option настраивает Issuer.
type Option func(*Issuer)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// Issuer подписывает и проверяет токены одним секретом.
// Безопасен для конкурентного использования.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
	now        func() time.Time
}

// New создаёт Issuer из конфигурации.
func New(cfg config.AuthConfig, opts ...Option) (*Issuer, error) {
	const op = "token.issuer.New"

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptySecret)
	}

	i := &Issuer{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		leeway:     cfg.Leeway,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(i)
	}

	return i, nil
}

// Now возвращает текущее время по часам Issuer.
func (i *Issuer) Now() time.Time {
	return i.now()
}

// IssueAccessToken выпускает короткоживущий access-токен.
func (i *Issuer) IssueAccessToken(userID uuid.UUID, email string) (string, time.Time, error) {
	const op = "token.issuer.IssueAccessToken"

	signed, exp, err := i.issue(userID, email, TypeAccess, i.accessTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// IssueRefreshToken выпускает долгоживущий refresh-токен.
// Сам по себе он не даёт доступа: валидность определяется записью в хранилище.
func (i *Issuer) IssueRefreshToken(userID uuid.UUID, email string) (string, time.Time, error) {
	const op = "token.issuer.IssueRefreshToken"

	signed, exp, err := i.issue(userID, email, TypeRefresh, i.refreshTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

func (i *Issuer) issue(userID uuid.UUID, email, typ string, ttl time.Duration) (string, time.Time, error) {
	now := i.now()

	claims := Claims{
		UserID: userID.String(),
		Email:  email,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	// NumericDate округляет до секунд: возвращаем ровно то, что лежит в токене.
	return signed, claims.ExpiresAt.Time.UTC(), nil
}

// Verify проверяет подпись, алгоритм, issuer и срок действия токена.
func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	const op = "token.issuer.Verify"

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(i.leeway),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	if !tok.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	if _, err := claims.UID(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	return claims, nil
}
