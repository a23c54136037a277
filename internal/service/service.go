// service содержит бизнес-логику сервиса аутентификации:
// регистрацию, вход по e-mail и паролю, обновление access-токена по
// refresh-токену, выход и проверку access-токенов.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования при потокобезопасном storage.Storage.
//   - Хранилище refresh-токенов является источником истины: refresh-токен
//     действителен, пока в хранилище есть его неистёкшая запись.
//   - Ошибки возвращаются как sentinel-значения из errors.go и маппятся
//     транспортом на HTTP-статусы (см. Kind).
package service

import (
	"github.com/pribylovaa/odyssey-auth/internal/cache"
	"github.com/pribylovaa/odyssey-auth/internal/config"
	"github.com/pribylovaa/odyssey-auth/internal/storage"
	"github.com/pribylovaa/odyssey-auth/internal/token"
)

// Service описывает бизнес-логику сервиса аутентификации.
type Service struct {
	storage storage.Storage
	tokens  *token.Issuer
	cfg     config.AuthConfig
	rcache  cache.RefreshCache // может быть nil, если кэш не сконфигурирован
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, tokens *token.Issuer, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		tokens:  tokens,
		cfg:     cfg,
	}
}

// SetRefreshCache устанавливает кэш refresh-токенов (опционально).
func (s *Service) SetRefreshCache(c cache.RefreshCache) {
	s.rcache = c
}
