package models

import "time"

// TokenPair - пара токенов, выдаваемая при входе.
//
// Описание:
//   - AccessToken - короткоживущий JWT для доступа к защищённым эндпоинтам;
//   - RefreshToken - подписанный JWT, валидность которого определяется
//     наличием неистёкшей записи в хранилище;
//   - AccessExpiresAt / RefreshExpiresAt - моменты истечения (UTC).
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
