package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken - сохранённый refresh-токен.
// Сам токен в БД не хранится: ключом служит его хэш (sha256 → base64url).
type RefreshToken struct {
	TokenHash string
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired сообщает, истёк ли токен к моменту now (граница включительно).
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
