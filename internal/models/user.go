package models

import (
	"time"

	"github.com/google/uuid"
)

// User - модель пользователя в системе.
// Email и Username уникальны; после регистрации запись не меняется.
type User struct {
	ID           uuid.UUID
	Name         string
	Username     string
	Email        string
	PasswordHash string `json:"-"`
	CreatedAt    time.Time
}

// PublicUser - представление пользователя для клиентов (без хэша пароля).
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public возвращает безопасное для выдачи наружу представление пользователя.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID.String(),
		Name:      u.Name,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}
