package service

import (
	"errors"
)

var (
	// ErrMissingField - не заполнено одно из обязательных полей регистрации.
	// HTTP 400.
	ErrMissingField = errors.New("all fields are required")

	// ErrInvalidEmail - e-mail не проходит проверку формата. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrMissingToken - refresh-токен не передан. HTTP 400.
	ErrMissingToken = errors.New("refresh token is required")

	// ErrDuplicateIdentity - e-mail или username уже заняты. HTTP 409.
	ErrDuplicateIdentity = errors.New("email or username already in use")

	// ErrInvalidCredentials - неизвестный e-mail или неверный пароль.
	// Оба случая неотличимы для клиента. HTTP 400.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUnknownToken - записи refresh-токена нет в хранилище
	// (никогда не выдавался или уже удалён при logout). HTTP 403.
	ErrUnknownToken = errors.New("invalid refresh token")

	// ErrTokenExpired - срок действия токена истёк. HTTP 403.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidToken - подпись, алгоритм, issuer или тип токена не сходятся. HTTP 403.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnauthorized - access-токен не передан. HTTP 401.
	ErrUnauthorized = errors.New("access token is required")

	// ErrUserNotFound - пользователь из валидного токена больше не существует. HTTP 404.
	ErrUserNotFound = errors.New("user not found")

	// ErrRefreshTokenCollision - исчерпаны попытки сохранить уникальный refresh-токен.
	// HTTP 500.
	ErrRefreshTokenCollision = errors.New("refresh token collision")
)

// ErrorKind - класс ошибки сервиса, по которому транспорт выбирает статус.
type ErrorKind int

const (
	// KindPersistence - всё, что не распознано как доменная ошибка
	// (сбой хранилища, отмена контекста и т.п.).
	KindPersistence ErrorKind = iota
	KindValidation
	KindConflict
	KindAuth
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	default:
		return "persistence"
	}
}

// Kind классифицирует ошибку сервиса. nil даёт KindPersistence,
// поэтому вызывать Kind имеет смысл только для err != nil.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrMissingField),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrMissingToken):
		return KindValidation
	case errors.Is(err, ErrDuplicateIdentity):
		return KindConflict
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUnknownToken),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrUnauthorized):
		return KindAuth
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound
	default:
		return KindPersistence
	}
}
