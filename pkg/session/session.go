// session - клиентское состояние входа поверх pkg/client.
//
// Токены живут в Store и переживают перезапуск процесса, текущий
// пользователь хранится только в памяти и восстанавливается через Restore.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pribylovaa/odyssey-auth/pkg/client"
)

// ErrNotSignedIn - в хранилище нет токенов.
var ErrNotSignedIn = errors.New("not signed in")

// API - подмножество client.Client, которым пользуется Session.
type API interface {
	Register(ctx context.Context, in client.RegisterRequest) (*client.RegisterResponse, error)
	Login(ctx context.Context, email, password string) (*client.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*client.RefreshResponse, error)
	Logout(ctx context.Context, refreshToken string) (*client.MessageResponse, error)
	Private(ctx context.Context, accessToken string) (*client.MessageResponse, error)
	Me(ctx context.Context, accessToken string) (*client.MeResponse, error)
}

var _ API = (*client.Client)(nil)

// Session хранит текущего пользователя и управляет токенами.
type Session struct {
	api   API
	store Store

	mu   sync.Mutex
	user *client.User
}

// New создаёт сессию. c обычно *client.Client.
func New(c API, store Store) *Session {
	return &Session{api: c, store: store}
}

// User возвращает текущего пользователя или nil, если вход не выполнен.
func (s *Session) User() *client.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) setUser(u *client.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

// Register создаёт аккаунт и делает его текущим пользователем.
// Токены при регистрации не выдаются, для них нужен Login.
func (s *Session) Register(ctx context.Context, in client.RegisterRequest) (*client.RegisterResponse, error) {
	const op = "session.Register"

	resp, err := s.api.Register(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u := resp.User
	s.setUser(&u)

	return resp, nil
}

// Login выполняет вход и сохраняет пару токенов.
func (s *Session) Login(ctx context.Context, email, password string) (*client.LoginResponse, error) {
	const op = "session.Login"

	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.Save(Tokens{AccessToken: resp.Token, RefreshToken: resp.RefreshToken}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u := resp.User
	s.setUser(&u)

	return resp, nil
}

// Logout отзывает refresh-токен на сервере. Локальное состояние
// очищается всегда, ошибка сервера возвращается вызывающему.
func (s *Session) Logout(ctx context.Context) error {
	const op = "session.Logout"

	tokens, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var serverErr error
	if tokens.RefreshToken != "" {
		_, serverErr = s.api.Logout(ctx, tokens.RefreshToken)
	}

	s.setUser(nil)
	clearErr := s.store.Clear()

	if err := errors.Join(serverErr, clearErr); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Private вызывает защищённый эндпоинт. При 401/403 один раз обновляет
// access-токен и повторяет запрос.
func (s *Session) Private(ctx context.Context) (*client.MessageResponse, error) {
	const op = "session.Private"

	resp, err := withRefresh(ctx, s, s.api.Private)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return resp, nil
}

// Restore восстанавливает пользователя по сохранённым токенам через GET /me.
func (s *Session) Restore(ctx context.Context) (*client.User, error) {
	const op = "session.Restore"

	resp, err := withRefresh(ctx, s, s.api.Me)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u := resp.User
	s.setUser(&u)

	return &u, nil
}

// withRefresh выполняет call с сохранённым access-токеном. Если сервер
// отклонил токен, делает ровно один Refresh, сохраняет новый access-токен
// и повторяет call. Вторая неудача возвращается как есть.
func withRefresh[T any](ctx context.Context, s *Session, call func(context.Context, string) (*T, error)) (*T, error) {
	tokens, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if tokens.Empty() {
		return nil, ErrNotSignedIn
	}

	resp, err := call(ctx, tokens.AccessToken)
	if err == nil || !client.IsAuthError(err) || tokens.RefreshToken == "" {
		return resp, err
	}

	refreshed, rerr := s.api.Refresh(ctx, tokens.RefreshToken)
	if rerr != nil {
		return nil, fmt.Errorf("refresh: %w", rerr)
	}

	tokens.AccessToken = refreshed.Token
	if err := s.store.Save(tokens); err != nil {
		return nil, err
	}

	return call(ctx, tokens.AccessToken)
}
