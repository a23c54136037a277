// client - Go-клиент HTTP API сервиса аутентификации.
//
// Каждый метод выполняет ровно один HTTP-вызов. Ответ не из диапазона 2xx
// возвращается как *APIError с полями, пришедшими от сервера.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// User - публичное представление пользователя.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// RegisterRequest - данные для регистрации.
type RegisterRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse - ответ POST /register.
type RegisterResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
}

// LoginResponse - ответ POST /login.
type LoginResponse struct {
	Message      string `json:"message"`
	User         User   `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse - ответ POST /refresh.
type RefreshResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// MessageResponse - ответ с одним сообщением (/logout, /private).
type MessageResponse struct {
	Message string `json:"message"`
}

// MeResponse - ответ GET /me.
type MeResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
}

// ProfilesResponse - ответ GET /profiles.
type ProfilesResponse struct {
	Message  string `json:"message"`
	Profiles []User `json:"profiles"`
}

// APIError - ответ сервера со статусом не из 2xx.
type APIError struct {
	Status    int    `json:"-"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsAuthError сообщает, что сервер отклонил токен (401 или 403).
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет http.Client (таймауты, транспорт, тесты).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithUserAgent задаёт заголовок User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// Client - клиент API. Безопасен для конкурентного использования.
type Client struct {
	baseURL   string
	hc        *http.Client
	userAgent string
}

// New создаёт клиента для сервера по адресу baseURL (например, http://localhost:3000).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		hc:        &http.Client{Timeout: 15 * time.Second},
		userAgent: "odyssey-auth-client",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Register(ctx context.Context, in RegisterRequest) (*RegisterResponse, error) {
	var out RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/register", "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	in := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}

	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/login", "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	var out RefreshResponse
	if err := c.do(ctx, http.MethodPost, "/refresh", "", refreshBody{refreshToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context, refreshToken string) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.do(ctx, http.MethodPost, "/logout", "", refreshBody{refreshToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Private вызывает защищённый эндпоинт с access-токеном.
func (c *Client) Private(ctx context.Context, accessToken string) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.do(ctx, http.MethodGet, "/private", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me возвращает пользователя, которому принадлежит access-токен.
func (c *Client) Me(ctx context.Context, accessToken string) (*MeResponse, error) {
	var out MeResponse
	if err := c.do(ctx, http.MethodGet, "/me", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Profiles(ctx context.Context) (*ProfilesResponse, error) {
	var out ProfilesResponse
	if err := c.do(ctx, http.MethodGet, "/profiles", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Home возвращает текст приветствия с GET /.
func (c *Client) Home(ctx context.Context) (string, error) {
	var out string
	if err := c.do(ctx, http.MethodGet, "/", "", nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

// do выполняет запрос и декодирует ответ в out.
// Если out - *string, тело возвращается как текст.
func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	const op = "client.do"

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %s %s: %w", op, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if jerr := json.Unmarshal(raw, apiErr); jerr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode)
			}
		}
		if apiErr.RequestID == "" {
			apiErr.RequestID = resp.Header.Get("X-Request-Id")
		}
		return apiErr
	}

	if s, ok := out.(*string); ok {
		*s = string(raw)
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode %s: %w", op, path, err)
	}

	return nil
}
