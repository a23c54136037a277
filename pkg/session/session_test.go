package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pribylovaa/odyssey-auth/internal/config"
	httpapi "github.com/pribylovaa/odyssey-auth/internal/http"
	"github.com/pribylovaa/odyssey-auth/internal/service"
	"github.com/pribylovaa/odyssey-auth/internal/storage/memory"
	"github.com/pribylovaa/odyssey-auth/internal/token"
	"github.com/pribylovaa/odyssey-auth/pkg/client"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const accessTTL = 15 * time.Minute

func newTestSession(t *testing.T) (*Session, *MemoryStore, *clock) {
	t.Helper()

	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cfg := config.AuthConfig{
		JWTSecret:       "session-secret",
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "odyssey-auth",
		BcryptCost:      bcrypt.MinCost,
	}
	iss, err := token.New(cfg, token.WithClock(clk.Now))
	require.NoError(t, err)

	svc := service.New(memory.New(), iss, cfg)
	srv := httptest.NewServer(httpapi.NewRouter(svc, httpapi.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}))
	t.Cleanup(srv.Close)

	st := NewMemoryStore()
	return New(client.New(srv.URL, client.WithHTTPClient(srv.Client())), st), st, clk
}

var telemachus = client.RegisterRequest{
	Name: "Telemachus", Username: "telemachus", Email: "telemachus@ithaca.gr", Password: "father",
}

func TestSession_LoginPrivateLogout(t *testing.T) {
	t.Parallel()

	s, st, _ := newTestSession(t)
	ctx := context.Background()

	_, err := s.Register(ctx, telemachus)
	require.NoError(t, err)
	require.Equal(t, "telemachus", s.User().Username)

	_, err = s.Login(ctx, telemachus.Email, telemachus.Password)
	require.NoError(t, err)

	saved, _ := st.Load()
	require.NotEmpty(t, saved.AccessToken)
	require.NotEmpty(t, saved.RefreshToken)

	msg, err := s.Private(ctx)
	require.NoError(t, err)
	require.Equal(t, "Access granted, welcome telemachus", msg.Message)

	require.NoError(t, s.Logout(ctx))
	require.Nil(t, s.User())
	saved, _ = st.Load()
	require.True(t, saved.Empty())

	_, err = s.Private(ctx)
	require.ErrorIs(t, err, ErrNotSignedIn)
}

func TestSession_PrivateRefreshesExpiredAccessToken(t *testing.T) {
	t.Parallel()

	s, st, clk := newTestSession(t)
	ctx := context.Background()

	_, err := s.Register(ctx, telemachus)
	require.NoError(t, err)
	_, err = s.Login(ctx, telemachus.Email, telemachus.Password)
	require.NoError(t, err)
	before, _ := st.Load()

	clk.Advance(accessTTL)

	msg, err := s.Private(ctx)
	require.NoError(t, err)
	require.Equal(t, "Access granted, welcome telemachus", msg.Message)

	after, _ := st.Load()
	require.NotEqual(t, before.AccessToken, after.AccessToken)
	require.Equal(t, before.RefreshToken, after.RefreshToken)
}

func TestSession_RestoreAfterRestart(t *testing.T) {
	t.Parallel()

	s, st, clk := newTestSession(t)
	ctx := context.Background()

	_, err := s.Register(ctx, telemachus)
	require.NoError(t, err)
	_, err = s.Login(ctx, telemachus.Email, telemachus.Password)
	require.NoError(t, err)

	// Новая сессия с тем же хранилищем: пользователь в памяти потерян.
	fresh := New(s.api, st)
	require.Nil(t, fresh.User())

	clk.Advance(accessTTL + time.Minute)

	u, err := fresh.Restore(ctx)
	require.NoError(t, err)
	require.Equal(t, telemachus.Email, u.Email)
	require.Equal(t, "telemachus", fresh.User().Username)
}

func TestSession_LogoutClearsEvenOnServerError(t *testing.T) {
	t.Parallel()

	s, st, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, st.Save(Tokens{AccessToken: "a", RefreshToken: "unknown"}))

	err := s.Logout(ctx)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)

	saved, _ := st.Load()
	require.True(t, saved.Empty())
	require.Nil(t, s.User())
}

// fakeAPI считает вызовы и всегда отклоняет access-токены.
type fakeAPI struct {
	API
	privateCalls int
	refreshCalls int
	refreshErr   error
}

func (f *fakeAPI) Private(context.Context, string) (*client.MessageResponse, error) {
	f.privateCalls++
	return nil, &client.APIError{Status: http.StatusForbidden, Message: "Invalid or expired token"}
}

func (f *fakeAPI) Refresh(context.Context, string) (*client.RefreshResponse, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &client.RefreshResponse{Token: "new-access"}, nil
}

func TestSession_RetriesOnlyOnce(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	st := NewMemoryStore()
	require.NoError(t, st.Save(Tokens{AccessToken: "old", RefreshToken: "r"}))

	_, err := New(api, st).Private(context.Background())
	require.True(t, client.IsAuthError(err))
	require.Equal(t, 2, api.privateCalls)
	require.Equal(t, 1, api.refreshCalls)

	saved, _ := st.Load()
	require.Equal(t, "new-access", saved.AccessToken)
}

func TestSession_RefreshFailureStops(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{refreshErr: &client.APIError{Status: http.StatusForbidden, Message: "Refresh token expired"}}
	st := NewMemoryStore()
	require.NoError(t, st.Save(Tokens{AccessToken: "old", RefreshToken: "r"}))

	_, err := New(api, st).Private(context.Background())
	require.ErrorContains(t, err, "Refresh token expired")
	require.Equal(t, 1, api.privateCalls)
	require.Equal(t, 1, api.refreshCalls)

	saved, _ := st.Load()
	require.Equal(t, "old", saved.AccessToken)
}
