package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pribylovaa/odyssey-auth/internal/config"
	httpapi "github.com/pribylovaa/odyssey-auth/internal/http"
	"github.com/pribylovaa/odyssey-auth/internal/service"
	"github.com/pribylovaa/odyssey-auth/internal/storage/memory"
	"github.com/pribylovaa/odyssey-auth/internal/token"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// newServer поднимает настоящий роутер поверх in-memory хранилища.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.AuthConfig{
		JWTSecret:       "client-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "odyssey-auth",
		BcryptCost:      bcrypt.MinCost,
	}
	iss, err := token.New(cfg)
	require.NoError(t, err)

	svc := service.New(memory.New(), iss, cfg)
	srv := httptest.NewServer(httpapi.NewRouter(svc, httpapi.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}))
	t.Cleanup(srv.Close)

	return srv
}

var penelope = RegisterRequest{Name: "Penelope", Username: "penelope", Email: "penelope@ithaca.gr", Password: "loom"}

func TestClient_FullCycle(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	c := New(srv.URL+"/", WithHTTPClient(srv.Client()))
	ctx := context.Background()

	home, err := c.Home(ctx)
	require.NoError(t, err)
	require.Contains(t, home, "everything that I need")

	reg, err := c.Register(ctx, penelope)
	require.NoError(t, err)
	require.Equal(t, "User created successfully", reg.Message)
	require.Equal(t, "penelope", reg.User.Username)

	login, err := c.Login(ctx, penelope.Email, penelope.Password)
	require.NoError(t, err)
	require.Equal(t, reg.User.ID, login.User.ID)
	require.NotEmpty(t, login.Token)
	require.NotEmpty(t, login.RefreshToken)

	priv, err := c.Private(ctx, login.Token)
	require.NoError(t, err)
	require.Equal(t, "Access granted, welcome penelope", priv.Message)

	me, err := c.Me(ctx, login.Token)
	require.NoError(t, err)
	require.Equal(t, penelope.Email, me.User.Email)

	ref, err := c.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, ref.Token)

	profiles, err := c.Profiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles.Profiles, 1)

	out, err := c.Logout(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "Logout successful", out.Message)

	_, err = c.Logout(ctx, login.RefreshToken)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
	require.Equal(t, "Logout failed", apiErr.Message)
	require.NotEmpty(t, apiErr.RequestID)
	require.False(t, IsAuthError(err))

	_, err = c.Refresh(ctx, login.RefreshToken)
	require.True(t, IsAuthError(err))
}

func TestClient_ServerErrorsCarriedVerbatim(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	c := New(srv.URL, WithHTTPClient(srv.Client()))
	ctx := context.Background()

	_, err := c.Register(ctx, RegisterRequest{Name: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "missing_field", apiErr.Code)
	require.Equal(t, "All fields are required!", apiErr.Message)
	require.False(t, IsAuthError(err))

	_, err = c.Login(ctx, "nobody@ithaca.gr", "x")
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Invalid email or password", apiErr.Message)

	_, err = c.Private(ctx, "")
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.True(t, IsAuthError(err))
}

func TestClient_NonJSONErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL).Profiles(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.Status)
	require.Equal(t, "upstream exploded", apiErr.Message)
	require.Contains(t, apiErr.Error(), "502")
}

func TestClient_SendsHeaders(t *testing.T) {
	t.Parallel()

	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, WithUserAgent("authctl/test"))
	_, err := c.Private(context.Background(), "tok")
	require.NoError(t, err)

	require.Equal(t, "Bearer tok", got.Get("Authorization"))
	require.Equal(t, "authctl/test", got.Get("User-Agent"))
}

func TestClient_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(srv.URL).Profiles(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
