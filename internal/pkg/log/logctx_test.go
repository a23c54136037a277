package log

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// slog.Default() глобален, поэтому тесты идут последовательно.

func silent() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFrom(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	def := silent()
	slog.SetDefault(def)

	own := silent()
	var nilLogger *slog.Logger

	tests := []struct {
		name string
		ctx  context.Context
		want *slog.Logger
	}{
		{"empty context", context.Background(), def},
		{"stored logger", Into(context.Background(), own), own},
		{"foreign value", context.WithValue(context.Background(), ctxKey{}, "logger"), def},
		{"typed nil", context.WithValue(context.Background(), ctxKey{}, nilLogger), def},
		{"child shadows parent", Into(Into(context.Background(), def), own), own},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Same(t, tt.want, From(tt.ctx))
		})
	}
}

func TestWith_StacksRequestAttributes(t *testing.T) {
	var buf bytes.Buffer
	ctx := Into(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	reqCtx := With(ctx, "request_id", "rid-1")
	userCtx := With(reqCtx, "user_id", "u-42")

	From(userCtx).Info("refresh_issued")
	require.Contains(t, buf.String(), "msg=refresh_issued request_id=rid-1 user_id=u-42")

	buf.Reset()
	From(reqCtx).Info("login_failed")
	require.Contains(t, buf.String(), "request_id=rid-1")
	require.NotContains(t, buf.String(), "user_id")
}

func TestWith_NoArgs_ReturnsSameContext(t *testing.T) {
	ctx := Into(context.Background(), silent())
	require.Equal(t, ctx, With(ctx))
}

func TestInto_KeepsCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	child := Into(parent, silent())

	cancel()
	<-child.Done()
	require.ErrorIs(t, child.Err(), context.Canceled)
}
