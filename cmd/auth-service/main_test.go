package main

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pribylovaa/odyssey-auth/internal/config"
	"github.com/stretchr/testify/require"
)

type countingPurger struct {
	calls atomic.Int32
}

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, nil
}

func TestStartRefreshJanitor_RunsPeriodically_AndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &countingPurger{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	startRefreshJanitor(ctx, p, log, 10*time.Millisecond)

	require.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(30 * time.Millisecond)
	stopped := p.calls.Load()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, stopped, p.calls.Load())
}

func TestStartRefreshJanitor_DisabledWhenPeriodNonPositive(t *testing.T) {
	p := &countingPurger{}
	startRefreshJanitor(context.Background(), p, slog.Default(), 0)

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, p.calls.Load())
}

func TestOpenStorage_Memory(t *testing.T) {
	st, err := openStorage(context.Background(), config.DBConfig{Driver: config.DriverMemory}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, st.Ping(context.Background()))
	st.Close()
}

func TestSetupLogger_AllEnvs(t *testing.T) {
	for _, env := range []string{envLocal, envDev, envProd, "unknown"} {
		require.NotNil(t, setupLogger(env))
	}
}
