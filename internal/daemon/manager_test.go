// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// http.Server keeps a background key logger alive after tests on
		// some platforms; everything we own is joined explicitly.
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func testDeps() Deps {
	return Deps{
		Logger: zerolog.Nop().Level(zerolog.InfoLevel),
		APIHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	}
}

func TestNewManagerValidatesDeps(t *testing.T) {
	_, err := NewManager(ServerConfig{}, Deps{Logger: zerolog.Nop().Level(zerolog.InfoLevel)})
	require.ErrorIs(t, err, ErrMissingAPIHandler)

	_, err = NewManager(ServerConfig{}, Deps{
		APIHandler: http.NotFoundHandler(),
	})
	require.ErrorIs(t, err, ErrMissingLogger)
}

func TestServerConfigDefaults(t *testing.T) {
	cfg := ServerConfig{}.withDefaults()

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Positive(t, cfg.MaxHeaderBytes)
}

func TestManagerStartAndGracefulShutdown(t *testing.T) {
	m, err := NewManager(ServerConfig{
		ListenAddr:      "127.0.0.1:0",
		ShutdownTimeout: 2 * time.Second,
	}, testDeps())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop after context cancel")
	}
}

func TestManagerRejectsDoubleStart(t *testing.T) {
	m, err := NewManager(ServerConfig{
		ListenAddr:      "127.0.0.1:0",
		ShutdownTimeout: 2 * time.Second,
	}, testDeps())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	err = m.Start(context.Background())
	require.ErrorContains(t, err, "already started")

	cancel()
	<-done
}

func TestManagerShutdownBeforeStart(t *testing.T) {
	m, err := NewManager(ServerConfig{}, testDeps())
	require.NoError(t, err)

	err = m.Shutdown(context.Background())
	require.ErrorIs(t, err, ErrManagerNotStarted)
}

func TestShutdownHooksRunLIFO(t *testing.T) {
	m, err := NewManager(ServerConfig{
		ListenAddr:      "127.0.0.1:0",
		ShutdownTimeout: 2 * time.Second,
	}, testDeps())
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	hook := func(name string) ShutdownHook {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	m.RegisterShutdownHook("first", hook("first"))
	m.RegisterShutdownHook("second", hook("second"))
	m.RegisterShutdownHook("third", hook("third"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestShutdownIsIdempotent(t *testing.T) {
	m, err := NewManager(ServerConfig{
		ListenAddr:      "127.0.0.1:0",
		ShutdownTimeout: 2 * time.Second,
	}, testDeps())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	// Second shutdown is a no-op.
	require.NoError(t, m.Shutdown(context.Background()))
}
