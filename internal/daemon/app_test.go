// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/hubgate/internal/jobs"
)

type fakeManager struct {
	started atomic.Bool
}

func (f *fakeManager) Start(ctx context.Context) error {
	f.started.Store(true)
	<-ctx.Done()
	return nil
}

func (f *fakeManager) Shutdown(context.Context) error { return nil }

func (f *fakeManager) RegisterShutdownHook(string, ShutdownHook) {}

type countingRefresher struct {
	runs atomic.Int32
}

func (c *countingRefresher) RunRefresh(context.Context) (*jobs.Status, error) {
	c.runs.Add(1)
	return &jobs.Status{LastRun: time.Now()}, nil
}

func TestAppRequiresManager(t *testing.T) {
	app := NewApp(zerolog.Nop(), nil, nil, nil)
	require.ErrorIs(t, app.Run(context.Background()), ErrMissingManager)
}

func TestAppRunStopsOnCancel(t *testing.T) {
	mgr := &fakeManager{}
	app := NewApp(zerolog.Nop(), mgr, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	require.True(t, mgr.started.Load())
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
}

func TestRefreshLoopDisabledWithoutInterval(t *testing.T) {
	ref := &countingRefresher{}
	app := NewApp(zerolog.Nop(), &fakeManager{}, nil, ref)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = app.Run(ctx)

	require.Zero(t, ref.runs.Load())
}

func TestIntervalOrPoll(t *testing.T) {
	require.Equal(t, time.Minute, intervalOrPoll(0))
	require.Equal(t, time.Minute, intervalOrPoll(-time.Second))
	require.Equal(t, 5*time.Second, intervalOrPoll(5*time.Second))
}
