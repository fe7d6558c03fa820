package cli

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// blockingScheduler runs until its context is cancelled.
type blockingScheduler struct {
	started atomic.Bool
	stopped atomic.Bool
	err     error
}

func (s *blockingScheduler) Start(ctx context.Context) error {
	s.started.Store(true)
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *blockingScheduler) Stop() error {
	s.stopped.Store(true)
	return nil
}

func TestServeCmd_Metadata(t *testing.T) {
	assert.Equal(t, "serve", serveCmd.Use)
	assert.NotNil(t, serveCmd.Flags().Lookup("port"))
	assert.NotNil(t, serveCmd.Flags().Lookup("cors-origin"))
	assert.NotNil(t, serveCmd.Flags().Lookup("no-scheduler"))
}

func TestRunScheduler_NotConfigured(t *testing.T) {
	SetServices(nil)
	require.NoError(t, runScheduler(context.Background()))
}

func TestRunScheduler_Disabled(t *testing.T) {
	s := &blockingScheduler{}
	SetServices(&Services{Scheduler: s, SchedulerConfig: domain.SchedulerConfig{Enabled: false}})
	defer SetServices(nil)

	require.NoError(t, runScheduler(context.Background()))
	assert.False(t, s.started.Load())
}

func TestRunScheduler_StopsOnCancel(t *testing.T) {
	s := &blockingScheduler{}
	SetServices(&Services{Scheduler: s, SchedulerConfig: domain.DefaultSchedulerConfig()})
	defer SetServices(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runScheduler(ctx) }()

	require.Eventually(t, s.started.Load, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	require.Eventually(t, s.stopped.Load, time.Second, 10*time.Millisecond)
}

func TestRunScheduler_ReturnsStartError(t *testing.T) {
	s := &blockingScheduler{err: errors.New("store locked")}
	SetServices(&Services{Scheduler: s, SchedulerConfig: domain.DefaultSchedulerConfig()})
	defer SetServices(nil)

	err := runScheduler(context.Background())
	require.EqualError(t, err, "store locked")
}

func TestStartScheduler_StopWaits(t *testing.T) {
	s := &blockingScheduler{}
	SetServices(&Services{Scheduler: s, SchedulerConfig: domain.DefaultSchedulerConfig()})
	defer SetServices(nil)

	stop := startScheduler(context.Background())
	require.Eventually(t, s.started.Load, time.Second, 10*time.Millisecond)
	stop()
	assert.True(t, s.stopped.Load())
}
