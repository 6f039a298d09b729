package daemon

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/tagbot/internal/tags/tagtest"
)

func TestNewEventLoop(t *testing.T) {
	api := newFakeTelegram(t)
	d := createTestDaemon(t, testConfig(t, api))
	defer d.closeCoreModules()

	eventLoop := NewEventLoop(d)
	assert.NotNil(t, eventLoop)
	assert.Equal(t, d, eventLoop.daemon)
	assert.Equal(t, defaultStatsInterval, eventLoop.interval)
}

func TestEventLoopRun(t *testing.T) {
	api := newFakeTelegram(t)
	d := createTestDaemon(t, testConfig(t, api))
	defer d.closeCoreModules()

	eventLoop := NewEventLoop(d)
	eventLoop.interval = 10 * time.Millisecond

	_, err := d.controller.Create(context.Background(), 1, "song.mp3", bytes.NewReader(tagtest.MP3()))
	require.NoError(t, err)
	d.metrics.SetActiveSessions(0)
	d.metrics.SetQueueWaiting(5)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		eventLoop.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Event loop did not stop in time")
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(d.metrics.SessionsActive))
	assert.Equal(t, float64(0), testutil.ToFloat64(d.metrics.QueueWaiting), "gauge resynced from queue stats")
}

func TestEventLoopHandleShutdown(t *testing.T) {
	api := newFakeTelegram(t)
	d := createTestDaemon(t, testConfig(t, api))
	defer d.closeCoreModules()

	eventLoop := NewEventLoop(d)
	assert.True(t, eventLoop.HandleShutdown(100*time.Millisecond))

	release := make(chan struct{})
	d.queue.Submit(context.Background(), "user:1", func(ctx context.Context) error {
		<-release
		return nil
	})
	assert.False(t, eventLoop.HandleShutdown(50*time.Millisecond))

	close(release)
	assert.True(t, eventLoop.HandleShutdown(time.Second))
}
