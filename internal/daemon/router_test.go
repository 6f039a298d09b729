package daemon

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/tagbot/internal/telegram"
	"github.com/harun/tagbot/internal/tracing"
	"github.com/harun/tagbot/pkg/commandqueue"
)

func newTestRouter(t *testing.T, handle EventHandler, allowlist []int64) (*Router, *fakeMessenger) {
	t.Helper()
	queue := commandqueue.New(commandqueue.Options{Logger: zerolog.Nop()})
	dedupe := commandqueue.NewDedupe(time.Minute)
	t.Cleanup(func() {
		_ = queue.Close()
		dedupe.Stop()
	})

	messenger := &fakeMessenger{}
	return NewRouter(queue, dedupe, handle, messenger, allowlist, zerolog.Nop()), messenger
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	require.NotNil(t, done)
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("event was not handled")
		return nil
	}
}

func TestRouter_DispatchRunsHandlerWithTraceContext(t *testing.T) {
	var gotCtx context.Context
	router, _ := newTestRouter(t, func(ctx context.Context, ev telegram.Event) error {
		gotCtx = ctx
		return nil
	}, nil)

	done := router.Dispatch(telegram.Event{UpdateID: 10, UserID: 5, Kind: telegram.EventText})
	require.NoError(t, wait(t, done))

	require.NotNil(t, gotCtx)
	assert.NotEmpty(t, tracing.GetTraceID(gotCtx))
	assert.Equal(t, int64(5), tracing.GetUserID(gotCtx))
	assert.Equal(t, 10, tracing.GetUpdateID(gotCtx))
}

func TestRouter_SkipsDuplicateUpdates(t *testing.T) {
	var calls atomic.Int32
	router, _ := newTestRouter(t, func(ctx context.Context, ev telegram.Event) error {
		calls.Add(1)
		return nil
	}, nil)

	ev := telegram.Event{UpdateID: 77, UserID: 1, Kind: telegram.EventText}
	require.NoError(t, wait(t, router.Dispatch(ev)))
	assert.Nil(t, router.Dispatch(ev))

	// updates without an ID are never deduplicated
	ev.UpdateID = 0
	require.NoError(t, wait(t, router.Dispatch(ev)))
	require.NoError(t, wait(t, router.Dispatch(ev)))

	assert.Equal(t, int32(3), calls.Load())
}

func TestRouter_SerializesPerUser(t *testing.T) {
	var mu sync.Mutex
	var order []string
	var inFlight, maxInFlight atomic.Int32

	router, _ := newTestRouter(t, func(ctx context.Context, ev telegram.Event) error {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		order = append(order, ev.Text)
		mu.Unlock()
		inFlight.Add(-1)
		return nil
	}, nil)

	var results []<-chan error
	for i, text := range []string{"a", "b", "c", "d"} {
		results = append(results, router.Dispatch(telegram.Event{UpdateID: i + 1, UserID: 9, Kind: telegram.EventText, Text: text}))
	}
	for _, done := range results {
		require.NoError(t, wait(t, done))
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestRouter_UsersRunInParallel(t *testing.T) {
	started := make(chan int64, 2)
	release := make(chan struct{})

	router, _ := newTestRouter(t, func(ctx context.Context, ev telegram.Event) error {
		started <- ev.UserID
		<-release
		return nil
	}, nil)

	d1 := router.Dispatch(telegram.Event{UpdateID: 1, UserID: 1})
	d2 := router.Dispatch(telegram.Event{UpdateID: 2, UserID: 2})

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("users did not run in parallel")
		}
	}
	close(release)

	require.NoError(t, wait(t, d1))
	require.NoError(t, wait(t, d2))
}

func TestRouter_Allowlist(t *testing.T) {
	var calls atomic.Int32
	router, messenger := newTestRouter(t, func(ctx context.Context, ev telegram.Event) error {
		calls.Add(1)
		return nil
	}, []int64{100})

	assert.True(t, router.Allowed(100))
	assert.False(t, router.Allowed(200))

	assert.Nil(t, router.Dispatch(telegram.Event{UpdateID: 1, UserID: 200, ChatID: 200, Kind: telegram.EventText}))
	assert.Nil(t, router.Dispatch(telegram.Event{UpdateID: 2, UserID: 200, ChatID: 200, Kind: telegram.EventCallback, CallbackID: "cb"}))
	require.NoError(t, wait(t, router.Dispatch(telegram.Event{UpdateID: 3, UserID: 100, Kind: telegram.EventText})))

	assert.Equal(t, int32(1), calls.Load())
	require.Len(t, messenger.messages, 1)
	assert.Equal(t, textNotAllowed, messenger.messages[0].Text)
	assert.Equal(t, int64(200), messenger.messages[0].ChatID)
	assert.Equal(t, []string{"cb:" + textNotAllowed}, messenger.callbacks)

	router.SetAllowlist(nil)
	assert.True(t, router.Allowed(200))
	require.NoError(t, wait(t, router.Dispatch(telegram.Event{UpdateID: 4, UserID: 200, Kind: telegram.EventText})))
	assert.Equal(t, int32(2), calls.Load())
}

func TestLaneFor(t *testing.T) {
	assert.Equal(t, "user:42", laneFor(42))
}
