package session

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/tagbot/internal/tags/tagtest"
)

func TestJanitor_Sweep(t *testing.T) {
	ctrl, clock := newTestController(t, 0)

	sess, err := ctrl.Create(context.Background(), 99, "song.mp3", bytes.NewReader(tagtest.MP3()))
	require.NoError(t, err)

	var evicted []Session
	j := NewJanitor(ctrl, JanitorOptions{
		MaxIdle: 30 * time.Minute,
		OnEvict: func(s Session) { evicted = append(evicted, s) },
		Logger:  zerolog.Nop(),
	})

	clock.Advance(10 * time.Minute)
	assert.Equal(t, 0, j.Sweep())

	clock.Advance(21 * time.Minute)
	assert.Equal(t, 1, j.Sweep())

	require.Len(t, evicted, 1)
	assert.Equal(t, int64(99), evicted[0].UserID)
	assert.NoFileExists(t, sess.FilePath)
	assert.Equal(t, 0, ctrl.Len())
}

func TestJanitor_SetMaxIdle(t *testing.T) {
	ctrl, clock := newTestController(t, 0)
	_, err := ctrl.Create(context.Background(), 1, "song.mp3", bytes.NewReader(tagtest.MP3()))
	require.NoError(t, err)

	j := NewJanitor(ctrl, JanitorOptions{Logger: zerolog.Nop()})
	assert.Equal(t, DefaultMaxIdle, j.MaxIdle())

	j.SetMaxIdle(0)
	assert.Equal(t, DefaultMaxIdle, j.MaxIdle())

	j.SetMaxIdle(time.Minute)
	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, j.Sweep())
}

func TestJanitor_StartStop(t *testing.T) {
	ctrl, _ := newTestController(t, 0)

	j := NewJanitor(ctrl, JanitorOptions{Schedule: "@every 1h", Logger: zerolog.Nop()})
	require.NoError(t, j.Start())
	assert.Error(t, j.Start())
	j.Stop()
	j.Stop()

	bad := NewJanitor(ctrl, JanitorOptions{Schedule: "not a schedule", Logger: zerolog.Nop()})
	assert.Error(t, bad.Start())
}
