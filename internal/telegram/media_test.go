package telegram

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaOpen(t *testing.T) {
	bot, api := newTestBot(t)
	media := NewMedia(bot)

	api.serveFile("music/file_1.flac", []byte("fLaC-data"), "f1")

	body, err := media.Open(context.Background(), FileRef{FileID: "f1", Size: 9}, 100)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, []byte("fLaC-data"), data)

	calls := api.callsTo("getFile")
	require.Len(t, calls, 1)
	assert.Equal(t, "f1", calls[0].Params.Get("file_id"))
}

func TestMediaOpenLimits(t *testing.T) {
	bot, api := newTestBot(t)
	media := NewMedia(bot)

	t.Run("announced size", func(t *testing.T) {
		_, err := media.Open(context.Background(), FileRef{FileID: "big", Size: 500}, 100)
		assert.ErrorIs(t, err, ErrFileTooLarge)
		assert.Empty(t, api.callsTo("getFile"), "no request for oversized files")
	})

	t.Run("size reported by getFile", func(t *testing.T) {
		api.serveFile("music/big.mp3", make([]byte, 200), "big2")
		_, err := media.Open(context.Background(), FileRef{FileID: "big2"}, 100)
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("bot api refuses", func(t *testing.T) {
		api.respond("getFile", `{"ok":false,"error_code":400,"description":"Bad Request: file is too big"}`)
		_, err := media.Open(context.Background(), FileRef{FileID: "huge"}, 0)
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})
}

func TestMediaOpenMissingFile(t *testing.T) {
	bot, api := newTestBot(t)
	media := NewMedia(bot)

	api.respond("getFile", `{"ok":true,"result":{"file_id":"gone","file_unique_id":"u","file_size":1,"file_path":"music/gone.mp3"}}`)

	_, err := media.Open(context.Background(), FileRef{FileID: "gone"}, 0)
	assert.ErrorContains(t, err, "status: 404")
}

func TestMediaReadAll(t *testing.T) {
	bot, api := newTestBot(t)
	media := NewMedia(bot)

	api.serveFile("photos/p.jpg", []byte("jpeg-bytes"), "p1")

	data, err := media.ReadAll(context.Background(), FileRef{FileID: "p1", Kind: MediaPhoto}, 1024)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestMediaCancelledContext(t *testing.T) {
	bot, api := newTestBot(t)
	media := NewMedia(bot)
	api.serveFile("music/a.mp3", []byte("abc"), "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := media.Open(ctx, FileRef{FileID: "a"}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
