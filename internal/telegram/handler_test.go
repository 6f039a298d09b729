package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseMessage() *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: 12345, UserName: "listener"},
		Chat:      &tgbotapi.Chat{ID: 67890, Type: "private"},
		Date:      1700000000,
	}
}

func TestEventFromUpdate_Text(t *testing.T) {
	msg := baseMessage()
	msg.Text = "Abbey Road"

	ev, ok := EventFromUpdate(tgbotapi.Update{UpdateID: 1, Message: msg})
	require.True(t, ok)
	assert.Equal(t, EventText, ev.Kind)
	assert.Equal(t, int64(12345), ev.UserID)
	assert.Equal(t, int64(67890), ev.ChatID)
	assert.Equal(t, 7, ev.MessageID)
	assert.Equal(t, "Abbey Road", ev.Text)
	assert.Nil(t, ev.File)
}

func TestEventFromUpdate_Command(t *testing.T) {
	msg := baseMessage()
	msg.Text = "/start now"
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}}

	ev, ok := EventFromUpdate(tgbotapi.Update{Message: msg})
	require.True(t, ok)
	assert.Equal(t, EventCommand, ev.Kind)
	assert.Equal(t, "start", ev.Command)
	assert.Equal(t, "now", ev.Args)
}

func TestEventFromUpdate_Files(t *testing.T) {
	t.Run("audio", func(t *testing.T) {
		msg := baseMessage()
		msg.Audio = &tgbotapi.Audio{FileID: "a1", FileName: "song.mp3", MimeType: "audio/mpeg", FileSize: 2048}
		msg.Caption = "fix this"

		ev, ok := EventFromUpdate(tgbotapi.Update{Message: msg})
		require.True(t, ok)
		assert.Equal(t, EventFile, ev.Kind)
		require.NotNil(t, ev.File)
		assert.Equal(t, FileRef{FileID: "a1", Name: "song.mp3", MimeType: "audio/mpeg", Size: 2048, Kind: MediaAudio}, *ev.File)
		assert.Equal(t, "fix this", ev.Text)
		assert.False(t, ev.File.IsImage())
	})

	t.Run("untitled audio gets a name from its title", func(t *testing.T) {
		msg := baseMessage()
		msg.Audio = &tgbotapi.Audio{FileID: "a2", Title: "Track 01", MimeType: "audio/flac"}

		ev, ok := EventFromUpdate(tgbotapi.Update{Message: msg})
		require.True(t, ok)
		assert.Equal(t, "Track 01.flac", ev.File.Name)
	})

	t.Run("document", func(t *testing.T) {
		msg := baseMessage()
		msg.Document = &tgbotapi.Document{FileID: "d1", FileName: "cover.png", MimeType: "image/png", FileSize: 10}

		ev, ok := EventFromUpdate(tgbotapi.Update{Message: msg})
		require.True(t, ok)
		assert.Equal(t, MediaDocument, ev.File.Kind)
		assert.True(t, ev.File.IsImage())
	})

	t.Run("photo uses the largest size", func(t *testing.T) {
		msg := baseMessage()
		msg.Photo = []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90, Height: 90, FileSize: 100},
			{FileID: "large", Width: 1280, Height: 1280, FileSize: 90000},
		}

		ev, ok := EventFromUpdate(tgbotapi.Update{Message: msg})
		require.True(t, ok)
		assert.Equal(t, "large", ev.File.FileID)
		assert.Equal(t, MediaPhoto, ev.File.Kind)
		assert.True(t, ev.File.IsImage())
	})
}

func TestEventFromUpdate_Callback(t *testing.T) {
	update := tgbotapi.Update{
		UpdateID: 9,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb1",
			From:    &tgbotapi.User{ID: 12345},
			Message: baseMessage(),
			Data:    "edit_title",
		},
	}

	ev, ok := EventFromUpdate(update)
	require.True(t, ok)
	assert.Equal(t, EventCallback, ev.Kind)
	assert.Equal(t, "cb1", ev.CallbackID)
	assert.Equal(t, "edit_title", ev.CallbackData)
	assert.Equal(t, int64(67890), ev.ChatID)
	assert.Equal(t, 7, ev.MessageID)
}

func TestEventFromUpdate_Ignored(t *testing.T) {
	_, ok := EventFromUpdate(tgbotapi.Update{})
	assert.False(t, ok)

	msg := baseMessage()
	msg.From = nil
	msg.Text = "from a channel"
	_, ok = EventFromUpdate(tgbotapi.Update{Message: msg})
	assert.False(t, ok)

	sticker := baseMessage()
	sticker.Sticker = &tgbotapi.Sticker{FileID: "s"}
	_, ok = EventFromUpdate(tgbotapi.Update{Message: sticker})
	assert.False(t, ok)
}

func TestSafeFileName(t *testing.T) {
	assert.Equal(t, "song.mp3", SafeFileName("song.mp3"))
	assert.Equal(t, "passwd", SafeFileName("../../etc/passwd"))
	assert.Equal(t, "x.flac", SafeFileName(`C:\music\x.flac`))
	assert.Equal(t, "", SafeFileName(""))
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "callback", EventCallback.String())
	assert.Equal(t, "unknown", EventKind(99).String())
}
