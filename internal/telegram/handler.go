package telegram

import (
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// EventKind classifies an inbound update.
type EventKind int

const (
	EventText EventKind = iota
	EventCommand
	EventFile
	EventCallback
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventCommand:
		return "command"
	case EventFile:
		return "file"
	case EventCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// MediaKind is the Telegram attachment type a file arrived as.
type MediaKind string

const (
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
	MediaPhoto    MediaKind = "photo"
)

// FileRef points at a file stored on Telegram's servers.
type FileRef struct {
	FileID   string
	Name     string
	MimeType string
	Size     int64
	Kind     MediaKind
}

// IsImage reports whether the file is a photo or an image document.
func (f FileRef) IsImage() bool {
	if f.Kind == MediaPhoto {
		return true
	}
	return strings.HasPrefix(f.MimeType, "image/")
}

// Event is the transport-neutral view of one update that handlers work on.
type Event struct {
	UpdateID  int
	Kind      EventKind
	UserID    int64
	Username  string
	ChatID    int64
	MessageID int
	Timestamp time.Time

	// Text holds the message text, or the caption for files.
	Text    string
	Command string
	Args    string

	File *FileRef

	CallbackID   string
	CallbackData string
}

// EventFromUpdate extracts an Event. Updates without a sender, such as
// channel posts, are reported as not ok.
func EventFromUpdate(update tgbotapi.Update) (Event, bool) {
	if cq := update.CallbackQuery; cq != nil {
		if cq.From == nil {
			return Event{}, false
		}
		ev := Event{
			UpdateID:     update.UpdateID,
			Kind:         EventCallback,
			UserID:       cq.From.ID,
			Username:     cq.From.UserName,
			CallbackID:   cq.ID,
			CallbackData: cq.Data,
			Timestamp:    time.Now(),
		}
		if cq.Message != nil {
			ev.MessageID = cq.Message.MessageID
			if cq.Message.Chat != nil {
				ev.ChatID = cq.Message.Chat.ID
			}
		}
		if ev.ChatID == 0 {
			ev.ChatID = cq.From.ID
		}
		return ev, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return Event{}, false
	}

	ev := Event{
		UpdateID:  update.UpdateID,
		UserID:    msg.From.ID,
		Username:  msg.From.UserName,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Timestamp: time.Unix(int64(msg.Date), 0),
	}

	switch {
	case msg.IsCommand():
		ev.Kind = EventCommand
		ev.Command = msg.Command()
		ev.Args = msg.CommandArguments()
		ev.Text = msg.Text
	case hasMedia(msg):
		ev.Kind = EventFile
		ev.File = fileFromMessage(msg)
		ev.Text = msg.Caption
	case msg.Text != "":
		ev.Kind = EventText
		ev.Text = msg.Text
	default:
		return Event{}, false
	}

	return ev, true
}

func hasMedia(msg *tgbotapi.Message) bool {
	return msg.Audio != nil || msg.Document != nil || len(msg.Photo) > 0
}

// fileFromMessage prefers audio, then documents, then the largest photo size.
func fileFromMessage(msg *tgbotapi.Message) *FileRef {
	switch {
	case msg.Audio != nil:
		a := msg.Audio
		name := a.FileName
		if name == "" && a.Title != "" {
			name = a.Title + extensionForMIME(a.MimeType)
		}
		return &FileRef{FileID: a.FileID, Name: name, MimeType: a.MimeType, Size: int64(a.FileSize), Kind: MediaAudio}
	case msg.Document != nil:
		d := msg.Document
		return &FileRef{FileID: d.FileID, Name: d.FileName, MimeType: d.MimeType, Size: int64(d.FileSize), Kind: MediaDocument}
	default:
		p := msg.Photo[len(msg.Photo)-1]
		return &FileRef{FileID: p.FileID, Name: "photo.jpg", MimeType: "image/jpeg", Size: int64(p.FileSize), Kind: MediaPhoto}
	}
}

// extensionForMIME maps the audio MIME types Telegram reports to an extension
// so that untitled uploads still carry a usable name.
func extensionForMIME(mime string) string {
	switch mime {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	case "audio/mp4", "audio/x-m4a", "audio/m4a":
		return ".m4a"
	case "audio/ogg", "audio/vorbis":
		return ".ogg"
	case "audio/opus":
		return ".opus"
	default:
		return ""
	}
}

// SafeFileName strips any directory part a client may have put into a name.
func SafeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
