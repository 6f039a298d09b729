package telegram

import (
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const defaultProgressInterval = time.Second

// MessageEditor is the part of Bot a Progress needs.
type MessageEditor interface {
	SendMessage(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (int, error)
	EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error
}

// Progress is a status message that is edited in place as work advances,
// e.g. "Downloading…" followed by the tag menu.
type Progress struct {
	editor    MessageEditor
	ChatID    int64
	MessageID int

	mu          sync.Mutex
	text        string
	lastUpdate  time.Time
	minInterval time.Duration
	now         func() time.Time
}

// StartProgress sends the initial status message.
func StartProgress(editor MessageEditor, chatID int64, text string) (*Progress, error) {
	id, err := editor.SendMessage(chatID, text, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to send progress message: %w", err)
	}

	return &Progress{
		editor:      editor,
		ChatID:      chatID,
		MessageID:   id,
		text:        text,
		lastUpdate:  time.Now(),
		minInterval: defaultProgressInterval,
		now:         time.Now,
	}, nil
}

// Update edits the status text. Unchanged text and calls within
// minInterval of the previous edit are dropped.
func (p *Progress) Update(text string) error {
	p.mu.Lock()
	if text == p.text || p.now().Sub(p.lastUpdate) < p.minInterval {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return p.edit(text, nil)
}

// Finish always performs a final edit, with an optional keyboard.
func (p *Progress) Finish(text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	return p.edit(text, keyboard)
}

func (p *Progress) edit(text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	if err := p.editor.EditMessage(p.ChatID, p.MessageID, text, keyboard); err != nil {
		return err
	}

	p.mu.Lock()
	p.text = text
	p.lastUpdate = p.now()
	p.mu.Unlock()

	return nil
}
