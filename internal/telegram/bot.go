package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/harun/tagbot/internal/config"
	"github.com/harun/tagbot/internal/logger"
	"github.com/harun/tagbot/internal/metrics"
	"github.com/rs/zerolog"
)

// Bot represents a Telegram bot instance
type Bot struct {
	api     *tgbotapi.BotAPI
	config  *config.TelegramConfig
	logger  zerolog.Logger
	metrics *metrics.Metrics

	// Handlers
	messageHandler  MessageHandler
	commandHandler  CommandHandler
	mediaHandler    MediaHandler
	callbackHandler CallbackHandler

	// dispatch, when set, receives every event instead of Route.
	dispatch func(Event)

	running atomic.Bool
	updates tgbotapi.UpdatesChannel
}

// MessageHandler handles plain text messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, ev Event) error
}

// CommandHandler handles bot commands
type CommandHandler interface {
	HandleCommand(ctx context.Context, ev Event) error
}

// MediaHandler handles audio, document and photo messages
type MediaHandler interface {
	HandleMedia(ctx context.Context, ev Event) error
}

// CallbackHandler handles inline keyboard button presses
type CallbackHandler interface {
	HandleCallback(ctx context.Context, ev Event) error
}

// New creates a new Telegram bot instance and authenticates with getMe.
func New(cfg *config.TelegramConfig, log *logger.Logger, m *metrics.Metrics) (*Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram config is required")
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.BotToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	return NewWithAPI(api, cfg, log.Component("telegram"), m), nil
}

// NewWithAPI wraps an already authenticated API client.
func NewWithAPI(api *tgbotapi.BotAPI, cfg *config.TelegramConfig, log zerolog.Logger, m *metrics.Metrics) *Bot {
	if cfg == nil {
		cfg = &config.TelegramConfig{}
	}

	bot := &Bot{
		api:     api,
		config:  cfg,
		logger:  log,
		metrics: m,
	}

	bot.logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authenticated")

	return bot
}

// Start starts long polling and begins processing updates
func (b *Bot) Start() error {
	if !b.running.CompareAndSwap(false, true) {
		return fmt.Errorf("bot is already running")
	}

	b.logger.Info().Msg("Starting Telegram bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.config.PollTimeout
	if u.Timeout <= 0 {
		u.Timeout = 60
	}
	u.AllowedUpdates = []string{"message", "callback_query"}

	b.updates = b.api.GetUpdatesChan(u)

	go b.processUpdates(b.updates)

	b.logger.Info().Msg("Telegram bot started")

	return nil
}

// Stop stops receiving updates. An in-flight long poll finishes in the
// background.
func (b *Bot) Stop() error {
	if !b.running.CompareAndSwap(true, false) {
		return fmt.Errorf("bot is not running")
	}

	b.logger.Info().Msg("Stopping Telegram bot")
	b.api.StopReceivingUpdates()
	b.logger.Info().Msg("Telegram bot stopped")

	return nil
}

func (b *Bot) processUpdates(updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if !b.running.Load() {
			break
		}
		b.HandleUpdate(update)
	}
}

// HandleUpdate converts an update into an Event and dispatches it.
func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	ev, ok := EventFromUpdate(update)
	if !ok {
		b.logger.Debug().Int("update_id", update.UpdateID).Msg("Ignoring unsupported update")
		return
	}
	b.metrics.RecordMessageReceived()

	if b.dispatch != nil {
		b.dispatch(ev)
		return
	}

	if err := b.Route(context.Background(), ev); err != nil {
		b.logger.Error().
			Err(err).
			Int("update_id", ev.UpdateID).
			Msg("Failed to handle update")
	}
}

// Route sends an event to the handler registered for its kind.
func (b *Bot) Route(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventCallback:
		if b.callbackHandler != nil {
			return b.callbackHandler.HandleCallback(ctx, ev)
		}
	case EventCommand:
		if b.commandHandler != nil {
			return b.commandHandler.HandleCommand(ctx, ev)
		}
	case EventFile:
		if b.mediaHandler != nil {
			return b.mediaHandler.HandleMedia(ctx, ev)
		}
	case EventText:
		if b.messageHandler != nil {
			return b.messageHandler.HandleMessage(ctx, ev)
		}
	}

	b.logger.Debug().Str("kind", ev.Kind.String()).Msg("No handler for event")
	return nil
}

// SendMessage sends a text message with an optional inline keyboard and
// returns the new message ID.
func (b *Bot) SendMessage(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}

	sent, err := b.api.Send(msg)
	if err != nil {
		b.metrics.RecordTelegramError()
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	b.metrics.RecordMessageSent()

	b.logger.Debug().
		Int64("chat_id", chatID).
		Int("message_id", sent.MessageID).
		Msg("Message sent")

	return sent.MessageID, nil
}

// EditMessage replaces the text and keyboard of an earlier message.
// Editing to identical content is not an error.
func (b *Bot) EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	var edit tgbotapi.EditMessageTextConfig
	if keyboard != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *keyboard)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}

	if _, err := b.api.Send(edit); err != nil {
		if isNotModified(err) {
			return nil
		}
		b.metrics.RecordTelegramError()
		return fmt.Errorf("failed to edit message: %w", err)
	}

	b.logger.Debug().
		Int64("chat_id", chatID).
		Int("message_id", messageID).
		Msg("Message edited")

	return nil
}

// SendDocument uploads the file at path under the given display name.
func (b *Bot) SendDocument(chatID int64, path, name, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{Name: name, Reader: f})
	doc.Caption = caption

	if _, err := b.api.Send(doc); err != nil {
		b.metrics.RecordTelegramError()
		return fmt.Errorf("failed to upload document: %w", err)
	}
	b.metrics.RecordMessageSent()

	b.logger.Info().
		Int64("chat_id", chatID).
		Str("name", name).
		Msg("Document uploaded")

	return nil
}

// AnswerCallback acknowledges a button press, optionally with a toast.
func (b *Bot) AnswerCallback(callbackID, text string) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.metrics.RecordTelegramError()
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

// SendChatAction shows a status such as "sending a file" in the chat.
func (b *Bot) SendChatAction(chatID int64, action string) error {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		return fmt.Errorf("failed to send chat action: %w", err)
	}
	return nil
}

// GetBotInfo returns bot information
func (b *Bot) GetBotInfo() map[string]interface{} {
	return map[string]interface{}{
		"username":  b.api.Self.UserName,
		"id":        b.api.Self.ID,
		"firstName": b.api.Self.FirstName,
		"running":   b.IsRunning(),
	}
}

// SetMessageHandler sets the message handler
func (b *Bot) SetMessageHandler(handler MessageHandler) {
	b.messageHandler = handler
}

// SetCommandHandler sets the command handler
func (b *Bot) SetCommandHandler(handler CommandHandler) {
	b.commandHandler = handler
}

// SetMediaHandler sets the media handler
func (b *Bot) SetMediaHandler(handler MediaHandler) {
	b.mediaHandler = handler
}

// SetCallbackHandler sets the callback handler
func (b *Bot) SetCallbackHandler(handler CallbackHandler) {
	b.callbackHandler = handler
}

// SetDispatcher diverts every event to fn. fn is expected to call Route
// itself, typically from a worker.
func (b *Bot) SetDispatcher(fn func(Event)) {
	b.dispatch = fn
}

// IsRunning returns whether the bot is running
func (b *Bot) IsRunning() bool {
	return b.running.Load()
}

func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return strings.Contains(apiErr.Message, "message is not modified")
	}
	return strings.Contains(err.Error(), "message is not modified")
}
