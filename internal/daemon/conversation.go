package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/harun/tagbot/internal/session"
	"github.com/harun/tagbot/internal/tags"
	"github.com/harun/tagbot/internal/telegram"
	"github.com/harun/tagbot/internal/tracing"
)

// Messenger is the outbound side of the transport.
type Messenger interface {
	SendMessage(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (int, error)
	EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error
	SendDocument(chatID int64, path, name, caption string) error
	AnswerCallback(callbackID, text string) error
	SendChatAction(chatID int64, action string) error
}

// Fetcher downloads files users sent.
type Fetcher interface {
	Open(ctx context.Context, file telegram.FileRef, maxSize int64) (io.ReadCloser, error)
	ReadAll(ctx context.Context, file telegram.FileRef, maxSize int64) ([]byte, error)
}

// Conversation turns chat events into session operations and replies.
// Handlers return an error only when a reply could not be sent; session
// errors are answered in the chat.
type Conversation struct {
	controller *session.Controller
	messenger  Messenger
	fetcher    Fetcher
	maxSize    int64
	logger     zerolog.Logger
}

// NewConversation creates the handlers. maxSize bounds downloads; zero
// disables the check.
func NewConversation(controller *session.Controller, messenger Messenger, fetcher Fetcher, maxSize int64, logger zerolog.Logger) *Conversation {
	return &Conversation{
		controller: controller,
		messenger:  messenger,
		fetcher:    fetcher,
		maxSize:    maxSize,
		logger:     logger.With().Str("component", "conversation").Logger(),
	}
}

func (c *Conversation) log(ctx context.Context) zerolog.Logger {
	return tracing.LoggerFromContext(ctx, c.logger)
}

// Start handles /start and /help.
func (c *Conversation) Start(ctx context.Context, ev telegram.Event) error {
	return c.reply(ev, welcomeText(), nil)
}

// Cancel handles /cancel.
func (c *Conversation) Cancel(ctx context.Context, ev telegram.Event) error {
	if !c.controller.Cancel(ev.UserID) {
		return c.reply(ev, textNothingToCancel, nil)
	}
	log := c.log(ctx)
	log.Info().Msg("Session cancelled by user")
	return c.reply(ev, textCancelled, nil)
}

// HandleMedia handles audio, document and photo messages. Images go to the
// cover prompt, everything else starts a new session.
func (c *Conversation) HandleMedia(ctx context.Context, ev telegram.Event) error {
	if ev.File == nil {
		return c.reply(ev, textAskForAudio, nil)
	}

	sess, ok := c.controller.Get(ev.UserID)
	awaitingCover := ok && sess.State.Stage == session.AwaitingCover

	switch {
	case awaitingCover && ev.File.IsImage():
		return c.handleCover(ctx, ev)
	case awaitingCover:
		return c.reply(ev, textAskForImage, backKeyboard())
	case ev.File.IsImage():
		return c.reply(ev, textAskForAudio, nil)
	default:
		return c.handleUpload(ctx, ev)
	}
}

func (c *Conversation) handleUpload(ctx context.Context, ev telegram.Event) error {
	log := c.log(ctx)
	file := *ev.File
	name := telegram.SafeFileName(file.Name)

	if c.maxSize > 0 && file.Size > c.maxSize {
		c.controller.Cancel(ev.UserID)
		log.Info().Int64("size", file.Size).Msg("Upload rejected before download")
		return c.reply(ev, c.errorText(session.ErrFileTooLarge), nil)
	}

	progress, err := telegram.StartProgress(c.messenger, ev.ChatID, textDownloading)
	if err != nil {
		return err
	}

	body, err := c.fetcher.Open(ctx, file, c.maxSize)
	if err != nil {
		c.controller.Cancel(ev.UserID)
		log.Warn().Err(err).Str("file", name).Msg("Download failed")
		return progress.Finish(c.errorText(err), nil)
	}
	defer body.Close()

	counter := &countingReader{r: body, onRead: func(n int64) {
		_ = progress.Update(fmt.Sprintf("%s %s", textDownloading, humanize.Bytes(uint64(n))))
	}}

	sess, err := c.controller.Create(ctx, ev.UserID, name, counter)
	if err != nil {
		c.logError(log, err, "Upload rejected")
		return progress.Finish(c.errorText(err), nil)
	}

	log.Info().
		Str("session_id", sess.ID).
		Str("format", sess.Format.String()).
		Str("size", humanize.Bytes(uint64(counter.Count()))).
		Msg("File loaded")

	return progress.Finish(menuText(sess.Snapshot), menuKeyboard())
}

func (c *Conversation) handleCover(ctx context.Context, ev telegram.Event) error {
	log := c.log(ctx)

	progress, err := telegram.StartProgress(c.messenger, ev.ChatID, textProcessingImage)
	if err != nil {
		return err
	}

	data, err := c.fetcher.ReadAll(ctx, *ev.File, c.maxSize)
	if err != nil {
		log.Warn().Err(err).Msg("Image download failed")
		return progress.Finish(c.errorText(err), backKeyboard())
	}

	sess, err := c.controller.ApplyCoverImage(ev.UserID, data)
	if err != nil {
		c.logError(log, err, "Cover rejected")
		var keyboard *tgbotapi.InlineKeyboardMarkup
		if errors.Is(err, session.ErrInvalidImage) || errors.Is(err, session.ErrWrite) {
			keyboard = backKeyboard()
		}
		return progress.Finish(c.errorText(err), keyboard)
	}

	return progress.Finish(updatedText(tags.FieldCover, sess.Snapshot)+"\n\n"+textWhatNext, nextStepKeyboard())
}

// HandleMessage handles plain text, which is only meaningful as a tag value.
func (c *Conversation) HandleMessage(ctx context.Context, ev telegram.Event) error {
	sess, ok := c.controller.Get(ev.UserID)
	if !ok {
		return c.reply(ev, textAskForAudio, nil)
	}

	switch sess.State.Stage {
	case session.EditingTag:
	case session.AwaitingCover:
		return c.reply(ev, textAskForImage, backKeyboard())
	default:
		return c.reply(ev, textUseButtons+"\n\n"+menuText(sess.Snapshot), menuKeyboard())
	}

	field := sess.State.Field
	updated, err := c.controller.ApplyTagValue(ev.UserID, ev.Text)
	if err != nil {
		c.logError(c.log(ctx), err, "Tag value rejected")
		if errors.Is(err, session.ErrValidation) || errors.Is(err, session.ErrWrite) {
			return c.reply(ev, c.errorText(err)+"\n"+textSendValueOrBack, backKeyboard())
		}
		return c.reply(ev, c.errorText(err), nil)
	}

	return c.reply(ev, updatedText(field, updated.Snapshot)+"\n\n"+textWhatNext, nextStepKeyboard())
}

// HandleCallback handles inline button presses.
func (c *Conversation) HandleCallback(ctx context.Context, ev telegram.Event) error {
	log := c.log(ctx)
	if err := c.messenger.AnswerCallback(ev.CallbackID, ""); err != nil {
		log.Debug().Err(err).Msg("Failed to answer callback")
	}

	action, field, ok := parseAction(ev.CallbackData)
	if !ok {
		log.Debug().Str("data", ev.CallbackData).Msg("Ignoring unknown callback")
		return nil
	}

	switch action {
	case actionDone:
		return c.finalize(ctx, ev)
	case actionEditMore:
		return c.showMenu(ctx, ev, false)
	case actionBack:
		return c.showMenu(ctx, ev, true)
	default:
		return c.selectTag(ctx, ev, field)
	}
}

func (c *Conversation) selectTag(ctx context.Context, ev telegram.Event, field tags.Field) error {
	sess, ok := c.controller.Get(ev.UserID)
	if !ok {
		return c.reply(ev, textNoSession, nil)
	}

	// A button on an older menu may be pressed while another edit is open.
	if sess.State.Stage != session.SelectingTag {
		if _, err := c.controller.Back(ev.UserID); err != nil {
			c.logError(c.log(ctx), err, "Failed to leave current edit")
			return c.reply(ev, c.errorText(err), nil)
		}
	}

	sess, err := c.controller.SelectTag(ev.UserID, field)
	if err != nil {
		c.logError(c.log(ctx), err, "Tag selection rejected")
		return c.reply(ev, c.errorText(err), nil)
	}

	text := textCoverPrompt
	if field != tags.FieldCover {
		text = promptText(field, sess.Snapshot.Get(field))
	}
	return c.editOrReply(ev, text, backKeyboard())
}

// showMenu shows the tag menu. inPlace replaces the pressed message instead
// of sending a new one.
func (c *Conversation) showMenu(ctx context.Context, ev telegram.Event, inPlace bool) error {
	sess, err := c.controller.Back(ev.UserID)
	if err != nil {
		c.logError(c.log(ctx), err, "Cannot show menu")
		return c.reply(ev, c.errorText(err), nil)
	}

	if inPlace {
		return c.editOrReply(ev, menuText(sess.Snapshot), menuKeyboard())
	}
	return c.reply(ev, menuText(sess.Snapshot), menuKeyboard())
}

func (c *Conversation) finalize(ctx context.Context, ev telegram.Event) error {
	log := c.log(ctx)

	if _, ok := c.controller.Get(ev.UserID); !ok {
		return c.reply(ev, textNoSession, nil)
	}

	progress, err := telegram.StartProgress(c.messenger, ev.ChatID, textPreparing)
	if err != nil {
		return err
	}
	if err := c.messenger.SendChatAction(ev.ChatID, tgbotapi.ChatUploadDocument); err != nil {
		log.Debug().Err(err).Msg("Failed to send chat action")
	}

	err = c.controller.Finalize(ctx, ev.UserID, func(ctx context.Context, path, name string) error {
		return c.messenger.SendDocument(ev.ChatID, path, name, textDeliveredCaption)
	})
	if err != nil {
		c.logError(log, err, "Delivery failed")
		if errors.Is(err, session.ErrNoActiveSession) {
			return progress.Finish(textNoSession, nil)
		}
		return progress.Finish(textDeliveryFailed, nextStepKeyboard())
	}

	log.Info().Msg("Edited file delivered")
	return progress.Finish(textNextFile, nil)
}

// NotifyExpired tells the owner of an evicted session what happened. Private
// chats share the user's ID.
func (c *Conversation) NotifyExpired(sess session.Session) {
	if _, err := c.messenger.SendMessage(sess.UserID, textExpired, nil); err != nil {
		c.logger.Warn().Err(err).Int64("user_id", sess.UserID).Msg("Failed to notify expired session")
	}
}

// errorText translates an operation error into a chat message.
func (c *Conversation) errorText(err error) string {
	var verr *session.ValidationError
	switch {
	case errors.As(err, &verr):
		return fmt.Sprintf("❌ Invalid %s: %s.", verr.Field.Label(), verr.Message)
	case errors.Is(err, session.ErrUnsupportedFormat):
		return unsupportedText()
	case errors.Is(err, session.ErrCorruptFile):
		return textCorruptFile
	case errors.Is(err, session.ErrFileTooLarge), errors.Is(err, telegram.ErrFileTooLarge):
		return tooLargeText(humanize.Bytes(uint64(c.maxSize)))
	case errors.Is(err, session.ErrInvalidImage):
		return textInvalidImage
	case errors.Is(err, session.ErrNoActiveSession):
		return textNoSession
	case errors.Is(err, session.ErrInvalidTransition):
		return textNotNow
	case errors.Is(err, session.ErrWrite):
		return textWriteFailed
	default:
		return textInternalError
	}
}

// logError logs user errors at debug and everything else at error level.
func (c *Conversation) logError(log zerolog.Logger, err error, msg string) {
	switch {
	case errors.Is(err, session.ErrValidation),
		errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrNoActiveSession):
		log.Debug().Err(err).Msg(msg)
	case session.IsFileError(err), errors.Is(err, session.ErrInvalidImage):
		log.Info().Err(err).Msg(msg)
	default:
		log.Error().Err(err).Msg(msg)
	}
}

func (c *Conversation) reply(ev telegram.Event, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	_, err := c.messenger.SendMessage(ev.ChatID, text, keyboard)
	return err
}

// editOrReply replaces the message a button belonged to, falling back to a
// new message when the edit fails.
func (c *Conversation) editOrReply(ev telegram.Event, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	if ev.MessageID != 0 {
		if err := c.messenger.EditMessage(ev.ChatID, ev.MessageID, text, keyboard); err == nil {
			return nil
		}
	}
	return c.reply(ev, text, keyboard)
}

type countingReader struct {
	r      io.Reader
	n      atomic.Int64
	onRead func(total int64)
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		total := r.n.Add(int64(n))
		if r.onRead != nil {
			r.onRead(total)
		}
	}
	return n, err
}

func (r *countingReader) Count() int64 {
	return r.n.Load()
}
