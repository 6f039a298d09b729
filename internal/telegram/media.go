package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// ErrFileTooLarge is returned when a file exceeds the download limit, either
// by its announced size or because the Bot API refuses to serve it.
var ErrFileTooLarge = errors.New("file too large")

// Media downloads files referenced by events.
type Media struct {
	bot          *Bot
	logger       zerolog.Logger
	fileEndpoint string
}

// NewMedia creates a new media downloader
func NewMedia(bot *Bot) *Media {
	endpoint := bot.config.FileEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.FileEndpoint
	}
	return &Media{
		bot:          bot,
		logger:       bot.logger.With().Str("module", "media").Logger(),
		fileEndpoint: endpoint,
	}
}

// Open starts downloading file and returns its body. maxSize <= 0 disables
// the size check; callers still bound what they read.
func (m *Media) Open(ctx context.Context, file FileRef, maxSize int64) (io.ReadCloser, error) {
	if maxSize > 0 && file.Size > maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, file.Size)
	}

	info, err := m.bot.api.GetFile(tgbotapi.FileConfig{FileID: file.FileID})
	if err != nil {
		if strings.Contains(err.Error(), "file is too big") {
			return nil, fmt.Errorf("%w: %v", ErrFileTooLarge, err)
		}
		m.bot.metrics.RecordTelegramError()
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	if maxSize > 0 && int64(info.FileSize) > maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.FileSize)
	}

	url := fmt.Sprintf(m.fileEndpoint, m.bot.api.Token, info.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := m.bot.api.Client.Do(req)
	if err != nil {
		m.bot.metrics.RecordTelegramError()
		return nil, fmt.Errorf("failed to download file: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		m.bot.metrics.RecordTelegramError()
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	m.logger.Debug().
		Str("file_id", file.FileID).
		Str("kind", string(file.Kind)).
		Int64("size", int64(info.FileSize)).
		Msg("Download started")

	return resp.Body, nil
}

// ReadAll downloads file into memory, failing with ErrFileTooLarge once more
// than maxSize bytes arrive.
func (m *Media) ReadAll(ctx context.Context, file FileRef, maxSize int64) ([]byte, error) {
	body, err := m.Open(ctx, file, maxSize)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var r io.Reader = body
	if maxSize > 0 {
		r = io.LimitReader(body, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
