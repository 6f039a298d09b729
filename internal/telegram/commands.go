package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Commands dispatches slash commands to registered functions.
type Commands struct {
	bot      *Bot
	logger   zerolog.Logger
	mu       sync.RWMutex
	handlers map[string]command
}

// CommandFunc is a function that handles a command
type CommandFunc func(ctx context.Context, ev Event) error

type command struct {
	description string
	fn          CommandFunc
}

// NewCommands creates a new command handler
func NewCommands(bot *Bot) *Commands {
	return &Commands{
		bot:      bot,
		logger:   bot.logger.With().Str("module", "commands").Logger(),
		handlers: make(map[string]command),
	}
}

// HandleCommand processes incoming commands
func (c *Commands) HandleCommand(ctx context.Context, ev Event) error {
	if ev.Kind != EventCommand {
		return nil
	}

	name := strings.ToLower(ev.Command)

	c.logger.Debug().
		Int64("chat_id", ev.ChatID).
		Str("command", name).
		Msg("Command received")

	c.mu.RLock()
	cmd, exists := c.handlers[name]
	c.mu.RUnlock()
	if !exists {
		return c.sendUnknownCommand(ev)
	}

	return cmd.fn(ctx, ev)
}

// Register registers a command handler
func (c *Commands) Register(name, description string, fn CommandFunc) {
	c.mu.Lock()
	c.handlers[strings.ToLower(name)] = command{description: description, fn: fn}
	c.mu.Unlock()
	c.logger.Debug().Str("command", name).Msg("Command registered")
}

// Unregister removes a command handler
func (c *Commands) Unregister(name string) {
	c.mu.Lock()
	delete(c.handlers, strings.ToLower(name))
	c.mu.Unlock()
}

// BotCommands lists the registered commands in name order.
func (c *Commands) BotCommands() []tgbotapi.BotCommand {
	c.mu.RLock()
	defer c.mu.RUnlock()

	commands := make([]tgbotapi.BotCommand, 0, len(c.handlers))
	for name, cmd := range c.handlers {
		commands = append(commands, tgbotapi.BotCommand{Command: name, Description: cmd.description})
	}
	sort.Slice(commands, func(i, j int) bool {
		return commands[i].Command < commands[j].Command
	})
	return commands
}

// Publish sets the bot's command menu in Telegram to the registered commands
func (c *Commands) Publish() error {
	commands := c.BotCommands()
	if _, err := c.bot.api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		return fmt.Errorf("failed to set commands: %w", err)
	}

	c.logger.Info().Int("count", len(commands)).Msg("Bot commands updated")
	return nil
}

func (c *Commands) sendUnknownCommand(ev Event) error {
	text := fmt.Sprintf("Unknown command: /%s\nSend /start to see what I can do.", ev.Command)
	_, err := c.bot.SendMessage(ev.ChatID, text, nil)
	return err
}
