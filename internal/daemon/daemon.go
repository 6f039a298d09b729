package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/harun/tagbot/internal/config"
	"github.com/harun/tagbot/internal/logger"
	"github.com/harun/tagbot/internal/metrics"
	"github.com/harun/tagbot/internal/session"
	"github.com/harun/tagbot/internal/telegram"
	"github.com/harun/tagbot/internal/tracing"
	"github.com/harun/tagbot/pkg/commandqueue"
)

const queueWarnAfter = 10 * time.Second

// Daemon represents the tagbot service
type Daemon struct {
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics

	// Core modules
	queue      *commandqueue.CommandQueue
	dedupe     *commandqueue.Dedupe
	controller *session.Controller
	janitor    *session.Janitor

	// Telegram
	telegramBot   *telegram.Bot
	telegramCmd   *telegram.Commands
	telegramMedia *telegram.Media
	conversation  *Conversation

	// Internal
	eventLoop     *EventLoop
	router        *Router
	lifecycle     *LifecycleManager
	metricsServer *MetricsServer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

var newTelegramBot = telegram.New

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:  cfg,
		logger:  log,
		metrics: metrics.NewMetrics(),
		ctx:     ctx,
		cancel:  cancel,
	}

	if err := d.initializeCoreModules(); err != nil {
		cancel()
		d.closeCoreModules()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	if err := d.initializeTelegram(); err != nil {
		cancel()
		d.closeCoreModules()
		return nil, fmt.Errorf("failed to initialize telegram: %w", err)
	}

	d.janitor = session.NewJanitor(d.controller, session.JanitorOptions{
		Schedule: cfg.Session.SweepSchedule,
		MaxIdle:  cfg.IdleTimeout(),
		OnEvict:  d.conversation.NotifyExpired,
		Logger:   log.GetZerolog(),
	})

	if cfg.Metrics.Enabled {
		d.metricsServer = NewMetricsServer(cfg.Metrics.Listen, d.metrics.Handler(), d.health, log.GetZerolog())
	}

	d.eventLoop = NewEventLoop(d)
	d.lifecycle = NewLifecycleManager(cfg.DataDir, log.GetZerolog())

	return d, nil
}

// initializeCoreModules creates the queue and the session controller.
func (d *Daemon) initializeCoreModules() error {
	zl := d.logger.GetZerolog()

	d.queue = commandqueue.New(commandqueue.Options{
		Logger:    zl,
		Observer:  d.metrics,
		WarnAfter: queueWarnAfter,
	})
	d.dedupe = commandqueue.NewDedupe(d.config.DedupeTTL())
	d.logger.Info().Msg("Command queue initialized")

	controller, err := session.NewController(session.NewStore(), session.Options{
		TempDir:     d.config.Session.TempDir,
		MaxFileSize: d.config.MaxFileSize(),
		Metrics:     d.metrics,
		Logger:      zl,
	})
	if err != nil {
		return fmt.Errorf("failed to create session controller: %w", err)
	}
	d.controller = controller
	d.logger.Info().Str("dir", controller.Dir()).Msg("Session controller initialized")

	return nil
}

// initializeTelegram connects the bot and wires the conversation handlers.
func (d *Daemon) initializeTelegram() error {
	bot, err := newTelegramBot(&d.config.Telegram, d.logger, d.metrics)
	if err != nil {
		return err
	}
	d.telegramBot = bot
	d.telegramMedia = telegram.NewMedia(bot)

	zl := d.logger.GetZerolog()
	d.conversation = NewConversation(d.controller, bot, d.telegramMedia, d.config.MaxFileSize(), zl)

	d.telegramCmd = telegram.NewCommands(bot)
	d.telegramCmd.Register("start", "Show instructions", d.conversation.Start)
	d.telegramCmd.Register("help", "Show instructions", d.conversation.Start)
	d.telegramCmd.Register("cancel", "Discard the current file", d.conversation.Cancel)

	bot.SetCommandHandler(d.telegramCmd)
	bot.SetMessageHandler(d.conversation)
	bot.SetMediaHandler(d.conversation)
	bot.SetCallbackHandler(d.conversation)

	d.router = NewRouter(d.queue, d.dedupe, bot.Route, bot, d.config.Telegram.Allowlist, zl)
	bot.SetDispatcher(func(ev telegram.Event) {
		d.router.Dispatch(ev)
	})

	d.logger.Info().
		Int("allowlist", len(d.config.Telegram.Allowlist)).
		Msg("Telegram handlers registered")

	return nil
}

// Start starts the daemon
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	logger := tracing.LoggerFromContext(tracing.WithTraceID(context.Background(), tracing.NewTraceID()), d.logger.GetZerolog())
	logger.Info().Msg("Starting tagbot daemon")

	if err := d.lifecycle.Start(); err != nil {
		d.setStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if d.metricsServer != nil {
		if err := d.metricsServer.Start(); err != nil {
			_ = d.lifecycle.Stop()
			d.setStopped()
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		logger.Info().Str("addr", d.metricsServer.Addr()).Msg("Metrics server started")
	}

	if err := d.janitor.Start(); err != nil {
		d.abortStart()
		return fmt.Errorf("failed to start session janitor: %w", err)
	}

	if err := d.telegramCmd.Publish(); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish bot commands")
	}

	if err := d.telegramBot.Start(); err != nil {
		d.janitor.Stop()
		d.abortStart()
		return fmt.Errorf("failed to start telegram bot: %w", err)
	}
	logger.Info().Msg("Telegram bot started")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.eventLoop.Run(d.ctx)
	}()

	logger.Info().Msg("Daemon started successfully")

	return nil
}

func (d *Daemon) abortStart() {
	if d.metricsServer != nil {
		_ = d.metricsServer.Stop()
	}
	_ = d.lifecycle.Stop()
	d.setStopped()
}

func (d *Daemon) setStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Stop drains in-flight events and releases every resource.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	logger := tracing.LoggerFromContext(tracing.WithTraceID(context.Background(), tracing.NewTraceID()), d.logger.GetZerolog())
	logger.Info().Msg("Stopping tagbot daemon")

	if err := d.telegramBot.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop telegram bot")
	}

	if !d.eventLoop.HandleShutdown(d.config.ShutdownTimeout()) {
		logger.Warn().Msg("Shutting down with events still in flight")
	}

	d.janitor.Stop()

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("All goroutines stopped")
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("Timeout waiting for goroutines to stop")
	}

	d.closeCoreModules()

	if d.metricsServer != nil {
		if err := d.metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop metrics server")
		}
	}

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	logger.Info().Msg("Daemon stopped successfully")

	return nil
}

// closeCoreModules closes the queue, then deletes every session file.
func (d *Daemon) closeCoreModules() {
	if d.queue != nil {
		if err := d.queue.Close(); err != nil {
			d.logger.Error().Err(err).Msg("Failed to close command queue")
		}
	}
	if d.dedupe != nil {
		d.dedupe.Stop()
	}
	if d.controller != nil {
		if err := d.controller.Close(); err != nil {
			d.logger.Error().Err(err).Msg("Failed to close session controller")
		}
	}
}

// WatchConfig applies allowlist and idle timeout changes from the config
// file without a restart.
func (d *Daemon) WatchConfig(loader *config.Loader) error {
	return loader.Watch(d.applyConfig)
}

func (d *Daemon) applyConfig(cfg *config.Config, err error) {
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to reload configuration")
		return
	}
	if err := cfg.Validate(); err != nil {
		d.logger.Warn().Err(err).Msg("Ignoring invalid configuration change")
		return
	}

	d.router.SetAllowlist(cfg.Telegram.Allowlist)
	d.janitor.SetMaxIdle(cfg.IdleTimeout())

	d.logger.Info().
		Int("allowlist", len(cfg.Telegram.Allowlist)).
		Dur("idle_timeout", cfg.IdleTimeout()).
		Msg("Configuration reloaded")
}

// health feeds /healthz. The daemon is degraded while the bot is not
// polling for updates.
func (d *Daemon) health() map[string]interface{} {
	stats := d.queue.GetStats()
	status := d.Status()
	state := "ok"
	if !d.telegramBot.IsRunning() {
		state = "degraded"
	}
	return map[string]interface{}{
		"status":         state,
		"telegram":       d.telegramBot.GetBotInfo(),
		"sessions":       d.controller.Len(),
		"queue_lanes":    stats.Lanes,
		"queue_queued":   stats.Queued,
		"queue_running":  stats.Running,
		"uptime_seconds": int64(status.Uptime.Seconds()),
	}
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}

	return status
}

// Wait blocks until SIGINT or SIGTERM and then stops the daemon.
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	d.logger.Info().Str("signal", sig.String()).Msg("Received signal")

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// Status is a point-in-time view of the daemon.
type Status struct {
	Running   bool
	Uptime    time.Duration
	StartTime time.Time
}

