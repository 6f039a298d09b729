package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	DefaultSweepSchedule = "@every 5m"
	DefaultMaxIdle       = 30 * time.Minute
)

// JanitorOptions configures idle eviction.
type JanitorOptions struct {
	Schedule string
	MaxIdle  time.Duration
	// OnEvict is called once per evicted session, after its file is gone.
	OnEvict func(Session)
	Logger  zerolog.Logger
}

// Janitor periodically evicts idle sessions.
type Janitor struct {
	controller *Controller
	cron       *cron.Cron
	schedule   string
	onEvict    func(Session)
	logger     zerolog.Logger

	mu      sync.RWMutex
	maxIdle time.Duration
	running bool
}

// NewJanitor creates a janitor; call Start to schedule sweeps.
func NewJanitor(controller *Controller, opts JanitorOptions) *Janitor {
	if opts.Schedule == "" {
		opts.Schedule = DefaultSweepSchedule
	}
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = DefaultMaxIdle
	}

	return &Janitor{
		controller: controller,
		cron:       cron.New(),
		schedule:   opts.Schedule,
		onEvict:    opts.OnEvict,
		logger:     opts.Logger.With().Str("component", "janitor").Logger(),
		maxIdle:    opts.MaxIdle,
	}
}

// Start schedules sweeps.
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return fmt.Errorf("janitor is already running")
	}
	if _, err := j.cron.AddFunc(j.schedule, func() { j.Sweep() }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", j.schedule, err)
	}
	j.cron.Start()
	j.running = true

	j.logger.Info().
		Str("schedule", j.schedule).
		Dur("max_idle", j.maxIdle).
		Msg("Session janitor started")
	return nil
}

// Stop cancels future sweeps and waits for a running one to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	j.mu.Unlock()

	<-j.cron.Stop().Done()
	j.logger.Info().Msg("Session janitor stopped")
}

// Sweep evicts idle sessions now and returns how many were removed.
func (j *Janitor) Sweep() int {
	evicted := j.controller.EvictIdle(j.MaxIdle())
	for _, sess := range evicted {
		j.logger.Info().
			Int64("user_id", sess.UserID).
			Str("session_id", sess.ID).
			Time("last_activity", sess.UpdatedAt).
			Msg("Idle session evicted")
		if j.onEvict != nil {
			j.onEvict(sess)
		}
	}
	return len(evicted)
}

// MaxIdle returns the current idle limit.
func (j *Janitor) MaxIdle() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.maxIdle
}

// SetMaxIdle changes the idle limit for future sweeps.
func (j *Janitor) SetMaxIdle(d time.Duration) {
	if d <= 0 {
		return
	}
	j.mu.Lock()
	j.maxIdle = d
	j.mu.Unlock()
	j.logger.Info().Dur("max_idle", d).Msg("Idle timeout updated")
}
