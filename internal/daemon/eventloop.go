package daemon

import (
	"context"
	"time"
)

const defaultStatsInterval = 30 * time.Second

// EventLoop runs periodic maintenance while the daemon is up.
type EventLoop struct {
	daemon   *Daemon
	interval time.Duration
}

// NewEventLoop creates a new event loop
func NewEventLoop(d *Daemon) *EventLoop {
	return &EventLoop{
		daemon:   d,
		interval: defaultStatsInterval,
	}
}

// Run runs the event loop until ctx is done.
func (e *EventLoop) Run(ctx context.Context) {
	e.daemon.logger.Info().Msg("Event loop started")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.daemon.logger.Info().Msg("Event loop stopping")
			return

		case <-ticker.C:
			e.processTasks()
		}
	}
}

// processTasks refreshes the session and queue gauges and logs queue
// pressure.
func (e *EventLoop) processTasks() {
	sessions := e.daemon.controller.Len()
	e.daemon.metrics.SetActiveSessions(sessions)

	stats := e.daemon.queue.GetStats()
	e.daemon.metrics.SetQueueWaiting(stats.Queued)
	if stats.Queued > 0 || stats.Running > 0 {
		e.daemon.logger.Debug().
			Int("lanes", stats.Lanes).
			Int("queued", stats.Queued).
			Int("running", stats.Running).
			Int("sessions", sessions).
			Msg("Queue stats")
	}
}

// HandleShutdown waits up to timeout for queued events to finish.
func (e *EventLoop) HandleShutdown(timeout time.Duration) bool {
	e.daemon.logger.Info().Msg("Handling graceful shutdown")

	drained := e.daemon.queue.WaitForActive(timeout)
	if drained {
		e.daemon.logger.Info().Msg("All active tasks completed")
	}
	return drained
}
