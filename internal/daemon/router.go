package daemon

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/harun/tagbot/internal/telegram"
	"github.com/harun/tagbot/internal/tracing"
	"github.com/harun/tagbot/pkg/commandqueue"
)

// EventHandler runs one event to completion.
type EventHandler func(ctx context.Context, ev telegram.Event) error

// Router moves events from the update loop onto per-user lanes so that one
// user's events run one at a time and in order.
type Router struct {
	queue     *commandqueue.CommandQueue
	dedupe    *commandqueue.Dedupe
	handle    EventHandler
	messenger Messenger
	logger    zerolog.Logger

	mu        sync.RWMutex
	allowlist map[int64]struct{}
}

// NewRouter creates a router. An empty allowlist admits every user.
func NewRouter(queue *commandqueue.CommandQueue, dedupe *commandqueue.Dedupe, handle EventHandler, messenger Messenger, allowlist []int64, logger zerolog.Logger) *Router {
	r := &Router{
		queue:     queue,
		dedupe:    dedupe,
		handle:    handle,
		messenger: messenger,
		logger:    logger.With().Str("component", "router").Logger(),
	}
	r.SetAllowlist(allowlist)
	return r
}

// SetAllowlist replaces the set of admitted users.
func (r *Router) SetAllowlist(ids []int64) {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	r.mu.Lock()
	r.allowlist = set
	r.mu.Unlock()
}

// Allowed reports whether userID may use the bot.
func (r *Router) Allowed(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.allowlist) == 0 {
		return true
	}
	_, ok := r.allowlist[userID]
	return ok
}

// Dispatch queues ev on its user's lane. The returned channel yields the
// handler's result; it is nil when the event was dropped.
func (r *Router) Dispatch(ev telegram.Event) <-chan error {
	if ev.UpdateID != 0 && r.dedupe.Seen(fmt.Sprintf("update:%d", ev.UpdateID)) {
		r.logger.Debug().Int("update_id", ev.UpdateID).Msg("Skipping duplicate update")
		return nil
	}

	ctx := tracing.NewUpdateContext(context.Background(), ev.UserID, ev.UpdateID)
	log := tracing.LoggerFromContext(ctx, r.logger)

	if !r.Allowed(ev.UserID) {
		log.Warn().Str("username", ev.Username).Msg("Rejected user not in allowlist")
		r.reject(ev)
		return nil
	}

	log.Debug().Str("kind", ev.Kind.String()).Msg("Routing event")

	return r.queue.Submit(ctx, laneFor(ev.UserID), func(ctx context.Context) error {
		return r.handle(ctx, ev)
	})
}

func (r *Router) reject(ev telegram.Event) {
	if ev.Kind == telegram.EventCallback {
		if err := r.messenger.AnswerCallback(ev.CallbackID, textNotAllowed); err != nil {
			r.logger.Debug().Err(err).Msg("Failed to answer callback")
		}
		return
	}
	if _, err := r.messenger.SendMessage(ev.ChatID, textNotAllowed, nil); err != nil {
		r.logger.Debug().Err(err).Msg("Failed to send rejection")
	}
}

func laneFor(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}
