package commandqueue

import (
	"context"
	"sync"
	"time"
)

const defaultDedupeTTL = 5 * time.Minute

// Dedupe remembers keys for a bounded time so redelivered work can be
// skipped before it is queued.
type Dedupe struct {
	entries map[string]time.Time
	ttl     time.Duration
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	now     func() time.Time
}

// NewDedupe creates a cache whose entries expire after ttl.
func NewDedupe(ttl time.Duration) *Dedupe {
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dedupe{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		cancel:  cancel,
		done:    make(chan struct{}),
		now:     time.Now,
	}

	// Start cleanup goroutine
	go d.cleanup(ctx)

	return d
}

// Seen records key and reports whether it was already recorded within the
// TTL.
func (d *Dedupe) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.entries[key]; ok && now.Sub(at) <= d.ttl {
		return true
	}
	d.entries[key] = now
	return false
}

// Size returns the number of entries in the cache
func (d *Dedupe) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Stop ends the cleanup goroutine.
func (d *Dedupe) Stop() {
	d.cancel()
	<-d.done
}

// cleanup periodically removes expired entries
func (d *Dedupe) cleanup(ctx context.Context) {
	defer close(d.done)

	interval := d.ttl
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.prune()
		}
	}
}

func (d *Dedupe) prune() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for key, at := range d.entries {
		if now.Sub(at) > d.ttl {
			delete(d.entries, key)
		}
	}
}
