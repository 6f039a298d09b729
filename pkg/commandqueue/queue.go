package commandqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrClosed is returned for tasks submitted after Close.
var ErrClosed = errors.New("command queue is closed")

// Task is one unit of work run inside a lane.
type Task func(ctx context.Context) error

// Observer receives queue activity, typically metrics. waiting is the number
// of tasks queued across all lanes, not counting running ones.
type Observer interface {
	RecordQueueEnqueue(lane string, waiting int)
	RecordQueueCompletion(lane string, duration time.Duration, success bool, waiting int)
}

// Options configures a CommandQueue.
type Options struct {
	Logger   zerolog.Logger
	Observer Observer
	// WarnAfter logs tasks that waited longer than this before starting.
	WarnAfter time.Duration
}

// taskRecord tracks a task's execution state
type taskRecord struct {
	id         string
	task       Task
	ctx        context.Context
	enqueuedAt time.Time
	done       chan error
}

// laneState manages execution state for a single lane
type laneState struct {
	name        string
	concurrency int
	queue       []*taskRecord
	running     int
	mu          sync.Mutex
}

// CommandQueue provides lane-based task serialization. Lanes are created on
// first use with concurrency 1 and dropped again once idle.
type CommandQueue struct {
	lanes     map[string]*laneState
	taskIDSeq uint64
	waiting   atomic.Int64
	closed    bool
	mu        sync.Mutex
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	logger    zerolog.Logger
	observer  Observer
	warnAfter time.Duration
}

// New creates an empty CommandQueue.
func New(opts Options) *CommandQueue {
	ctx, cancel := context.WithCancel(context.Background())

	return &CommandQueue{
		lanes:     make(map[string]*laneState),
		ctx:       ctx,
		cancel:    cancel,
		logger:    opts.Logger.With().Str("component", "commandqueue").Logger(),
		observer:  opts.Observer,
		warnAfter: opts.WarnAfter,
	}
}

// Submit queues task on lane and returns immediately. The returned channel
// yields the task's error once it has run.
func (cq *CommandQueue) Submit(ctx context.Context, lane string, task Task) <-chan error {
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan error, 1)

	cq.mu.Lock()
	if cq.closed {
		cq.mu.Unlock()
		done <- ErrClosed
		close(done)
		return done
	}

	ls, exists := cq.lanes[lane]
	if !exists {
		ls = &laneState{name: lane, concurrency: 1}
		cq.lanes[lane] = ls
	}

	cq.taskIDSeq++
	record := &taskRecord{
		id:         fmt.Sprintf("%s-%d", lane, cq.taskIDSeq),
		task:       task,
		ctx:        ctx,
		enqueuedAt: time.Now(),
		done:       done,
	}

	ls.mu.Lock()
	ls.queue = append(ls.queue, record)
	queueSize := len(ls.queue)
	waiting := int(cq.waiting.Add(1))
	ls.mu.Unlock()
	cq.mu.Unlock()

	cq.logger.Debug().
		Str("lane", lane).
		Str("taskId", record.id).
		Int("queueSize", queueSize).
		Msg("Task enqueued")

	if cq.observer != nil {
		cq.observer.RecordQueueEnqueue(lane, waiting)
	}

	cq.processLane(ls)
	return done
}

// processLane starts queued tasks while the lane has capacity.
func (cq *CommandQueue) processLane(ls *laneState) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	for ls.running < ls.concurrency && len(ls.queue) > 0 {
		record := ls.queue[0]
		ls.queue = ls.queue[1:]
		cq.waiting.Add(-1)

		ls.running++

		if wait := time.Since(record.enqueuedAt); cq.warnAfter > 0 && wait > cq.warnAfter {
			cq.logger.Warn().
				Str("lane", ls.name).
				Str("taskId", record.id).
				Dur("wait", wait).
				Msg("Task waited longer than expected")
		}

		cq.wg.Add(1)
		go cq.executeTask(ls, record)
	}
}

// executeTask executes a single task
func (cq *CommandQueue) executeTask(ls *laneState, record *taskRecord) {
	defer cq.wg.Done()

	runCtx, cancel := context.WithCancel(record.ctx)
	stopCancel := context.AfterFunc(cq.ctx, cancel)
	defer func() {
		stopCancel()
		cancel()
	}()

	startTime := time.Now()
	err := cq.run(runCtx, record)
	duration := time.Since(startTime)

	ls.mu.Lock()
	ls.running--
	ls.mu.Unlock()

	if err != nil {
		cq.logger.Error().
			Str("lane", ls.name).
			Str("taskId", record.id).
			Dur("duration", duration).
			Err(err).
			Msg("Task failed")
	} else {
		cq.logger.Debug().
			Str("lane", ls.name).
			Str("taskId", record.id).
			Dur("duration", duration).
			Msg("Task completed")
	}

	if cq.observer != nil {
		cq.observer.RecordQueueCompletion(ls.name, duration, err == nil, int(cq.waiting.Load()))
	}

	record.done <- err
	close(record.done)

	cq.processLane(ls)
	cq.dropIfIdle(ls)
}

// run executes the task and reports a panic as an error.
func (cq *CommandQueue) run(ctx context.Context, record *taskRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", record.id, r)
		}
	}()
	return record.task(ctx)
}

func (cq *CommandQueue) dropIfIdle(ls *laneState) {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	ls.mu.Lock()
	idle := ls.running == 0 && len(ls.queue) == 0
	ls.mu.Unlock()

	if idle && cq.lanes[ls.name] == ls {
		delete(cq.lanes, ls.name)
	}
}

// Stats summarizes all live lanes.
type Stats struct {
	Lanes   int
	Queued  int
	Running int
}

// GetStats returns statistics across lanes
func (cq *CommandQueue) GetStats() Stats {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	stats := Stats{Lanes: len(cq.lanes)}
	for _, ls := range cq.lanes {
		ls.mu.Lock()
		stats.Queued += len(ls.queue)
		stats.Running += ls.running
		ls.mu.Unlock()
	}
	return stats
}

// WaitForActive waits for all queued and running tasks to complete with
// timeout
func (cq *CommandQueue) WaitForActive(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		stats := cq.GetStats()
		if stats.Queued == 0 && stats.Running == 0 {
			cq.logger.Debug().Msg("All active tasks completed")
			return true
		}

		if time.Now().After(deadline) {
			cq.logger.Warn().
				Dur("timeout", timeout).
				Int("running", stats.Running).
				Int("queued", stats.Queued).
				Msg("Timeout waiting for active tasks")
			return false
		}

		<-ticker.C
	}
}

// Close rejects new tasks, cancels running ones and waits for them.
func (cq *CommandQueue) Close() error {
	cq.mu.Lock()
	cq.closed = true
	cq.mu.Unlock()

	cq.cancel()
	cq.wg.Wait()
	return nil
}
