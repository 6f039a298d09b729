// Package commandqueue provides lane-based task execution with FIFO ordering per lane.
//
// Invariants:
// - Tasks in the same lane execute one at a time in FIFO order.
// - Tasks in different lanes may execute concurrently.
// - Idle lanes are dropped; a lane exists only while it has queued or running work.
// - A panicking task fails with an error; the lane keeps running.
//
// Usage:
//
//	queue := commandqueue.New(commandqueue.Options{Logger: logger})
//	defer queue.Close()
//	queue.Submit(ctx, "user:42", func(ctx context.Context) error {
//		return handle(ctx, update)
//	})
package commandqueue
