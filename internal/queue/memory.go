package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/RohitLad/resume-markup/internal/shared/metrics"
	"github.com/RohitLad/resume-markup/internal/shared/telemetry"
)

// MemoryQueue hands messages to in-process worker goroutines.
type MemoryQueue struct {
	handle  HandlerFunc
	workers int

	mu      sync.RWMutex
	ch      chan Message
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewMemoryQueue constructs a queue with a buffer of size messages.
func NewMemoryQueue(size, workers int, handle HandlerFunc) *MemoryQueue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &MemoryQueue{
		handle:  handle,
		workers: workers,
		ch:      make(chan Message, size),
	}
}

// Start launches the workers. Jobs keep running after ctx is cancelled so Stop can drain.
func (q *MemoryQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	jobCtx := context.WithoutCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func(worker int) {
			defer q.wg.Done()
			for msg := range q.ch {
				q.run(jobCtx, worker, msg)
			}
		}(i)
	}
}

// Send enqueues a message, blocking while the buffer is full.
func (q *MemoryQueue) Send(ctx context.Context, msg Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- msg:
		metrics.IncQueueJob("enqueued")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses new messages and waits for queued ones to finish.
func (q *MemoryQueue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *MemoryQueue) run(ctx context.Context, worker int, msg Message) {
	fields := map[string]any{
		"worker":     worker,
		"request_id": msg.RequestID,
		"type":       msg.Type,
	}
	defer func() {
		if rec := recover(); rec != nil {
			fields["panic"] = fmt.Sprint(rec)
			telemetry.Error("queue.job.panic", fields)
			metrics.IncQueueJob("panicked")
		}
	}()
	if err := q.handle(ctx, msg); err != nil {
		fields["error"] = err.Error()
		telemetry.Error("queue.job.failed", fields)
		metrics.IncQueueJob("failed")
		return
	}
	metrics.IncQueueJob("completed")
}

var _ Client = (*MemoryQueue)(nil)
