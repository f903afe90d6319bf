package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue implements an in-process job queue for single-instance deployments
type MemoryQueue struct {
	ch     chan uuid.UUID
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	slog.Info("Initialized in-memory job queue", "buffer_size", bufferSize)
	return &MemoryQueue{ch: make(chan uuid.UUID, bufferSize)}
}

// Enqueue adds a job to the queue, waiting up to five seconds for room
func (q *MemoryQueue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	if jobID == uuid.Nil {
		return fmt.Errorf("job must have an ID")
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.ch <- jobID:
		slog.Debug("Job enqueued", "job_id", jobID)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("queue is full, could not enqueue job %s", jobID)
	}
}

// Dequeue retrieves the next job from the queue
func (q *MemoryQueue) Dequeue(ctx context.Context) (uuid.UUID, error) {
	select {
	case id, ok := <-q.ch:
		if !ok {
			return uuid.Nil, ErrClosed
		}
		slog.Debug("Job dequeued", "job_id", id)
		return id, nil
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	}
}

// Close closes the queue. Jobs already buffered can still be dequeued.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	slog.Info("Memory queue closed")
	return nil
}
