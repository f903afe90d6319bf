// Package queue transports mail job IDs from the API to the workers. Job
// state lives in the database; a queue only carries "this job is ready".
package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrClosed is returned once a queue has been closed
	ErrClosed = errors.New("queue closed")
	// ErrEmpty is returned by Dequeue when a blocking pop timed out with nothing to do
	ErrEmpty = errors.New("queue empty")
)

// Queue represents a job queue interface
type Queue interface {
	// Enqueue hands a persisted job to the workers
	Enqueue(ctx context.Context, jobID uuid.UUID) error

	// Dequeue blocks until a job is available, ctx is done, or the backend
	// timed out (ErrEmpty)
	Dequeue(ctx context.Context) (uuid.UUID, error)

	// Close closes the queue and releases resources
	Close() error
}
