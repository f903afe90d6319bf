package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

// DefaultValkeyKey is the list mail job IDs are pushed to.
const DefaultValkeyKey = "mailroom:mail_jobs"

// ValkeyQueue implements a distributed job queue using a Valkey list.
// Only job IDs travel through Valkey; the database is the source of truth.
type ValkeyQueue struct {
	client valkey.Client
	key    string
}

type envelope struct {
	ID         string    `json:"id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewValkeyQueue connects to addr and verifies the connection.
func NewValkeyQueue(addr string) (*ValkeyQueue, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Valkey: %w", err)
	}

	q := NewValkeyQueueWithClient(client, DefaultValkeyKey)
	slog.Info("Initialized Valkey job queue", "address", addr, "queue_key", q.key)
	return q, nil
}

// NewValkeyQueueWithClient wraps an existing client.
func NewValkeyQueueWithClient(client valkey.Client, key string) *ValkeyQueue {
	return &ValkeyQueue{client: client, key: key}
}

// Enqueue pushes the job ID onto the tail of the list (FIFO with BLPOP).
func (q *ValkeyQueue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	if jobID == uuid.Nil {
		return fmt.Errorf("job must have an ID")
	}

	data, err := json.Marshal(envelope{ID: jobID.String(), EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal job data: %w", err)
	}

	cmd := q.client.B().Rpush().Key(q.key).Element(string(data)).Build()
	if err := q.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to push job to Valkey: %w", err)
	}

	slog.Debug("Job enqueued", "job_id", jobID, "queue_key", q.key)
	return nil
}

// Dequeue blocks for up to five seconds waiting for a job ID.
func (q *ValkeyQueue) Dequeue(ctx context.Context) (uuid.UUID, error) {
	cmd := q.client.B().Blpop().Key(q.key).Timeout(5).Build()
	values, err := q.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		if ctx.Err() != nil {
			return uuid.Nil, ctx.Err()
		}
		if valkey.IsValkeyNil(err) {
			return uuid.Nil, ErrEmpty
		}
		return uuid.Nil, fmt.Errorf("failed to pop job from Valkey: %w", err)
	}
	if len(values) < 2 {
		return uuid.Nil, fmt.Errorf("invalid BLPOP result: expected 2 values, got %d", len(values))
	}

	return decodeEnvelope(values[1])
}

func decodeEnvelope(raw string) (uuid.UUID, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return uuid.Nil, fmt.Errorf("failed to unmarshal job data: %w", err)
	}
	id, err := uuid.Parse(env.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse job ID: %w", err)
	}
	if id == uuid.Nil {
		return uuid.Nil, errors.New("job envelope has an empty ID")
	}
	return id, nil
}

// Close closes the Valkey connection
func (q *ValkeyQueue) Close() error {
	q.client.Close()
	slog.Info("Valkey queue closed")
	return nil
}
