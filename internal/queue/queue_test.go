package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue(4)
	t.Cleanup(func() { q.Close() })
	ctx := context.Background()

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		require.NoError(t, q.Enqueue(ctx, id))
	}
	for _, want := range ids {
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestMemoryQueue_RejectsNilID(t *testing.T) {
	q := NewMemoryQueue(1)
	t.Cleanup(func() { q.Close() })
	assert.Error(t, q.Enqueue(context.Background(), uuid.Nil))
}

func TestMemoryQueue_DequeueHonoursContext(t *testing.T) {
	q := NewMemoryQueue(1)
	t.Cleanup(func() { q.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, q.Enqueue(ctx, id))

	require.NoError(t, q.Close())
	require.NoError(t, q.Close(), "closing twice is harmless")

	assert.ErrorIs(t, q.Enqueue(ctx, uuid.New()), ErrClosed)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err, "buffered jobs drain after close")
	assert.Equal(t, id, got)

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDecodeEnvelope(t *testing.T) {
	id := uuid.New()
	got, err := decodeEnvelope(`{"id":"` + id.String() + `","enqueued_at":"2026-01-02T03:04:05Z"}`)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = decodeEnvelope(`not json`)
	assert.Error(t, err)

	_, err = decodeEnvelope(`{"id":"nope"}`)
	assert.Error(t, err)

	_, err = decodeEnvelope(`{"id":"00000000-0000-0000-0000-000000000000"}`)
	assert.Error(t, err)
}
