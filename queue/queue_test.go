package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *DeliveryQueue {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewDeliveryQueue(client)
}

func TestEnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	require.NoError(t, q.Enqueue(ctx, 42))
	require.NoError(t, q.Enqueue(ctx, 43))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, uint(42), job.EmailSendID)
	assert.Equal(t, 1, job.Attempt)

	job, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, uint(43), job.EmailSendID)
}

func TestDequeueEmptyReturnsNil(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	job, err := q.Dequeue(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestScheduleRetryAndPromoteDue(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	now := time.Now()
	require.NoError(t, q.ScheduleRetry(ctx, Job{EmailSendID: 1, Attempt: 2}, now.Add(-time.Minute)))
	require.NoError(t, q.ScheduleRetry(ctx, Job{EmailSendID: 2, Attempt: 2}, now.Add(time.Hour)))

	// Only the first retry is ready.
	promoted, err := q.PromoteDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, uint(1), job.EmailSendID)
	assert.Equal(t, 2, job.Attempt)

	// The future retry stays parked.
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	promoted, err = q.PromoteDue(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)
}

func TestPromoteDueEmpty(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	promoted, err := q.PromoteDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, promoted)
}
