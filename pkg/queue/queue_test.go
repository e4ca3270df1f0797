package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, nil), mr
}

func TestEnqueueDequeueEmail(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, q.EnqueueEmail(ctx, EmailPayload{
		EmailType:      "payment_paid",
		UserID:         userID,
		Reference:      "INV-1-abc",
		RecipientEmail: "budi@example.com",
		Subject:        "Pembayaran berhasil",
	}))

	job, key, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, QueueEmails, key)
	assert.Equal(t, JobTypePaymentEmail, job.Type)

	var p EmailPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, "INV-1-abc", p.Reference)
}

func TestDequeueSkipsGarbage(t *testing.T) {
	q, mr := newTestQueue(t)
	_, err := mr.Push(QueueEmails, "not-json")
	require.NoError(t, err)

	job, _, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestRetryThenDLQ(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()
	job := &Job{ID: "job-1", Type: JobTypePaymentEmail}

	for i := 1; i < MaxRetries; i++ {
		require.NoError(t, q.Retry(ctx, job))
		assert.Equal(t, i, job.Attempt)
	}
	list, err := mr.List(QueueEmails)
	require.NoError(t, err)
	assert.Len(t, list, MaxRetries-1)

	require.NoError(t, q.Retry(ctx, job))
	n, err := q.DLQLen(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
