package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickrec/internal/model"
	"tickrec/pkg/exception"
)

func tick(ts int64) model.TickEnvelope {
	return model.NewTick(time.UnixMilli(ts), "K", model.Fields{})
}

func TestQueueFIFOAndDrain(t *testing.T) {
	q := NewQueue(8)
	for i := int64(0); i < 5; i++ {
		require.NoError(t, q.TryPublish(tick(i)))
	}

	got := q.Drain(nil, 3)
	require.Len(t, got, 3)
	got = q.Drain(got, 0)
	require.Len(t, got, 5)
	for i, e := range got {
		assert.Equal(t, int64(i), e.ReceivedTS)
	}
	assert.Empty(t, q.Drain(nil, 0))
}

func TestQueueTryPublishFull(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.TryPublish(tick(1)))
	assert.ErrorIs(t, q.TryPublish(tick(2)), exception.ErrQueueFull)
}

func TestQueuePublishBlocksUntilCancelled(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.Publish(t.Context(), tick(1)))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, tick(2))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueTake(t *testing.T) {
	q := NewQueue(2)
	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = q.TryPublish(tick(7))
	}()
	e, err := q.Take(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(7), e.ReceivedTS)

	_, ok := q.TryTake()
	assert.False(t, ok)
}

func TestQueueClose(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.TryPublish(tick(1)))
	q.Close()
	assert.ErrorIs(t, q.TryPublish(tick(2)), exception.ErrQueueClosed)
	assert.ErrorIs(t, q.Publish(t.Context(), tick(2)), exception.ErrQueueClosed)

	e, ok := q.TryTake()
	require.True(t, ok)
	assert.Equal(t, int64(1), e.ReceivedTS)
}
