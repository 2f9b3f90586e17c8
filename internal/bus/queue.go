package bus

import (
	"context"
	"sync/atomic"

	"tickrec/internal/model"
	"tickrec/pkg/exception"
)

// Queue is a bounded FIFO of envelopes shared by one pipeline stage pair.
// The channel is never closed; end-of-stream travels as a sentinel.
type Queue struct {
	ch     chan model.TickEnvelope
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan model.TickEnvelope, capacity)}
}

// TryPublish enqueues an envelope without blocking.
func (q *Queue) TryPublish(e model.TickEnvelope) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return exception.ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return exception.ErrQueueFull
	}
}

// Publish enqueues an envelope, blocking while the queue is full.
func (q *Queue) Publish(ctx context.Context, e model.TickEnvelope) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return exception.ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain appends every currently queued envelope to dst without blocking.
// limit <= 0 means no limit.
func (q *Queue) Drain(dst []model.TickEnvelope, limit int) []model.TickEnvelope {
	for n := 0; limit <= 0 || n < limit; n++ {
		select {
		case e := <-q.ch:
			dst = append(dst, e)
		default:
			return dst
		}
	}
	return dst
}

// Take dequeues one envelope, blocking until one is available.
func (q *Queue) Take(ctx context.Context) (model.TickEnvelope, error) {
	select {
	case e := <-q.ch:
		return e, nil
	case <-ctx.Done():
		return model.TickEnvelope{}, ctx.Err()
	}
}

// TryTake dequeues one envelope if any is queued.
func (q *Queue) TryTake() (model.TickEnvelope, bool) {
	select {
	case e := <-q.ch:
		return e, true
	default:
		return model.TickEnvelope{}, false
	}
}

// C exposes the receive side for select based consumers.
func (q *Queue) C() <-chan model.TickEnvelope {
	return q.ch
}

// Close stops the queue from accepting new envelopes. Queued envelopes stay
// available to consumers.
func (q *Queue) Close() {
	atomic.StoreUint32(&q.closed, 1)
}

func (q *Queue) Len() int { return len(q.ch) }

func (q *Queue) Cap() int { return cap(q.ch) }
