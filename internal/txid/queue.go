package txid

import (
	"context"
	"errors"
	"sync"
)

// errQueueClosed is returned by pop once the queue is closed and drained.
var errQueueClosed = errors.New("queue closed")

// queue is a thread-safe FIFO that doubles its capacity when it reaches 70%
// full, up to maxCapacity. A full queue at maxCapacity drops its oldest item so
// push never blocks.
type queue[T any] struct {
	mu          sync.Mutex
	notify      chan struct{} // buffered(1); signalled on push, closed on close
	buf         []T
	head        int // read position
	tail        int // write position
	count       int
	capacity    int
	maxCapacity int
	closed      bool

	// Stats
	pushed      int64
	popped      int64
	dropped     int64
	resizeCount int
}

// queueStats contains queue statistics.
type queueStats struct {
	Count       int
	Capacity    int
	Pushed      int64
	Popped      int64
	Dropped     int64
	ResizeCount int
}

func newQueue[T any](initialCapacity, maxCapacity int) *queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if maxCapacity < initialCapacity {
		maxCapacity = initialCapacity
	}
	return &queue[T]{
		notify:      make(chan struct{}, 1),
		buf:         make([]T, initialCapacity),
		capacity:    initialCapacity,
		maxCapacity: maxCapacity,
	}
}

// push appends item. It reports whether the item was accepted and whether an
// older item was dropped to make room.
func (q *queue[T]) push(item T) (accepted, dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, false
	}

	threshold := (q.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold && q.capacity < q.maxCapacity {
		q.grow()
	}

	if q.count == q.capacity {
		var zero T
		q.buf[q.head] = zero
		q.head = (q.head + 1) % q.capacity
		q.count--
		q.dropped++
		dropped = true
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.pushed++

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true, dropped
}

// tryPop removes the oldest item without blocking.
func (q *queue[T]) tryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// pop blocks until an item is available, the queue is closed and drained, or
// ctx is done.
func (q *queue[T]) pop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		item, ok := q.popLocked()
		closed := q.closed
		q.mu.Unlock()

		if ok {
			return item, nil
		}
		if closed {
			var zero T
			return zero, errQueueClosed
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.notify:
		}
	}
}

func (q *queue[T]) popLocked() (T, bool) {
	var zero T
	if q.count == 0 {
		return zero, false
	}
	item := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % q.capacity
	q.count--
	q.popped++
	return item, true
}

// close stops accepting items. Waiting poppers get the remaining items, then
// errQueueClosed.
func (q *queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.notify)
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *queue[T]) stats() queueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return queueStats{
		Count:       q.count,
		Capacity:    q.capacity,
		Pushed:      q.pushed,
		Popped:      q.popped,
		Dropped:     q.dropped,
		ResizeCount: q.resizeCount,
	}
}

// grow doubles the capacity, bounded by maxCapacity. Must be called with lock held.
func (q *queue[T]) grow() {
	newCapacity := q.capacity * 2
	if newCapacity > q.maxCapacity {
		newCapacity = q.maxCapacity
	}
	newBuf := make([]T, newCapacity)

	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.capacity = newCapacity
	q.resizeCount++
}
