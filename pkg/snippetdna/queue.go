package snippetdna

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/himanishpuri/SnippetDNA/pkg/models"
)

var errQueueClosed = errors.New("queue closed for writing")

// fifo is an unbounded queue for one producer and one consumer. put never
// blocks; pop suspends until an item arrives or the queue is closed.
type fifo[T any] struct {
	notify chan struct{}

	mu     sync.Mutex
	items  []T
	closed bool
	err    error
}

func newFIFO[T any](n int) *fifo[T] {
	return &fifo[T]{
		notify: make(chan struct{}, 1),
		items:  make([]T, 0, n),
	}
}

func (q *fifo[T]) put(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errQueueClosed
	}
	q.items = append(q.items, v)
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// pop returns the oldest item. Once closed and drained it returns io.EOF, or
// the failure passed to fail.
func (q *fifo[T]) pop(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, nil
		}
		if q.closed {
			err := q.err
			q.mu.Unlock()
			if err == nil {
				err = io.EOF
			}
			return zero, err
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

func (q *fifo[T]) closeWrite() {
	q.closeWithError(nil)
}

// closeWithError closes the queue. Items already queued are still delivered.
func (q *fifo[T]) closeWithError(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		if q.err == nil && err != nil {
			q.err = err
		}
		return
	}
	q.closed = true
	q.err = err
	close(q.notify)
}

func (q *fifo[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// EventQueue hands match events from the matcher to a single reader.
type EventQueue struct {
	q *fifo[models.MatchEvent]
}

func NewEventQueue() *EventQueue {
	return &EventQueue{q: newFIFO[models.MatchEvent](8)}
}

// Push appends ev. It fails once the queue is closed.
func (e *EventQueue) Push(ev models.MatchEvent) error {
	if err := e.q.put(ev); err != nil {
		return fmt.Errorf("%w: push %q: %v", ErrInvalidState, ev.Label, err)
	}
	return nil
}

// Next removes and returns the oldest event, suspending while the queue is
// empty and open. After CloseWrite and drain it returns ErrEndOfStream.
func (e *EventQueue) Next(ctx context.Context) (models.MatchEvent, error) {
	ev, err := e.q.pop(ctx)
	if errors.Is(err, io.EOF) {
		return ev, ErrEndOfStream
	}
	return ev, err
}

// CloseWrite marks the end of the event stream.
func (e *EventQueue) CloseWrite() { e.q.closeWrite() }

// Fail closes the queue so that Next returns err once drained.
func (e *EventQueue) Fail(err error) { e.q.closeWithError(err) }

// Len is the number of undelivered events.
func (e *EventQueue) Len() int { return e.q.len() }
