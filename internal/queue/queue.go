// Package queue provides a serial task queue with a single consumer.
//
// All upstream API calls are funneled through one queue so requests go out
// one at a time regardless of how many call sites want the network.
package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned by Do after the queue has been closed.
var ErrClosed = errors.New("queue: closed")

type task struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Queue executes submitted tasks sequentially on a single worker goroutine.
type Queue struct {
	tasks  chan task
	closed chan struct{}
}

// New creates a queue with the given submission buffer and starts its worker.
func New(buffer int) *Queue {
	q := &Queue{
		tasks:  make(chan task, buffer),
		closed: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	for {
		select {
		case t := <-q.tasks:
			// The submitter may have given up while the task sat queued.
			if err := t.ctx.Err(); err != nil {
				t.done <- err
				continue
			}
			t.done <- t.fn(t.ctx)
		case <-q.closed:
			return
		}
	}
}

// Do submits fn and blocks until it has run (or ctx is done, or the queue is
// closed). Tasks run in submission order, one at a time.
func (q *Queue) Do(ctx context.Context, fn func(context.Context) error) error {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case q.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return ErrClosed
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return ErrClosed
	}
}

// Close stops the worker. Tasks still queued are abandoned; their submitters
// get ErrClosed.
func (q *Queue) Close() {
	close(q.closed)
}
