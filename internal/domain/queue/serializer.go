// Package queue provides the single-flight request serializer that every
// downstream hub call funnels through. One worker drains a bounded queue,
// so operations execute in strict submission order, one at a time, and a
// failure is reported only to the caller that submitted it.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when an operation is submitted after Close.
var ErrClosed = errors.New("serializer is closed")

// Operation is one deferred downstream call. It must honour ctx; the
// serializer imposes no timeout of its own.
type Operation func(ctx context.Context) (any, error)

// Result is the outcome of a settled operation.
type Result struct {
	Value any
	Err   error
}

type queued struct {
	ctx context.Context
	op  Operation
	out chan Result
}

type Serializer struct {
	ops  chan queued
	done chan struct{}

	// mu orders submissions against Close: a submitter holds the read side
	// across its channel send, so once Close holds the write side no further
	// operation can land in the queue behind the drain.
	mu     sync.RWMutex
	closed bool
}

// pendingCap bounds how many operations may sit queued behind the in-flight
// one before submission itself starts to block.
const pendingCap = 128

func NewSerializer() *Serializer {
	s := &Serializer{
		ops:  make(chan queued, pendingCap),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Serializer) run() {
	for {
		select {
		case q := <-s.ops:
			v, err := q.op(q.ctx)
			// out is buffered; an abandoned caller never blocks the queue.
			q.out <- Result{Value: v, Err: err}
		case <-s.done:
			s.drain()
			return
		}
	}
}

// drain fails any operations still queued at Close time so their callers
// don't wait forever.
func (s *Serializer) drain() {
	for {
		select {
		case q := <-s.ops:
			q.out <- Result{Err: ErrClosed}
		default:
			return
		}
	}
}

// Enqueue submits op and blocks until it settles. If ctx is cancelled after
// submission the caller gets ctx.Err() but the operation still runs in its
// slot; ordering for later operations is unaffected.
func (s *Serializer) Enqueue(ctx context.Context, op Operation) (any, error) {
	out, err := s.submit(ctx, op)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-out:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EnqueueAsync submits op and returns a channel that receives its single
// Result. Used by fire-and-forget paths that acknowledge before the
// downstream call settles.
func (s *Serializer) EnqueueAsync(ctx context.Context, op Operation) (<-chan Result, error) {
	return s.submit(ctx, op)
}

func (s *Serializer) submit(ctx context.Context, op Operation) (chan Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	q := queued{ctx: ctx, op: op, out: make(chan Result, 1)}
	select {
	case s.ops <- q:
		return q.out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the worker. The in-flight operation runs to completion;
// operations still waiting in the queue, and later submissions, fail with
// ErrClosed.
func (s *Serializer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.done)
}
