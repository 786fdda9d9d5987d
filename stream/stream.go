package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/c360/streamcep/errors"
)

const defaultCapacity = 1024

type config struct {
	capacity int
}

// Option configures a Stream.
type Option func(*config)

// WithCapacity sets the channel capacity. Values below 1 fall back to
// the default.
func WithCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// Stream is a bounded FIFO connecting the admission side of the pipeline
// to the evaluator. Put blocks when the buffer is full, which is the
// backpressure signal the latency controller reacts to.
//
// The producing side owns shutdown: Close must be called exactly once,
// by the producer, after its final Put. Consumers range over Items and
// observe end-of-stream as channel close.
type Stream[T any] struct {
	items     chan T
	closed    atomic.Bool
	closeOnce sync.Once
}

// New creates a Stream with the given options.
func New[T any](opts ...Option) *Stream[T] {
	cfg := config{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Stream[T]{items: make(chan T, cfg.capacity)}
}

// Put appends an item, blocking while the buffer is full. It returns the
// context error when ctx is cancelled first, and ErrStreamClosed when
// the stream has been closed.
func (s *Stream[T]) Put(ctx context.Context, item T) error {
	if s.closed.Load() {
		return errors.Wrap(errors.ErrStreamClosed, "stream", "Put", "append item")
	}
	select {
	case s.items <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Items exposes the consuming side. The channel closes after Close once
// buffered items have been received.
func (s *Stream[T]) Items() <-chan T {
	return s.items
}

// Get receives the next item, blocking until one is available. The
// second return is false once the stream is closed and drained.
func (s *Stream[T]) Get() (T, bool) {
	item, ok := <-s.items
	return item, ok
}

// Len returns the number of buffered items.
func (s *Stream[T]) Len() int {
	return len(s.items)
}

// Cap returns the buffer capacity.
func (s *Stream[T]) Cap() int {
	return cap(s.items)
}

// Close ends the stream. Safe to call more than once; must not race
// with Put.
func (s *Stream[T]) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.items)
	})
}
