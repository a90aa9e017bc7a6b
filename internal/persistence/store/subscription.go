package store

import (
	"context"
	"sync"
)

// Subscription is a stream of full result sets. Only the newest undelivered
// value is kept: a slow reader skips intermediate snapshots, never the
// latest one.
type Subscription[T any] struct {
	c      chan T
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// NewSubscription runs producer in its own goroutine until it returns or the
// subscription is closed. producer must stop once emit returns false.
func NewSubscription[T any](ctx context.Context, producer func(ctx context.Context, emit func(T) bool) error) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		c:      make(chan T, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer close(s.c)

		err := producer(ctx, func(v T) bool {
			return s.emit(ctx, v)
		})
		if err != nil && ctx.Err() == nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}()

	return s
}

func (s *Subscription[T]) emit(ctx context.Context, v T) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		select {
		case s.c <- v:
			return true
		case <-ctx.Done():
			return false
		default:
		}
		// drop the stale snapshot still sitting in the buffer
		select {
		case <-s.c:
		default:
		}
	}
}

// C delivers result sets. It is closed when the subscription ends.
func (s *Subscription[T]) C() <-chan T {
	return s.c
}

// Done is closed once the producer has stopped.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the subscription, if any. Closing the
// subscription is not an error.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the producer. Nothing is delivered after Close returns.
func (s *Subscription[T]) Close() {
	s.cancel()
	<-s.done
	for range s.c {
	}
}

// Map derives a subscription whose values are fn applied to src's values.
// Closing the result closes src.
func Map[T, U any](src *Subscription[T], fn func(T) U) *Subscription[U] {
	return NewSubscription(context.Background(), func(ctx context.Context, emit func(U) bool) error {
		defer src.Close()
		for {
			select {
			case <-ctx.Done():
				return nil
			case v, ok := <-src.C():
				if !ok {
					return src.Err()
				}
				if !emit(fn(v)) {
					return nil
				}
			}
		}
	})
}
