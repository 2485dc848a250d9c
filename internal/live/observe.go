package live

import (
	"context"
	"sync"

	"github.com/santelocale/healthlog/internal/observability"
)

// QueryFunc takes one consistent snapshot.
type QueryFunc[T any] func(ctx context.Context) (T, error)

// Subscription is a live query. Read snapshots from C until it is closed,
// then check Err.
type Subscription[T any] struct {
	c      chan T
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Observe starts a live query over tables. name labels metrics and logs.
// The subscription ends when ctx is cancelled, Close is called, or the
// query fails.
func Observe[T any](ctx context.Context, tracker *Tracker, name string, query QueryFunc[T], tables ...string) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		c:      make(chan T),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// Register before the first query so no commit slips between them.
	invalidated, stop := tracker.Watch(tables...)

	go func() {
		defer close(s.done)
		defer close(s.c)
		defer stop()

		for {
			snapshot, err := query(ctx)
			if err != nil {
				if ctx.Err() == nil {
					tracker.logger.Warn("live query failed", "stream", name, "error", err)
					s.setErr(err)
				}
				return
			}

			select {
			case s.c <- snapshot:
				observability.RecordEmission(name)
			case <-ctx.Done():
				return
			}

			select {
			case <-invalidated:
			case <-ctx.Done():
				return
			}
		}
	}()

	return s
}

// C delivers snapshots. It is closed when the subscription ends.
func (s *Subscription[T]) C() <-chan T {
	return s.c
}

// Err returns the query error that ended the subscription, if any.
// Cancellation is not an error.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the subscription goroutine has exited.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Close stops delivery and waits for the subscription to exit.
func (s *Subscription[T]) Close() {
	s.cancel()
	<-s.done
}

func (s *Subscription[T]) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
