package testutil

import (
	"testing"
	"time"
)

// StreamTimeout bounds how long helpers wait for a live-query emission.
const StreamTimeout = 5 * time.Second

// Receive returns the next value from ch or fails the test.
func Receive[T any](t testing.TB, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("stream closed before a value arrived")
		}
		return v
	case <-time.After(StreamTimeout):
		t.Fatalf("no value within %s", StreamTimeout)
	}
	var zero T
	return zero
}

// ReceiveUntil reads from ch until match returns true and returns that
// value. Intermediate snapshots are allowed because live queries may
// re-emit an unchanged result.
func ReceiveUntil[T any](t testing.TB, ch <-chan T, match func(T) bool) T {
	t.Helper()
	deadline := time.After(StreamTimeout)
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				t.Fatalf("stream closed before a matching value arrived")
			}
			if match(v) {
				return v
			}
		case <-deadline:
			t.Fatalf("no matching value within %s", StreamTimeout)
			var zero T
			return zero
		}
	}
}

// AssertClosed fails unless ch is closed within the timeout.
func AssertClosed[T any](t testing.TB, ch <-chan T) {
	t.Helper()
	deadline := time.After(StreamTimeout)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("stream not closed within %s", StreamTimeout)
			return
		}
	}
}
