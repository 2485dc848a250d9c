package live

import (
	"log/slog"
	"sync"
)

// Tracker fans table invalidations out to watchers.
type Tracker struct {
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithLogger sets the logger used by live queries on this tracker
// (default slog.Default()).
func WithLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

type watcher struct {
	ch chan struct{}
}

// NewTracker returns an empty Tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		logger:   slog.Default(),
		watchers: map[string]map[*watcher]struct{}{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Notify marks tables as changed. It never blocks: a watcher that already
// has a pending signal keeps just that one.
func (t *Tracker) Notify(tables ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, table := range tables {
		for w := range t.watchers[table] {
			select {
			case w.ch <- struct{}{}:
			default:
			}
		}
	}
}

// Watch registers interest in tables. The returned channel receives a
// value after any of them is notified. Call stop to unregister.
func (t *Tracker) Watch(tables ...string) (<-chan struct{}, func()) {
	w := &watcher{ch: make(chan struct{}, 1)}

	t.mu.Lock()
	for _, table := range tables {
		set, ok := t.watchers[table]
		if !ok {
			set = map[*watcher]struct{}{}
			t.watchers[table] = set
		}
		set[w] = struct{}{}
	}
	t.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for _, table := range tables {
				delete(t.watchers[table], w)
				if len(t.watchers[table]) == 0 {
					delete(t.watchers, table)
				}
			}
		})
	}
	return w.ch, stop
}

// Watchers returns how many watchers are registered on table.
func (t *Tracker) Watchers(table string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.watchers[table])
}
