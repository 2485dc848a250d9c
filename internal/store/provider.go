package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/santelocale/healthlog/internal/keys"
	"github.com/santelocale/healthlog/internal/observability"
)

// KeySource supplies the store passphrase. *keys.Manager satisfies it.
type KeySource interface {
	HasExistingKey() (bool, error)
	GetOrCreateKey(ctx context.Context) ([]byte, error)
	DeleteKey() error
}

// SeedFunc populates reference data. It runs in the background after an
// open that finds food_items empty, and must handle its own failures.
type SeedFunc func(ctx context.Context, foods *FoodDAO)

// Provider owns the single open Store for a path. The zero value is not
// usable; call NewProvider.
type Provider struct {
	path   string
	keys   KeySource
	logger *slog.Logger
	seeder SeedFunc
	poll   time.Duration

	mu     sync.Mutex
	store  *Store
	fatal  error
	seeded chan struct{}

	seedCtx    context.Context
	seedCancel context.CancelFunc
	seedWG     sync.WaitGroup
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) ProviderOption {
	return func(p *Provider) { p.logger = l }
}

// WithChangePoll sets the interval at which opened stores look for
// commits from other processes (default DefaultChangePoll, zero disables).
func WithChangePoll(d time.Duration) ProviderOption {
	return func(p *Provider) { p.poll = d }
}

// WithSeeder sets the function run when food_items is empty after open.
func WithSeeder(fn SeedFunc) ProviderOption {
	return func(p *Provider) { p.seeder = fn }
}

// NewProvider returns a Provider for the database at path. Nothing is
// opened until the first Get.
func NewProvider(path string, keys KeySource, opts ...ProviderOption) *Provider {
	p := &Provider{
		path:   path,
		keys:   keys,
		logger: slog.Default(),
		poll:   DefaultChangePoll,
		seeded: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.seedCtx, p.seedCancel = context.WithCancel(context.Background())
	return p
}

// Get returns the open Store, opening it on the first call. Concurrent
// callers wait for the same open.
//
// Errors wrapping ErrStorageUnavailable are latched: every later Get
// returns the same error until Reset. Other errors are returned as is and
// the next Get retries.
func (p *Provider) Get(ctx context.Context) (*Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store != nil {
		return p.store, nil
	}
	if p.fatal != nil {
		return nil, p.fatal
	}

	s, err := p.open(ctx)
	observability.RecordStoreOpen(err)
	if err != nil {
		if isFatal(err) {
			p.fatal = fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
			p.logger.Error("storage unavailable", "path", p.path, "error", err)
			return nil, p.fatal
		}
		return nil, err
	}
	p.store = s
	p.startSeed(s)
	return s, nil
}

func (p *Provider) open(ctx context.Context) (*Store, error) {
	state, err := Inspect(p.path)
	if err != nil {
		return nil, err
	}
	hasKey, err := p.keys.HasExistingKey()
	if err != nil {
		return nil, err
	}

	switch state {
	case FileLegacy:
		p.logger.Warn("deleting unencrypted database", "path", p.path)
		if err := DeleteUnderlyingFiles(p.path); err != nil {
			return nil, err
		}
	case FileForeign:
		if hasKey {
			return nil, fmt.Errorf("%w: %s is not a readable database", ErrWrongPassphrase, p.path)
		}
		p.logger.Warn("deleting unreadable database", "path", p.path)
		if err := DeleteUnderlyingFiles(p.path); err != nil {
			return nil, err
		}
	case FileEncrypted:
		if !hasKey {
			return nil, ErrOrphanedStore
		}
	}

	passphrase, err := p.keys.GetOrCreateKey(ctx)
	if err != nil {
		return nil, err
	}
	defer keys.Zero(passphrase)

	s, err := Open(ctx, p.path, passphrase, WithOpenLogger(p.logger), WithOpenChangePoll(p.poll))
	if err != nil {
		return nil, err
	}
	p.logger.Debug("store opened", "path", p.path, "state", state)
	return s, nil
}

func isFatal(err error) bool {
	return errors.Is(err, keys.ErrWrappingKeyLost) ||
		errors.Is(err, keys.ErrKeyRecordCorrupt) ||
		errors.Is(err, ErrWrongPassphrase) ||
		errors.Is(err, ErrOrphanedStore)
}

func (p *Provider) startSeed(s *Store) {
	done := p.seeded
	if p.seeder == nil {
		close(done)
		return
	}
	ctx := p.seedCtx
	p.seedWG.Add(1)
	go func() {
		defer p.seedWG.Done()
		defer close(done)

		n, err := s.Foods().Count(ctx)
		if err != nil {
			p.logger.Warn("seed check failed", "error", err)
			return
		}
		if n > 0 {
			return
		}
		p.seeder(ctx, s.Foods())
	}()
}

// Seeded is closed once the seed attempt after the current open has
// finished, whether or not anything was loaded.
func (p *Provider) Seeded() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seeded
}

// Path returns the main database file path.
func (p *Provider) Path() string {
	return p.path
}

// Close waits for background seeding and closes the store. The Provider
// can be reopened with Get.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Provider) closeLocked() error {
	p.seedCancel()
	p.seedWG.Wait()
	p.seedCtx, p.seedCancel = context.WithCancel(context.Background())

	if p.store == nil {
		return nil
	}
	err := p.store.Close()
	p.store = nil
	p.seeded = make(chan struct{})
	return err
}

// Reset deletes the database files and the key record. All logged data is
// lost. The next Get creates a fresh store.
func (p *Provider) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.closeLocked(); err != nil {
		p.logger.Warn("close before reset", "error", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := DeleteUnderlyingFiles(p.path); err != nil {
		return err
	}
	if err := p.keys.DeleteKey(); err != nil {
		return err
	}
	p.fatal = nil
	p.logger.Info("storage reset", "path", p.path)
	return nil
}
