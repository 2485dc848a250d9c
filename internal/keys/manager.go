package keys

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/santelocale/healthlog/internal/observability"
)

// PassphraseSize is the length of the store passphrase (256 bits).
const PassphraseSize = 32

// Preference keys of the wrapped-key record.
const (
	RecordEncryptedKey = "encryptedKey"
	RecordKeyIV        = "keyIv"
)

// ErrKeyRecordCorrupt means the persisted record is present but unusable
// (half-written, not base64, wrong length after unwrap).
var ErrKeyRecordCorrupt = errors.New("keys: wrapped key record is corrupt")

// RecordStore is the key-value file holding the wrapped record.
// *prefs.Store satisfies it.
type RecordStore interface {
	Get(key string) (string, bool, error)
	Set(entries map[string]string) error
	Delete(keys ...string) error
}

// Manager produces the store passphrase. It keeps no copy of the unwrapped
// bytes; callers should Zero them once the store is open.
type Manager struct {
	records RecordStore
	wrapper KeyWrapper
	logger  *slog.Logger
	rand    io.Reader

	// Serialises create so two first callers cannot both generate.
	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithRandom overrides the entropy source. Tests only.
func WithRandom(r io.Reader) Option {
	return func(m *Manager) { m.rand = r }
}

// NewManager returns a Manager persisting its record in records and
// wrapping with wrapper.
func NewManager(records RecordStore, wrapper KeyWrapper, opts ...Option) *Manager {
	m := &Manager{
		records: records,
		wrapper: wrapper,
		logger:  slog.Default(),
		rand:    rand.Reader,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HasExistingKey reports whether a wrapped-key record exists. It does not
// touch the secret store.
func (m *Manager) HasExistingKey() (bool, error) {
	_, ok, err := m.records.Get(RecordEncryptedKey)
	if err != nil {
		return false, fmt.Errorf("check key record: %w", err)
	}
	return ok, nil
}

// GetOrCreateKey returns the store passphrase, generating and wrapping a
// new one when no record exists. When a record exists it is unwrapped;
// ErrWrappingKeyLost is returned, never a fresh key, if that fails.
func (m *Manager) GetOrCreateKey(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exists, err := m.HasExistingKey()
	if err != nil {
		return nil, err
	}
	if exists {
		key, err := m.unwrapStored(ctx)
		observability.RecordKeyOperation("unwrap", err)
		return key, err
	}
	key, err := m.generateAndStore(ctx)
	observability.RecordKeyOperation("create", err)
	return key, err
}

// DeleteKey removes the wrapped record. Only the explicit reset flow calls
// this, after the store files are gone.
func (m *Manager) DeleteKey() error {
	if err := m.records.Delete(RecordEncryptedKey, RecordKeyIV); err != nil {
		return fmt.Errorf("delete key record: %w", err)
	}
	return nil
}

func (m *Manager) generateAndStore(ctx context.Context) ([]byte, error) {
	key := make([]byte, PassphraseSize)
	if _, err := io.ReadFull(m.rand, key); err != nil {
		return nil, fmt.Errorf("generate database key: %w", err)
	}
	wrapped, nonce, err := m.wrapper.Wrap(ctx, key)
	if err != nil {
		Zero(key)
		return nil, fmt.Errorf("wrap database key: %w", err)
	}
	err = m.records.Set(map[string]string{
		RecordEncryptedKey: base64.StdEncoding.EncodeToString(wrapped),
		RecordKeyIV:        base64.StdEncoding.EncodeToString(nonce),
	})
	if err != nil {
		Zero(key)
		return nil, fmt.Errorf("persist key record: %w", err)
	}
	m.logger.Info("generated database key")
	return key, nil
}

func (m *Manager) unwrapStored(ctx context.Context) ([]byte, error) {
	wrapped, err := m.decodeRecord(RecordEncryptedKey)
	if err != nil {
		return nil, err
	}
	nonce, err := m.decodeRecord(RecordKeyIV)
	if err != nil {
		return nil, err
	}
	key, err := m.wrapper.Unwrap(ctx, wrapped, nonce)
	if err != nil {
		if errors.Is(err, ErrWrappingKeyLost) {
			m.logger.Error("database key cannot be unwrapped", "error", err)
		}
		return nil, fmt.Errorf("unwrap database key: %w", err)
	}
	if len(key) != PassphraseSize {
		Zero(key)
		return nil, fmt.Errorf("%w: unwrapped %d bytes", ErrKeyRecordCorrupt, len(key))
	}
	return key, nil
}

func (m *Manager) decodeRecord(field string) ([]byte, error) {
	v, ok, err := m.records.Get(field)
	if err != nil {
		return nil, fmt.Errorf("read key record: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s missing", ErrKeyRecordCorrupt, field)
	}
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrKeyRecordCorrupt, field, err)
	}
	return b, nil
}

// Zero overwrites b.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
