package keys

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
)

// WrappingKeySize is the AES-256 key size used for wrapping.
const WrappingKeySize = 32

// ErrWrappingKeyLost means a wrapped record exists but the key that sealed
// it is gone or no longer matches (the GCM tag does not verify). The store
// protected by that record cannot be opened again.
var ErrWrappingKeyLost = errors.New("keys: wrapping key lost, database key cannot be recovered")

// KeyWrapper seals and opens the passphrase. Implementations keep the
// wrapping key material inside their own boundary.
type KeyWrapper interface {
	Wrap(ctx context.Context, plaintext []byte) (wrapped, nonce []byte, err error)
	Unwrap(ctx context.Context, wrapped, nonce []byte) ([]byte, error)
}

// AEADWrapper wraps with AES-256-GCM under a key held in a SecretStore.
// The wrapping key is created on the first Wrap and never leaves the
// wrapper; the alias is bound as associated data.
type AEADWrapper struct {
	store SecretStore
	alias string
	mu    sync.Mutex
}

// NewAEADWrapper returns a wrapper using the key stored under alias.
func NewAEADWrapper(store SecretStore, alias string) *AEADWrapper {
	return &AEADWrapper{store: store, alias: alias}
}

// Alias returns the secret-store alias of the wrapping key.
func (w *AEADWrapper) Alias() string {
	return w.alias
}

// HasWrappingKey reports whether the secret store holds the wrapping key.
func (w *AEADWrapper) HasWrappingKey() (bool, error) {
	_, err := w.store.Get(w.alias)
	if errors.Is(err, ErrSecretNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Wrap seals plaintext under a fresh random nonce, creating the wrapping
// key if the secret store has none.
func (w *AEADWrapper) Wrap(ctx context.Context, plaintext []byte) ([]byte, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	key, err := w.ensureKey()
	if err != nil {
		return nil, nil, err
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("wrap: nonce: %w", err)
	}
	return aead.Seal(nil, nonce, plaintext, []byte(w.alias)), nonce, nil
}

// Unwrap opens a value sealed by Wrap. A missing wrapping key or a tag
// mismatch both yield ErrWrappingKeyLost.
func (w *AEADWrapper) Unwrap(ctx context.Context, wrapped, nonce []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := w.store.Get(w.alias)
	if errors.Is(err, ErrSecretNotFound) {
		return nil, fmt.Errorf("%w: no key under alias %q", ErrWrappingKeyLost, w.alias)
	}
	if err != nil {
		return nil, fmt.Errorf("unwrap: %w", err)
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("unwrap: nonce is %d bytes, want %d", len(nonce), aead.NonceSize())
	}
	plain, err := aead.Open(nil, nonce, wrapped, []byte(w.alias))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrappingKeyLost, err)
	}
	return plain, nil
}

func (w *AEADWrapper) ensureKey() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	key, err := w.store.Get(w.alias)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, ErrSecretNotFound) {
		return nil, fmt.Errorf("wrap: load wrapping key: %w", err)
	}
	key = make([]byte, WrappingKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("wrap: generate wrapping key: %w", err)
	}
	if err := w.store.Set(w.alias, key); err != nil {
		return nil, fmt.Errorf("wrap: store wrapping key: %w", err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}
