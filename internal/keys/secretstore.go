package keys

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zalando/go-keyring"
)

// ErrSecretNotFound is returned by SecretStore.Get when alias is absent.
var ErrSecretNotFound = errors.New("keys: secret not found")

// SecretStore holds wrapping keys outside the database and outside the
// preferences file.
type SecretStore interface {
	Get(alias string) ([]byte, error)
	Set(alias string, secret []byte) error
	Delete(alias string) error
}

// KeyringStore keeps secrets in the OS keyring (Secret Service, macOS
// Keychain, Windows Credential Manager). Values are base64 text because
// the keyring API only stores strings.
type KeyringStore struct {
	Service string
}

func (k KeyringStore) Get(alias string) ([]byte, error) {
	v, err := keyring.Get(k.Service, alias)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrSecretNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keyring get %s/%s: %w", k.Service, alias, err)
	}
	secret, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("keyring decode %s/%s: %w", k.Service, alias, err)
	}
	return secret, nil
}

func (k KeyringStore) Set(alias string, secret []byte) error {
	if err := keyring.Set(k.Service, alias, base64.StdEncoding.EncodeToString(secret)); err != nil {
		return fmt.Errorf("keyring set %s/%s: %w", k.Service, alias, err)
	}
	return nil
}

func (k KeyringStore) Delete(alias string) error {
	err := keyring.Delete(k.Service, alias)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %s/%s: %w", k.Service, alias, err)
	}
	return nil
}

// FileStore keeps each secret in its own 0600 file under Dir. Meant for
// headless hosts without a keyring daemon; it is only as strong as the
// file permissions.
type FileStore struct {
	Dir string
}

func (f FileStore) path(alias string) string {
	return filepath.Join(f.Dir, alias+".key")
}

func (f FileStore) Get(alias string) ([]byte, error) {
	b, err := os.ReadFile(f.path(alias))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSecretNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read secret %s: %w", alias, err)
	}
	return b, nil
}

func (f FileStore) Set(alias string, secret []byte) error {
	if err := os.MkdirAll(f.Dir, 0700); err != nil {
		return fmt.Errorf("create secret dir: %w", err)
	}
	if err := os.WriteFile(f.path(alias), secret, 0600); err != nil {
		return fmt.Errorf("write secret %s: %w", alias, err)
	}
	return nil
}

func (f FileStore) Delete(alias string) error {
	err := os.Remove(f.path(alias))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete secret %s: %w", alias, err)
	}
	return nil
}

// MemoryStore is an in-process SecretStore for tests.
type MemoryStore struct {
	mu      sync.Mutex
	secrets map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: map[string][]byte{}}
}

func (m *MemoryStore) Get(alias string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.secrets[alias]
	if !ok {
		return nil, ErrSecretNotFound
	}
	return append([]byte(nil), s...), nil
}

func (m *MemoryStore) Set(alias string, secret []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[alias] = append([]byte(nil), secret...)
	return nil
}

func (m *MemoryStore) Delete(alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, alias)
	return nil
}
