package store

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// HKDF info strings. Changing one makes every existing store unreadable.
const (
	infoKeyCheck   = "santelocale/key-check/v1"
	infoHealthLogs = "santelocale/health-logs/v1"
)

const saltSize = 16

// keyCheckCanary is sealed under the key-check subkey at creation.
var keyCheckCanary = []byte("sante-locale key check")

// randRead is swapped in tests that need a failing entropy source.
var randRead = rand.Read

var errOpenFailed = errors.New("authentication failed")

// sealer is an XChaCha20-Poly1305 AEAD with random 24-byte nonces,
// prefixed to the ciphertext.
type sealer struct {
	aead cipher.AEAD
}

func deriveSealer(passphrase, salt []byte, info string) (*sealer, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, passphrase, salt, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive %s: %w", info, err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("cipher %s: %w", info, err)
	}
	return &sealer{aead: aead}, nil
}

func (s *sealer) seal(plaintext, ad []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := randRead(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, ad), nil
}

func (s *sealer) open(blob, ad []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(blob) < n+s.aead.Overhead() {
		return nil, errOpenFailed
	}
	plain, err := s.aead.Open(nil, blob[:n], blob[n:], ad)
	if err != nil {
		return nil, errOpenFailed
	}
	return plain, nil
}
