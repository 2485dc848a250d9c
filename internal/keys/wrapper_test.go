package keys

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestAEADWrapper_RoundTrip(t *testing.T) {
	w := NewAEADWrapper(NewMemoryStore(), "alias")
	ctx := context.Background()

	has, err := w.HasWrappingKey()
	require.NoError(t, err)
	assert.False(t, has)

	wrapped, nonce, err := w.Wrap(ctx, []byte("secret"))
	require.NoError(t, err)

	has, err = w.HasWrappingKey()
	require.NoError(t, err)
	assert.True(t, has)

	plain, err := w.Unwrap(ctx, wrapped, nonce)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), plain)
}

func TestAEADWrapper_FreshNoncePerWrap(t *testing.T) {
	w := NewAEADWrapper(NewMemoryStore(), "alias")
	ctx := context.Background()

	_, n1, err := w.Wrap(ctx, []byte("a"))
	require.NoError(t, err)
	_, n2, err := w.Wrap(ctx, []byte("a"))
	require.NoError(t, err)
	assert.NotEqual(t, n1, n2)
}

func TestAEADWrapper_TamperedCiphertext(t *testing.T) {
	w := NewAEADWrapper(NewMemoryStore(), "alias")
	ctx := context.Background()

	wrapped, nonce, err := w.Wrap(ctx, []byte("secret"))
	require.NoError(t, err)
	wrapped[0] ^= 0xFF

	_, err = w.Unwrap(ctx, wrapped, nonce)
	assert.ErrorIs(t, err, ErrWrappingKeyLost)
}

func TestAEADWrapper_AliasIsBound(t *testing.T) {
	secrets := NewMemoryStore()
	ctx := context.Background()
	a := NewAEADWrapper(secrets, "a")

	wrapped, nonce, err := a.Wrap(ctx, []byte("secret"))
	require.NoError(t, err)

	key, err := secrets.Get("a")
	require.NoError(t, err)
	require.NoError(t, secrets.Set("b", key))

	_, err = NewAEADWrapper(secrets, "b").Unwrap(ctx, wrapped, nonce)
	assert.ErrorIs(t, err, ErrWrappingKeyLost)
}

func TestAEADWrapper_BadNonceLength(t *testing.T) {
	w := NewAEADWrapper(NewMemoryStore(), "alias")
	ctx := context.Background()
	wrapped, _, err := w.Wrap(ctx, []byte("secret"))
	require.NoError(t, err)

	_, err = w.Unwrap(ctx, wrapped, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestAEADWrapper_CancelledContext(t *testing.T) {
	w := NewAEADWrapper(NewMemoryStore(), "alias")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := w.Wrap(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	s := KeyringStore{Service: "santelocale-test"}

	_, err := s.Get("alias")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	require.NoError(t, s.Set("alias", []byte{0, 1, 2, 255}))
	got, err := s.Get("alias")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 255}, got)

	require.NoError(t, s.Delete("alias"))
	require.NoError(t, s.Delete("alias"), "deleting twice is fine")
	_, err = s.Get("alias")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestFileStore(t *testing.T) {
	s := FileStore{Dir: filepath.Join(t.TempDir(), "secrets")}

	_, err := s.Get("alias")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	require.NoError(t, s.Set("alias", []byte("k")))
	got, err := s.Get("alias")
	require.NoError(t, err)
	assert.Equal(t, []byte("k"), got)

	require.NoError(t, s.Delete("alias"))
	require.NoError(t, s.Delete("alias"))
}

func TestWrapperOverKeyring(t *testing.T) {
	keyring.MockInit()
	w := NewAEADWrapper(KeyringStore{Service: "santelocale-test"}, "db")
	ctx := context.Background()

	wrapped, nonce, err := w.Wrap(ctx, []byte("passphrase"))
	require.NoError(t, err)
	plain, err := w.Unwrap(ctx, wrapped, nonce)
	require.NoError(t, err)
	assert.Equal(t, []byte("passphrase"), plain)
}
