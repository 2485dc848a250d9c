package keys

import (
	"bytes"
	"context"
	"encoding/base64"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santelocale/healthlog/internal/prefs"
)

const testAlias = "sante_locale_db_key"

type managerFixture struct {
	records *prefs.Store
	secrets *MemoryStore
	manager *Manager
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	records, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.json"))
	require.NoError(t, err)
	secrets := NewMemoryStore()
	return &managerFixture{
		records: records,
		secrets: secrets,
		manager: NewManager(records, NewAEADWrapper(secrets, testAlias)),
	}
}

func TestManager_FreshInstallHasNoKey(t *testing.T) {
	f := newManagerFixture(t)

	ok, err := f.manager.HasExistingKey()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_CreatePersistsOnlyWrappedForm(t *testing.T) {
	f := newManagerFixture(t)

	key, err := f.manager.GetOrCreateKey(context.Background())
	require.NoError(t, err)
	require.Len(t, key, PassphraseSize)

	ok, err := f.manager.HasExistingKey()
	require.NoError(t, err)
	assert.True(t, ok)

	enc, _, err := f.records.Get(RecordEncryptedKey)
	require.NoError(t, err)
	iv, _, err := f.records.Get(RecordKeyIV)
	require.NoError(t, err)

	wrapped, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)
	nonce, err := base64.StdEncoding.DecodeString(iv)
	require.NoError(t, err)
	assert.Len(t, nonce, 12)
	assert.False(t, bytes.Contains(wrapped, key), "record must not contain the raw key")

	_, err = f.secrets.Get(testAlias)
	assert.NoError(t, err, "wrapping key should have been created")
}

func TestManager_KeyRoundTrip(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	first, err := f.manager.GetOrCreateKey(ctx)
	require.NoError(t, err)
	second, err := f.manager.GetOrCreateKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A new manager over the same files sees the same key.
	other := NewManager(f.records, NewAEADWrapper(f.secrets, testAlias))
	third, err := other.GetOrCreateKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestManager_ConcurrentFirstCallsAgree(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	const n = 8
	keys := make([][]byte, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k, err := f.manager.GetOrCreateKey(ctx)
			assert.NoError(t, err)
			keys[i] = k
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, keys[0], keys[i])
	}
}

func TestManager_WrappingKeyLostFailsFast(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.manager.GetOrCreateKey(ctx)
	require.NoError(t, err)

	// Secure store reset: record still there, wrapping key gone.
	require.NoError(t, f.secrets.Delete(testAlias))

	_, err = f.manager.GetOrCreateKey(ctx)
	require.ErrorIs(t, err, ErrWrappingKeyLost)

	ok, err := f.manager.HasExistingKey()
	require.NoError(t, err)
	assert.True(t, ok, "a failed unwrap must not drop or replace the record")
}

func TestManager_WrappingKeyReplacedFailsFast(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.manager.GetOrCreateKey(ctx)
	require.NoError(t, err)

	// A different wrapping key under the same alias: tag mismatch.
	require.NoError(t, f.secrets.Set(testAlias, bytes.Repeat([]byte{7}, WrappingKeySize)))

	_, err = f.manager.GetOrCreateKey(ctx)
	assert.ErrorIs(t, err, ErrWrappingKeyLost)
}

func TestManager_RecordDeletedGeneratesNewKey(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	first, err := f.manager.GetOrCreateKey(ctx)
	require.NoError(t, err)

	require.NoError(t, f.records.Delete(RecordEncryptedKey, RecordKeyIV))

	second, err := f.manager.GetOrCreateKey(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestManager_CorruptRecord(t *testing.T) {
	tests := []struct {
		name    string
		entries map[string]string
	}{
		{"iv missing", map[string]string{RecordEncryptedKey: "AAAA"}},
		{"key not base64", map[string]string{RecordEncryptedKey: "%%%", RecordKeyIV: "AAAAAAAAAAAAAAAA"}},
		{"iv not base64", map[string]string{RecordEncryptedKey: "AAAA", RecordKeyIV: "%%%"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newManagerFixture(t)
			require.NoError(t, f.records.Set(tt.entries))

			_, err := f.manager.GetOrCreateKey(context.Background())
			assert.ErrorIs(t, err, ErrKeyRecordCorrupt)
		})
	}
}

func TestManager_DeterministicRandom(t *testing.T) {
	records, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.json"))
	require.NoError(t, err)
	seed := bytes.Repeat([]byte{0xAB}, PassphraseSize)
	m := NewManager(records, NewAEADWrapper(NewMemoryStore(), testAlias), WithRandom(bytes.NewReader(seed)))

	key, err := m.GetOrCreateKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, seed, key)
}

func TestManager_DeleteKey(t *testing.T) {
	f := newManagerFixture(t)
	_, err := f.manager.GetOrCreateKey(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.manager.DeleteKey())

	ok, err := f.manager.HasExistingKey()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3}
	Zero(b)
	assert.Equal(t, []byte{0, 0, 0}, b)
}
