package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santelocale/healthlog/internal/health"
	"github.com/santelocale/healthlog/internal/keys"
	"github.com/santelocale/healthlog/internal/prefs"
	"github.com/santelocale/healthlog/internal/testutil"
)

const testAlias = "sante_locale_db_key"

type providerFixture struct {
	dir     string
	path    string
	records *prefs.Store
	secrets *keys.MemoryStore
	manager *keys.Manager
}

func newProviderFixture(t *testing.T) *providerFixture {
	t.Helper()
	dir := t.TempDir()
	records, err := prefs.Open(filepath.Join(dir, "prefs.json"))
	require.NoError(t, err)
	secrets := keys.NewMemoryStore()
	return &providerFixture{
		dir:     dir,
		path:    filepath.Join(dir, "sante_locale_database"),
		records: records,
		secrets: secrets,
		manager: keys.NewManager(records, keys.NewAEADWrapper(secrets, testAlias)),
	}
}

func (f *providerFixture) provider(t *testing.T, opts ...ProviderOption) *Provider {
	t.Helper()
	p := NewProvider(f.path, f.manager, opts...)
	t.Cleanup(func() { p.Close() })
	return p
}

func waitSeeded(t *testing.T, p *Provider) {
	t.Helper()
	select {
	case <-p.Seeded():
	case <-time.After(5 * time.Second):
		t.Fatal("seed attempt did not finish")
	}
}

func TestProvider_GetReturnsSameStore(t *testing.T) {
	f := newProviderFixture(t)
	p := f.provider(t)
	ctx := context.Background()

	s1, err := p.Get(ctx)
	require.NoError(t, err)
	s2, err := p.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, s1, s2)
}

func TestProvider_ConcurrentGetOpensOnce(t *testing.T) {
	f := newProviderFixture(t)
	var seeds atomic.Int32
	p := f.provider(t, WithSeeder(func(context.Context, *FoodDAO) { seeds.Add(1) }))

	var wg sync.WaitGroup
	stores := make([]*Store, 16)
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := p.Get(context.Background())
			assert.NoError(t, err)
			stores[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range stores[1:] {
		assert.Same(t, stores[0], s)
	}
	waitSeeded(t, p)
	assert.Equal(t, int32(1), seeds.Load())
}

func TestProvider_SeedsOnlyWhenEmpty(t *testing.T) {
	f := newProviderFixture(t)
	ctx := context.Background()
	seeder := func(ctx context.Context, foods *FoodDAO) {
		_ = foods.UpsertAll(ctx, []health.FoodReference{{ID: "f1", Name: "Brocoli", Category: health.CategoryFree}})
	}

	p := f.provider(t, WithSeeder(seeder))
	s, err := p.Get(ctx)
	require.NoError(t, err)
	waitSeeded(t, p)
	n, err := s.Foods().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, p.Close())

	var called atomic.Bool
	p2 := f.provider(t, WithSeeder(func(context.Context, *FoodDAO) { called.Store(true) }))
	_, err = p2.Get(ctx)
	require.NoError(t, err)
	waitSeeded(t, p2)
	assert.False(t, called.Load(), "seeder ran on a populated store")
}

func TestProvider_SeededClosedWithoutSeeder(t *testing.T) {
	f := newProviderFixture(t)
	p := f.provider(t)

	_, err := p.Get(context.Background())
	require.NoError(t, err)
	waitSeeded(t, p)
}

func TestProvider_CloseAndReopenKeepsData(t *testing.T) {
	f := newProviderFixture(t)
	p := f.provider(t)
	ctx := context.Background()

	s, err := p.Get(ctx)
	require.NoError(t, err)
	mustInsert(t, s, glucoseAt(5.6, 1000))
	require.NoError(t, p.Close())

	s, err = p.Get(ctx)
	require.NoError(t, err)
	n, err := s.Logs().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProvider_LegacyFileReplaced(t *testing.T) {
	f := newProviderFixture(t)
	writeLegacyDatabase(t, f.path)
	require.NoError(t, os.WriteFile(f.path+"-shm", []byte("stale"), 0o600))

	p := f.provider(t)
	s, err := p.Get(context.Background())
	require.NoError(t, err)

	n, err := s.Logs().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	state, err := Inspect(f.path)
	require.NoError(t, err)
	assert.Equal(t, FileEncrypted, state)
}

func TestProvider_ForeignFileWithoutKeyReplaced(t *testing.T) {
	f := newProviderFixture(t)
	require.NoError(t, os.WriteFile(f.path, []byte("this is not an sqlite database at all, just bytes"), 0o600))

	p := f.provider(t)
	_, err := p.Get(context.Background())
	require.NoError(t, err)
}

func TestProvider_ForeignFileWithKeyIsFatal(t *testing.T) {
	f := newProviderFixture(t)
	_, err := f.manager.GetOrCreateKey(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.path, []byte("this is not an sqlite database at all, just bytes"), 0o600))

	p := f.provider(t)
	_, err = p.Get(context.Background())
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, ErrWrongPassphrase)

	// The file is left for the user to decide.
	_, statErr := os.Stat(f.path)
	assert.NoError(t, statErr)
}

// The key record vanishes while the encrypted store remains.
func TestProvider_KeyRecordDeletedFailsFast(t *testing.T) {
	f := newProviderFixture(t)
	ctx := context.Background()

	p := f.provider(t)
	s, err := p.Get(ctx)
	require.NoError(t, err)
	mustInsert(t, s, glucoseAt(5.0, 1000))
	require.NoError(t, p.Close())

	require.NoError(t, f.records.Delete(keys.RecordEncryptedKey, keys.RecordKeyIV))

	_, err = p.Get(ctx)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, ErrOrphanedStore)

	// No key was generated behind the user's back.
	ok, err := f.manager.HasExistingKey()
	require.NoError(t, err)
	assert.False(t, ok)

	// Latched.
	_, err2 := p.Get(ctx)
	assert.Equal(t, err, err2)
}

func TestProvider_WrappingKeyLostFailsFast(t *testing.T) {
	f := newProviderFixture(t)
	ctx := context.Background()

	p := f.provider(t)
	_, err := p.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	require.NoError(t, f.secrets.Delete(testAlias))

	_, err = p.Get(ctx)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, keys.ErrWrappingKeyLost)
}

func TestProvider_ResetRecovers(t *testing.T) {
	f := newProviderFixture(t)
	ctx := context.Background()

	p := f.provider(t)
	s, err := p.Get(ctx)
	require.NoError(t, err)
	mustInsert(t, s, glucoseAt(5.0, 1000))
	require.NoError(t, p.Close())
	require.NoError(t, f.secrets.Delete(testAlias))

	_, err = p.Get(ctx)
	require.ErrorIs(t, err, ErrStorageUnavailable)

	require.NoError(t, p.Reset(ctx))
	for _, file := range DatabaseFiles(f.path) {
		_, statErr := os.Stat(file)
		assert.True(t, os.IsNotExist(statErr), "%s still exists", file)
	}

	s, err = p.Get(ctx)
	require.NoError(t, err)
	n, err := s.Logs().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProvider_CloseCancelsSeed(t *testing.T) {
	f := newProviderFixture(t)
	started := make(chan struct{})
	var sawCancel atomic.Bool
	p := NewProvider(f.path, f.manager, WithSeeder(func(ctx context.Context, _ *FoodDAO) {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
	}))

	_, err := p.Get(context.Background())
	require.NoError(t, err)
	<-started

	require.NoError(t, p.Close())
	assert.True(t, sawCancel.Load())
}

func TestProvider_ResetEndsOpenSubscriptions(t *testing.T) {
	f := newProviderFixture(t)
	ctx := context.Background()

	p := f.provider(t)
	s, err := p.Get(ctx)
	require.NoError(t, err)
	mustInsert(t, s, glucoseAt(5.0, 1000))

	sub := s.Logs().ObserveAll(ctx)
	defer sub.Close()
	require.Len(t, testutil.Receive(t, sub.C()), 1)

	require.NoError(t, p.Reset(ctx))

	testutil.AssertClosed(t, sub.C())
	assert.ErrorIs(t, sub.Err(), ErrClosed)
}
