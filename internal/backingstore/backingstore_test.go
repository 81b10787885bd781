package backingstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("not found")

type fakeProvider struct {
	data        map[string][]byte
	fetchCalls  int
	storeCalls  int
	deleteCalls int
}

func newFakeProvider() *fakeProvider { return &fakeProvider{data: make(map[string][]byte)} }

func (p *fakeProvider) Init() error  { return nil }
func (p *fakeProvider) Term() error  { return nil }
func (p *fakeProvider) Lock() error  { return nil }
func (p *fakeProvider) Unlock() error { return nil }

func (p *fakeProvider) Fetch(key []byte) ([]byte, error) {
	p.fetchCalls++
	v, ok := p.data[string(key)]
	if !ok {
		return nil, errNotFound
	}
	return v, nil
}

func (p *fakeProvider) Store(key, value []byte) error {
	p.storeCalls++
	p.data[string(key)] = value
	return nil
}

func (p *fakeProvider) Delete(key []byte) error {
	p.deleteCalls++
	delete(p.data, string(key))
	return nil
}

func (p *fakeProvider) Dup() (Provider, error) { return p, nil }

type fakeCache struct {
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string][]byte)} }

func (c *fakeCache) Get(key []byte) ([]byte, bool) { v, ok := c.data[string(key)]; return v, ok }
func (c *fakeCache) Put(key, value []byte) error   { c.data[string(key)] = value; return nil }
func (c *fakeCache) Has(key []byte) bool           { _, ok := c.data[string(key)]; return ok }
func (c *fakeCache) Remove(key []byte) error       { delete(c.data, string(key)); return nil }

func TestBackingStore_FetchInstallsOnMiss(t *testing.T) {
	provider := newFakeProvider()
	provider.data["k"] = []byte("v")
	cache := newFakeCache()

	bs, err := New(&Config{Provider: provider, Cache: cache})
	require.NoError(t, err)

	value, err := bs.Fetch([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)
	require.Equal(t, 1, provider.fetchCalls)

	_, err = bs.Fetch([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, 1, provider.fetchCalls, "second fetch should hit the cache")
}

func TestBackingStore_StoreDefaultWritesThroughAndCaches(t *testing.T) {
	provider := newFakeProvider()
	cache := newFakeCache()
	bs, err := New(&Config{Provider: provider, Cache: cache})
	require.NoError(t, err)

	require.NoError(t, bs.Store([]byte("k"), []byte("v"), 0))
	require.Equal(t, []byte("v"), provider.data["k"])
	require.True(t, cache.Has([]byte("k")))
}

func TestBackingStore_StoreCacheOnlySkipsProvider(t *testing.T) {
	provider := newFakeProvider()
	cache := newFakeCache()
	bs, err := New(&Config{Provider: provider, Cache: cache})
	require.NoError(t, err)

	require.NoError(t, bs.Store([]byte("k"), []byte("v"), StoreCacheOnly))
	require.Equal(t, 0, provider.storeCalls)
	require.True(t, cache.Has([]byte("k")))
}

func TestBackingStore_StoreCacheModifySkipsUncachedKey(t *testing.T) {
	provider := newFakeProvider()
	cache := newFakeCache()
	bs, err := New(&Config{Provider: provider, Cache: cache})
	require.NoError(t, err)

	require.NoError(t, bs.Store([]byte("k"), []byte("v"), StoreCacheModify))
	require.Equal(t, 1, provider.storeCalls, "cache-modify still writes through")
	require.False(t, cache.Has([]byte("k")), "cache-modify must not insert a new entry")

	require.NoError(t, cache.Put([]byte("k"), []byte("stale")))
	require.NoError(t, bs.Store([]byte("k"), []byte("fresh"), StoreCacheModify))
	v, _ := cache.Get([]byte("k"))
	require.Equal(t, []byte("fresh"), v, "cache-modify updates an already-cached key")
}

func TestBackingStore_DeleteClearsBothSides(t *testing.T) {
	provider := newFakeProvider()
	provider.data["k"] = []byte("v")
	cache := newFakeCache()
	require.NoError(t, cache.Put([]byte("k"), []byte("v")))

	bs, err := New(&Config{Provider: provider, Cache: cache})
	require.NoError(t, err)

	require.NoError(t, bs.Delete([]byte("k")))
	require.False(t, cache.Has([]byte("k")))
	_, ok := provider.data["k"]
	require.False(t, ok)
}

func TestBackingStore_CloseIsIdempotentAndRejectsFurtherUse(t *testing.T) {
	provider := newFakeProvider()
	cache := newFakeCache()
	bs, err := New(&Config{Provider: provider, Cache: cache})
	require.NoError(t, err)

	require.NoError(t, bs.Close())
	require.NoError(t, bs.Close())

	_, err = bs.Fetch([]byte("k"))
	require.ErrorIs(t, err, ErrClosed)
}
