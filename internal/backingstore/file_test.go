package backingstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFileProvider(t *testing.T) *FileProvider {
	t.Helper()
	p, err := NewFileProvider(FileProviderConfig{
		DataDir:  t.TempDir(),
		SlotDir:  "slots",
		Prefix:   "test",
		SlotSize: 64,
	})
	require.NoError(t, err)
	require.NoError(t, p.Init())
	t.Cleanup(func() { _ = p.Term() })
	return p
}

func TestFileProvider_StoreAndFetch(t *testing.T) {
	p := newTestFileProvider(t)
	require.NoError(t, p.Store([]byte("hello"), []byte("world")))

	value, err := p.Fetch([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, []byte("world"), value)
}

func TestFileProvider_FetchMissingKeyErrors(t *testing.T) {
	p := newTestFileProvider(t)
	_, err := p.Fetch([]byte("missing"))
	require.Error(t, err)
}

func TestFileProvider_StoreOverwritesExistingSlot(t *testing.T) {
	p := newTestFileProvider(t)
	require.NoError(t, p.Store([]byte("k"), []byte("v1")))
	require.NoError(t, p.Store([]byte("k"), []byte("v2")))

	value, err := p.Fetch([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), value)
}

func TestFileProvider_StoreRejectsOversizedPair(t *testing.T) {
	p := newTestFileProvider(t)
	big := make([]byte, 128)
	err := p.Store([]byte("k"), big)
	require.Error(t, err)
}

func TestFileProvider_Delete(t *testing.T) {
	p := newTestFileProvider(t)
	require.NoError(t, p.Store([]byte("k"), []byte("v")))
	require.NoError(t, p.Delete([]byte("k")))

	_, err := p.Fetch([]byte("k"))
	require.Error(t, err)
}

func TestFileProvider_IndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	p, err := NewFileProvider(FileProviderConfig{DataDir: dir, SlotDir: "slots", Prefix: "gen", SlotSize: 64})
	require.NoError(t, err)
	require.NoError(t, p.Init())
	require.NoError(t, p.Store([]byte("persisted"), []byte("value")))
	require.NoError(t, p.Term())

	reopened, err := NewFileProvider(FileProviderConfig{DataDir: dir, SlotDir: "slots", Prefix: "gen", SlotSize: 64})
	require.NoError(t, err)
	require.NoError(t, reopened.Init())
	defer reopened.Term()

	value, err := reopened.Fetch([]byte("persisted"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), value)
}
