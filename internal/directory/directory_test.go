package directory

import (
	"context"
	"testing"

	"github.com/iamNilotpal/pagekv/internal/storage"
	"github.com/iamNilotpal/pagekv/pkg/logger"
	"github.com/iamNilotpal/pagekv/pkg/options"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T, maxShift uint8) (*Directory, *storage.Storage) {
	t.Helper()
	opts := options.NewDefaultOptions()
	opts.DataDir = t.TempDir()
	opts.Page.Size = 512
	opts.Page.MaxShift = maxShift

	store, err := storage.New(&storage.Config{Options: &opts, Logger: logger.New("directory_test")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	dir, err := New(context.Background(), &Config{
		Store: store, Logger: logger.New("directory_test"), MaxShift: maxShift,
	})
	require.NoError(t, err)
	return dir, store
}

func TestNew_BootstrapsSinglePageRoot(t *testing.T) {
	dir, _ := newTestDirectory(t, 8)

	node, page, shift, err := dir.PageForHash(0xDEADBEEF)
	require.NoError(t, err)
	require.Equal(t, rootNode, node)
	require.Equal(t, uint8(0), shift)
	require.NotZero(t, page)
}

func TestPageForHash_RoutesByHashBits(t *testing.T) {
	dir, _ := newTestDirectory(t, 8)

	node, _, _, err := dir.PageForHash(0)
	require.NoError(t, err)
	require.Equal(t, rootNode, node)

	left, right, err := dir.Split(rootNode)
	require.NoError(t, err)
	require.NotEqual(t, left, right)

	_, pageLow, shiftLow, err := dir.PageForHash(0x00000000)
	require.NoError(t, err)
	require.Equal(t, uint8(1), shiftLow)
	require.Equal(t, left, pageLow)

	_, pageHigh, shiftHigh, err := dir.PageForHash(0x80000000)
	require.NoError(t, err)
	require.Equal(t, uint8(1), shiftHigh)
	require.Equal(t, right, pageHigh)
}

func TestSplit_RespectsMaxShift(t *testing.T) {
	dir, _ := newTestDirectory(t, 1)

	_, _, err := dir.Split(rootNode)
	require.NoError(t, err)

	node, _, _, err := dir.PageForHash(0)
	require.NoError(t, err)

	_, _, err = dir.Split(node)
	require.Error(t, err)
}

func TestSplit_ManyTimesSwitchesToChunkStorage(t *testing.T) {
	dir, store := newTestDirectory(t, 10)

	node := rootNode
	for i := 0; i < 6; i++ {
		left, _, err := dir.Split(node)
		require.NoError(t, err)
		node = leftChildOf(left, dir)
	}

	require.Greater(t, dir.LeafCount(), 1)

	header, err := store.Header()
	require.NoError(t, err)
	require.Zero(t, header.DirectoryInlineLen)
}

// leftChildOf is a tiny test helper that makes the loop above read less
// like arithmetic soup; it isn't part of the package's public surface.
func leftChildOf(page uint32, dir *Directory) uint64 {
	for node, p := range dir.pages {
		if p == page {
			return node
		}
	}
	return rootNode
}

func TestPersistence_SurvivesReopen(t *testing.T) {
	opts := options.NewDefaultOptions()
	opts.DataDir = t.TempDir()
	opts.Page.Size = 512
	opts.Page.MaxShift = 8

	log := logger.New("directory_test")

	store1, err := storage.New(&storage.Config{Options: &opts, Logger: log})
	require.NoError(t, err)

	dir1, err := New(context.Background(), &Config{Store: store1, Logger: log, MaxShift: 8})
	require.NoError(t, err)

	_, _, err = dir1.Split(rootNode)
	require.NoError(t, err)
	require.NoError(t, dir1.Close())
	require.NoError(t, store1.Close())

	store2, err := storage.New(&storage.Config{Options: &opts, Logger: log})
	require.NoError(t, err)
	defer store2.Close()

	dir2, err := New(context.Background(), &Config{Store: store2, Logger: log, MaxShift: 8})
	require.NoError(t, err)

	require.Equal(t, 2, dir2.LeafCount())
	require.Equal(t, uint8(1), dir2.CurrentShift())
}

func TestPreSplit_CreatesRequestedLeaves(t *testing.T) {
	dir, _ := newTestDirectory(t, 8)
	require.NoError(t, dir.PreSplit(4))
	require.GreaterOrEqual(t, dir.LeafCount(), 4)
}
