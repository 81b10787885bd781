package compaction

import (
	"context"
	"testing"
	"time"

	"github.com/iamNilotpal/pagekv/internal/page"
	"github.com/iamNilotpal/pagekv/internal/storage"
	"github.com/iamNilotpal/pagekv/pkg/logger"
	"github.com/iamNilotpal/pagekv/pkg/options"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	opts := options.NewDefaultOptions()
	opts.DataDir = t.TempDir()
	opts.Page.Size = 512

	store, err := storage.New(&storage.Config{Options: &opts, Logger: logger.New("compaction_test")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRun_CompactsPagesWithTombstones(t *testing.T) {
	store := newTestStorage(t)
	start, err := store.AllocChunk(1, storage.ChunkData, 0)
	require.NoError(t, err)

	buf := store.PageAt(start)
	page.Init(buf)

	idx, err := page.Insert(buf, []byte("a"), []byte("1"), 1, 1, 0)
	require.NoError(t, err)
	_, err = page.Insert(buf, []byte("b"), []byte("2"), 2, 1, 0)
	require.NoError(t, err)
	require.NoError(t, page.Delete(buf, idx))
	require.NotZero(t, page.DeletedBytes(buf))

	c := New(&Config{Storage: store, Alignment: 1, Logger: logger.New("compaction_test")})
	stats, err := c.Run()
	require.NoError(t, err)
	require.Equal(t, 1, stats.PagesCompacted)
	require.NotZero(t, stats.BytesReclaimed)
	require.Zero(t, page.DeletedBytes(buf))
}

func TestRun_SkipsCleanPages(t *testing.T) {
	store := newTestStorage(t)
	start, err := store.AllocChunk(1, storage.ChunkData, 0)
	require.NoError(t, err)

	buf := store.PageAt(start)
	page.Init(buf)
	_, err = page.Insert(buf, []byte("a"), []byte("1"), 1, 1, 0)
	require.NoError(t, err)

	c := New(&Config{Storage: store, Alignment: 1, Logger: logger.New("compaction_test")})
	stats, err := c.Run()
	require.NoError(t, err)
	require.Equal(t, 0, stats.PagesCompacted)
}

func TestRun_IgnoresNonDataChunks(t *testing.T) {
	store := newTestStorage(t)
	_, err := store.AllocChunk(1, storage.ChunkDir, 0)
	require.NoError(t, err)

	c := New(&Config{Storage: store, Alignment: 1, Logger: logger.New("compaction_test")})
	stats, err := c.Run()
	require.NoError(t, err)
	require.Equal(t, 0, stats.PagesCompacted)
}

func TestStartStop_RunsInBackgroundUntilStopped(t *testing.T) {
	store := newTestStorage(t)
	start, err := store.AllocChunk(1, storage.ChunkData, 0)
	require.NoError(t, err)

	buf := store.PageAt(start)
	page.Init(buf)
	idx, err := page.Insert(buf, []byte("a"), []byte("1"), 1, 1, 0)
	require.NoError(t, err)
	require.NoError(t, page.Delete(buf, idx))

	c := New(&Config{Storage: store, Alignment: 1, Interval: 5 * time.Millisecond, Logger: logger.New("compaction_test")})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Start(ctx)
	require.Eventually(t, func() bool { return page.DeletedBytes(buf) == 0 }, time.Second, 5*time.Millisecond)
	c.Stop()
}

func TestStart_NoopWithoutInterval(t *testing.T) {
	store := newTestStorage(t)
	c := New(&Config{Storage: store, Alignment: 1, Logger: logger.New("compaction_test")})
	c.Start(context.Background())
	c.Stop()
}
