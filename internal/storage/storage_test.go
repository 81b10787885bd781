package storage

import (
	"testing"

	"github.com/iamNilotpal/pagekv/pkg/logger"
	"github.com/iamNilotpal/pagekv/pkg/options"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	opts := options.NewDefaultOptions()
	opts.DataDir = t.TempDir()
	opts.Page.Size = 512

	s, err := New(&Config{Options: &opts, Logger: logger.New("storage_test")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNew_CreatesFreshDatabase(t *testing.T) {
	s := newTestStorage(t)

	h, err := s.Header()
	require.NoError(t, err)
	require.Equal(t, uint32(512), h.PageSize)
	require.Equal(t, s.SizePages(), h.SizePages)

	require.NoError(t, s.ForEachChunk(func(start uint32, ch ChunkHeader) error {
		require.Equal(t, ChunkFree, ch.Type)
		require.Equal(t, uint32(1), start)
		return nil
	}))
}

func TestReopen_PreservesHeader(t *testing.T) {
	opts := options.NewDefaultOptions()
	opts.DataDir = t.TempDir()
	opts.Page.Size = 512

	log := logger.New("storage_test")

	s1, err := New(&Config{Options: &opts, Logger: log})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := New(&Config{Options: &opts, Logger: log})
	require.NoError(t, err)
	defer s2.Close()

	h, err := s2.Header()
	require.NoError(t, err)
	require.Equal(t, uint32(512), h.PageSize)
}

func TestAllocAndFreeChunk_Coalesces(t *testing.T) {
	s := newTestStorage(t)

	chunkA, err := s.AllocChunk(1, ChunkData, 0)
	require.NoError(t, err)

	chunkB, err := s.AllocChunk(1, ChunkData, 0)
	require.NoError(t, err)

	require.NoError(t, s.FreeChunk(chunkA))
	require.NoError(t, s.FreeChunk(chunkB))

	var freeSeen int
	require.NoError(t, s.ForEachChunk(func(start uint32, ch ChunkHeader) error {
		if ch.Type == ChunkFree {
			freeSeen++
		}
		return nil
	}))
	require.Equal(t, 1, freeSeen, "adjacent free chunks must coalesce into one")
}

func TestAllocChunk_GrowsFileWhenExhausted(t *testing.T) {
	s := newTestStorage(t)
	before := s.SizePages()

	for i := 0; i < 10; i++ {
		_, err := s.AllocChunk(1, ChunkData, 0)
		require.NoError(t, err)
	}

	require.Greater(t, s.SizePages(), before)
}

func TestAllocChunk_RespectsPageLimit(t *testing.T) {
	opts := options.NewDefaultOptions()
	opts.DataDir = t.TempDir()
	opts.Page.Size = 512
	opts.Page.LimitPages = 3

	s, err := New(&Config{Options: &opts, Logger: logger.New("storage_test")})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.AllocChunk(100, ChunkData, 0)
	require.Error(t, err)
}

func TestClose_IsIdempotent(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.True(t, s.Closed())
}
