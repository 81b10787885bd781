package lob

import (
	"bytes"
	"testing"

	"github.com/iamNilotpal/pagekv/internal/storage"
	"github.com/iamNilotpal/pagekv/pkg/logger"
	"github.com/iamNilotpal/pagekv/pkg/options"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *storage.Storage) {
	t.Helper()
	opts := options.NewDefaultOptions()
	opts.DataDir = t.TempDir()
	opts.Page.Size = 512

	backing, err := storage.New(&storage.Config{Options: &opts, Logger: logger.New("lob_test")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backing.Close() })

	lobStore, err := New(&Config{Store: backing, Logger: logger.New("lob_test")})
	require.NoError(t, err)
	return lobStore, backing
}

func TestPutAndGet_RoundTrips(t *testing.T) {
	s, _ := newTestStore(t)
	value := bytes.Repeat([]byte{0xAA}, 4096)

	desc, err := s.Put(value)
	require.NoError(t, err)
	require.GreaterOrEqual(t, desc.Pages, uint32(1))
	require.Equal(t, uint32(len(value)), desc.Length)

	got, err := s.Get(desc)
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestPut_SpansMultiplePages(t *testing.T) {
	s, backing := newTestStore(t)
	value := bytes.Repeat([]byte{0x5A}, 2000)

	desc, err := s.Put(value)
	require.NoError(t, err)

	h := backing.ReadChunkHeader(desc.PageNumber)
	require.Equal(t, storage.ChunkLOB, h.Type)
	require.Equal(t, desc.Pages, h.SelfLengthPages)
	require.Greater(t, desc.Pages, uint32(1))
}

func TestUpdate_InPlaceWhenItFits(t *testing.T) {
	s, _ := newTestStore(t)
	original := bytes.Repeat([]byte{0x01}, 100)
	desc, err := s.Put(original)
	require.NoError(t, err)

	smaller := bytes.Repeat([]byte{0x02}, 50)
	next, err := s.Update(desc, smaller)
	require.NoError(t, err)
	require.Equal(t, desc.PageNumber, next.PageNumber)

	got, err := s.Get(next)
	require.NoError(t, err)
	require.Equal(t, smaller, got)
}

func TestUpdate_ReallocatesWhenTooBig(t *testing.T) {
	s, _ := newTestStore(t)
	original := bytes.Repeat([]byte{0x01}, 50)
	desc, err := s.Put(original)
	require.NoError(t, err)

	bigger := bytes.Repeat([]byte{0x02}, 4096)
	next, err := s.Update(desc, bigger)
	require.NoError(t, err)
	require.NotEqual(t, desc.PageNumber, next.PageNumber)

	got, err := s.Get(next)
	require.NoError(t, err)
	require.Equal(t, bigger, got)
}

func TestGet_RejectsMismatchedDescriptor(t *testing.T) {
	s, _ := newTestStore(t)
	desc, err := s.Put([]byte("hello"))
	require.NoError(t, err)

	desc.Length = 9999
	_, err = s.Get(desc)
	require.Error(t, err)
}

func TestFree_ReturnsChunkToFreeList(t *testing.T) {
	s, backing := newTestStore(t)
	desc, err := s.Put(bytes.Repeat([]byte{0x03}, 300))
	require.NoError(t, err)

	require.NoError(t, s.Free(desc))

	h := backing.ReadChunkHeader(desc.PageNumber)
	require.Equal(t, storage.ChunkFree, h.Type)
}
