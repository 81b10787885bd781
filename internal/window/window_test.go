package window

import (
	"os"
	"testing"

	"github.com/iamNilotpal/pagekv/pkg/logger"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestWindow(t *testing.T, slots uint32) (*Window, uint32) {
	t.Helper()
	pageSize := uint32(unix.Getpagesize())

	f, err := os.CreateTemp(t.TempDir(), "window")
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	require.NoError(t, f.Truncate(int64(pageSize)*int64(slots)*4))

	w, err := New(&Config{File: f, PageSize: pageSize, Size: pageSize * slots, Logger: logger.New("window_test")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	return w, pageSize
}

func TestAcquire_CachesHitsWithoutRemapping(t *testing.T) {
	w, _ := newTestWindow(t, 4)

	data1, err := w.Acquire(0, 1)
	require.NoError(t, err)
	data2, err := w.Acquire(0, 1)
	require.NoError(t, err)
	require.Equal(t, &data1[0], &data2[0])
}

func TestAcquire_EvictsLRUWhenFull(t *testing.T) {
	w, _ := newTestWindow(t, 2)

	_, err := w.Acquire(0, 1)
	require.NoError(t, err)
	_, err = w.Acquire(1, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(2), w.Resident())

	_, err = w.Acquire(2, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(2), w.Resident())
}

func TestAcquire_RejectsSpanLargerThanCapacity(t *testing.T) {
	w, _ := newTestWindow(t, 2)
	_, err := w.Acquire(0, 3)
	require.Error(t, err)
}

func TestNew_RejectsUndersizedWindow(t *testing.T) {
	pageSize := uint32(unix.Getpagesize())
	f, err := os.CreateTemp(t.TempDir(), "window")
	require.NoError(t, err)
	defer f.Close()

	_, err = New(&Config{File: f, PageSize: pageSize, Size: pageSize, Logger: logger.New("window_test")})
	require.Error(t, err)
}

func TestWriteThroughPersistsAcrossReacquire(t *testing.T) {
	w, _ := newTestWindow(t, 2)

	data, err := w.Acquire(0, 1)
	require.NoError(t, err)
	data[0] = 0x42
	require.NoError(t, w.Sync(0))

	_, err = w.Acquire(1, 1)
	require.NoError(t, err)
	_, err = w.Acquire(2, 1)
	require.NoError(t, err)

	reacquired, err := w.Acquire(0, 1)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), reacquired[0])
}
