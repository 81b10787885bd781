package cache

import (
	"testing"

	"github.com/iamNilotpal/pagekv/internal/page"
	"github.com/iamNilotpal/pagekv/pkg/logger"
	"github.com/iamNilotpal/pagekv/pkg/options"
	"github.com/stretchr/testify/require"
)

func newPage(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, 512)
	page.Init(buf)
	return buf
}

func TestSelectVictim_LRU_PicksOldestAccess(t *testing.T) {
	buf := newPage(t)
	_, err := page.Insert(buf, []byte("a"), []byte("1"), 1, 1, 0)
	require.NoError(t, err)
	_, err = page.Insert(buf, []byte("b"), []byte("2"), 2, 1, 0)
	require.NoError(t, err)

	require.NoError(t, page.Touch(buf, 1, 100))
	require.NoError(t, page.Touch(buf, 2, 200))

	e := New(&Config{Mode: options.CacheLRU, Logger: logger.New("cache_test")})
	victim, ok := e.SelectVictim(buf)
	require.True(t, ok)
	require.Equal(t, 1, victim)
}

func TestSelectVictim_LFU_PicksFewestHits(t *testing.T) {
	buf := newPage(t)
	_, err := page.Insert(buf, []byte("a"), []byte("1"), 1, 1, 0)
	require.NoError(t, err)
	_, err = page.Insert(buf, []byte("b"), []byte("2"), 2, 1, 0)
	require.NoError(t, err)

	require.NoError(t, page.Touch(buf, 1, 1))
	require.NoError(t, page.Touch(buf, 1, 2))
	require.NoError(t, page.Touch(buf, 2, 1))

	e := New(&Config{Mode: options.CacheLFU, Logger: logger.New("cache_test")})
	victim, ok := e.SelectVictim(buf)
	require.True(t, ok)
	require.Equal(t, 2, victim)
}

func TestSelectVictim_EvictCleanFirst(t *testing.T) {
	buf := newPage(t)
	_, err := page.Insert(buf, []byte("a"), []byte("1"), 1, 1, 0)
	require.NoError(t, err)
	_, err = page.Insert(buf, []byte("b"), []byte("2"), 2, 1, 0)
	require.NoError(t, err)

	require.NoError(t, page.Touch(buf, 1, 50))
	require.NoError(t, page.Touch(buf, 2, 10))
	require.NoError(t, page.MarkClean(buf, 1))

	e := New(&Config{Mode: options.CacheLRU, EvictCleanFirst: true, Logger: logger.New("cache_test")})
	victim, ok := e.SelectVictim(buf)
	require.True(t, ok)
	require.Equal(t, 1, victim)
}

func TestSelectVictim_NoneModeNeverEvicts(t *testing.T) {
	buf := newPage(t)
	_, err := page.Insert(buf, []byte("a"), []byte("1"), 1, 1, 0)
	require.NoError(t, err)

	e := New(&Config{Mode: options.CacheNone, Logger: logger.New("cache_test")})
	_, ok := e.SelectVictim(buf)
	require.False(t, ok)
}

func TestShake_DeletesNamedEntries(t *testing.T) {
	buf := newPage(t)
	_, err := page.Insert(buf, []byte("a"), []byte("1"), 1, 1, 0)
	require.NoError(t, err)
	_, err = page.Insert(buf, []byte("b"), []byte("2"), 2, 1, 0)
	require.NoError(t, err)

	deleted, err := Shake(buf, func(entries []ShakeEntry) []int {
		var victims []int
		for _, e := range entries {
			if string(e.Key) == "a" {
				victims = append(victims, e.Index)
			}
		}
		return victims
	})
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	_, _, ok := page.Lookup(buf, 1, []byte("a"))
	require.False(t, ok)
}

func TestClean_MarksApprovedEntries(t *testing.T) {
	buf := newPage(t)
	_, err := page.Insert(buf, []byte("a"), []byte("1"), 1, 1, 0)
	require.NoError(t, err)

	cleaned, err := Clean(buf, func(e ShakeEntry) (bool, bool) { return true, false })
	require.NoError(t, err)
	require.Equal(t, 1, cleaned)
	require.True(t, page.SlotAt(buf, 1).Clean())
}

func TestClean_QuitStopsScanningThisPage(t *testing.T) {
	buf := newPage(t)
	_, err := page.Insert(buf, []byte("a"), []byte("1"), 1, 1, 0)
	require.NoError(t, err)
	_, err = page.Insert(buf, []byte("b"), []byte("2"), 2, 1, 0)
	require.NoError(t, err)

	cleaned, err := Clean(buf, func(e ShakeEntry) (bool, bool) { return true, true })
	require.NoError(t, err)
	require.Equal(t, 1, cleaned)
	require.True(t, page.SlotAt(buf, 1).Clean())
	require.False(t, page.SlotAt(buf, 2).Clean())
}
