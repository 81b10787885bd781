package pagekv

import (
	"context"
	"fmt"
	"hash/fnv"
	"testing"

	"github.com/iamNilotpal/pagekv/pkg/errors"
	"github.com/iamNilotpal/pagekv/pkg/options"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, opts ...options.OptionFunc) *DB {
	t.Helper()
	base := []options.OptionFunc{
		options.WithDataDir(t.TempDir()),
		options.WithPageSize(4096),
		options.WithLockMode(options.LockNone, 0),
	}
	db, err := Open(context.Background(), "pagekv_test", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// S1: insert, fetch, duplicate insert, replace.
func TestScenario_InsertFetch(t *testing.T) {
	db := openTestDB(t, options.WithLimitPages(128))

	res, err := db.Store([]byte("foo"), []byte("bar"), StoreInsert, 0)
	require.NoError(t, err)
	require.Equal(t, StoreOK, res.Code)

	value, err := db.Fetch([]byte("foo"))
	require.NoError(t, err)
	require.Equal(t, []byte("bar"), value)

	res, err = db.Store([]byte("foo"), []byte("baz"), StoreInsert, 0)
	require.NoError(t, err)
	require.Equal(t, StoreExists, res.Code)

	value, err = db.Fetch([]byte("foo"))
	require.NoError(t, err)
	require.Equal(t, []byte("bar"), value)

	res, err = db.Store([]byte("foo"), []byte("baz"), StoreReplace, 0)
	require.NoError(t, err)
	require.Equal(t, StoreOK, res.Code)

	value, err = db.Fetch([]byte("foo"))
	require.NoError(t, err)
	require.Equal(t, []byte("baz"), value)
}

// S2: delete then refetch.
func TestScenario_DeleteRefetch(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Store([]byte("foo"), []byte("bar"), StoreInsert, 0)
	require.NoError(t, err)

	require.NoError(t, db.Delete([]byte("foo")))

	_, err = db.Fetch([]byte("foo"))
	require.Error(t, err)
	require.True(t, errors.IsStorageError(err))

	_, err = db.Store([]byte("foo"), []byte("qux"), StoreInsert, 0)
	require.NoError(t, err)

	value, err := db.Fetch([]byte("foo"))
	require.NoError(t, err)
	require.Equal(t, []byte("qux"), value)
}

// S3: duplicate iteration yields every StoreInsertDup value exactly once.
func TestScenario_DuplicateIteration(t *testing.T) {
	db := openTestDB(t)

	want := map[string]bool{}
	for i := 0; i < 16; i++ {
		v := fmt.Sprintf("v%d", i)
		want[v] = true
		_, err := db.Store([]byte("k"), []byte(v), StoreInsertDup, 0)
		require.NoError(t, err)
	}

	it := db.FetchDup([]byte("k"))
	got := map[string]bool{}
	count := 0
	for {
		value, ok, err := db.NextDup(it)
		require.NoError(t, err)
		if !ok {
			break
		}
		got[string(value)] = true
		count++
	}

	require.Equal(t, 16, count)
	require.Equal(t, want, got)
}

// S4: a value larger than the spill threshold round-trips through the LOB
// store, including across a close/reopen cycle.
func TestScenario_LargeObject(t *testing.T) {
	dir := t.TempDir()
	openOpts := []options.OptionFunc{
		options.WithDataDir(dir),
		options.WithPageSize(4096),
		options.WithLockMode(options.LockNone, 0),
		options.WithLargeObjects(true, 3072),
	}

	db, err := Open(context.Background(), "pagekv_test", openOpts...)
	require.NoError(t, err)

	value := make([]byte, 4096)
	for i := range value {
		value[i] = 0xAA
	}

	_, err = db.Store([]byte("k"), value, StoreInsert, 0)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db2, err := Open(context.Background(), "pagekv_test", openOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db2.Close() })

	got, err := db2.Fetch([]byte("k"))
	require.NoError(t, err)
	require.Len(t, got, 4096)
	for _, b := range got {
		require.Equal(t, byte(0xAA), b)
	}
}

// S5: enough small keys to force at least one directory split; every key
// remains reachable with its original value afterward.
func TestScenario_PageSplit(t *testing.T) {
	db := openTestDB(t,
		options.WithPageSize(512),
		options.WithLimitPages(32),
	)

	values := map[string]string{}
	for i := 0; i < 64; i++ {
		key := fmt.Sprintf("k%d", i)
		value := fmt.Sprintf("%056d", i) // 56 bytes, padded toward 64.
		values[key] = value
		_, err := db.Store([]byte(key), []byte(value), StoreInsert, 0)
		require.NoError(t, err)
	}

	for key, want := range values {
		got, err := db.Fetch([]byte(key))
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}
}

// S6: independent partitions never block each other.
func TestScenario_PartitionedLockExclusion(t *testing.T) {
	db := openTestDB(t, options.WithLockMode(options.LockPartitioned, 16))

	_, err := db.Store([]byte("a"), []byte("1"), StoreInsert, 0)
	require.NoError(t, err)
	_, err = db.Store([]byte("b"), []byte("2"), StoreInsert, 0)
	require.NoError(t, err)

	va, err := db.Fetch([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), va)

	vb, err := db.Fetch([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), vb)
}

func TestOpen_RejectsEmptyKey(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Store(nil, []byte("v"), StoreInsert, 0)
	require.Error(t, err)
	require.True(t, errors.IsValidationError(err))

	_, err = db.Fetch(nil)
	require.Error(t, err)
	require.True(t, errors.IsValidationError(err))
}

func TestIterate_VisitsEveryLiveEntry(t *testing.T) {
	db := openTestDB(t)

	want := map[string]string{}
	for i := 0; i < 8; i++ {
		key := fmt.Sprintf("iter-%d", i)
		value := fmt.Sprintf("value-%d", i)
		want[key] = value
		_, err := db.Store([]byte(key), []byte(value), StoreInsert, 0)
		require.NoError(t, err)
	}

	got := map[string]string{}
	it := db.Iterate()
	for {
		key, value, ok, err := db.Next(it)
		require.NoError(t, err)
		if !ok {
			break
		}
		got[string(key)] = string(value)
	}

	require.Equal(t, want, got)
}

func TestDup_SharesStateWithIndependentIterator(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Store([]byte("shared"), []byte("v"), StoreInsert, 0)
	require.NoError(t, err)

	dup, err := db.Dup()
	require.NoError(t, err)
	defer dup.Close()

	value, err := dup.Fetch([]byte("shared"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)
}

// topBit mirrors the directory's child-routing bit at shift 0 (the bit the
// engine's own default FNV-1a hash would put a key's hash on after a single
// split), so a test can deterministically land several keys on the same
// child page.
func topBit(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return (h.Sum32() >> 31) & 1
}

// Property 10 (spec.md §8): under CacheLRU, the least-recently-fetched
// entry is the first one evicted when an insert needs room and the page's
// directory node already sits at max_shift. A freshly inserted entry never
// touched by Fetch carries a zero LastAccessUnix, so among untouched
// entries the earliest-inserted one (lowest slot index) always wins the
// eviction-priority tie deterministically — no wall-clock timing involved.
func TestCacheEviction_LRUVictimSurvivesViaFetch(t *testing.T) {
	db := openTestDB(t,
		options.WithPageSize(128),
		options.WithAlignment(1),
		options.WithMaxShift(1),
		options.WithCacheMode(options.CacheLRU, false),
	)

	var bucket []string
	for i := 0; len(bucket) < 3; i++ {
		k := fmt.Sprintf("k%d", i)
		if topBit(k) == 0 {
			bucket = append(bucket, k)
		}
	}

	for _, k := range bucket {
		res, err := db.Store([]byte(k), []byte("v"), StoreInsert, 0)
		require.NoError(t, err)
		require.Equal(t, StoreOK, res.Code)
	}

	oldest := bucket[0]
	mru := bucket[len(bucket)-1]

	// Touching mru gives it a large nonzero LastAccessUnix, so it will
	// never be the minimum-score candidate as long as at least one
	// never-touched (score-0) entry remains on the page.
	_, err := db.Fetch([]byte(mru))
	require.NoError(t, err)

	evicted := false
	for i := len(bucket); i < len(bucket)+256; i++ {
		k := fmt.Sprintf("k%d", i)
		if topBit(k) != 0 {
			continue
		}
		_, err := db.Store([]byte(k), []byte("v"), StoreInsert, 0)
		require.NoError(t, err)

		if _, err := db.Fetch([]byte(oldest)); err != nil {
			evicted = true
			break
		}
	}

	require.True(t, evicted, "coldest entry was never evicted once its page filled at max_shift")

	value, err := db.Fetch([]byte(mru))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)
}
