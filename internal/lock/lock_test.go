package lock

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/iamNilotpal/pagekv/pkg/logger"
	"github.com/iamNilotpal/pagekv/pkg/options"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, mode options.LockMode, partitions uint32) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pagekv.db.lock")
	m, err := New(&Config{Path: path, Mode: mode, PartitionCount: partitions, Logger: logger.New("lock_test")})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Close()
	})
	return m
}

func TestExclusiveLock_NestsAndReleases(t *testing.T) {
	m := newTestManager(t, options.LockExclusive, 0)

	tok1, err := m.Lock(0)
	require.NoError(t, err)
	require.True(t, m.IsOwned())

	tok2, err := m.Lock(tok1)
	require.NoError(t, err)
	require.Equal(t, tok1, tok2)

	require.NoError(t, m.Unlock(tok2))
	require.True(t, m.IsOwned())
	require.NoError(t, m.Unlock(tok1))
	require.False(t, m.IsOwned())
}

func TestUnlock_WithoutMatchingLockErrors(t *testing.T) {
	m := newTestManager(t, options.LockExclusive, 0)
	require.Error(t, m.Unlock(0))
	require.Error(t, m.Unlock(Token(12345)))
}

func TestLockNone_AlwaysNoOp(t *testing.T) {
	m := newTestManager(t, options.LockNone, 0)
	tok, err := m.Lock(0)
	require.NoError(t, err)
	require.NoError(t, m.Unlock(tok))
	require.False(t, m.IsLocked())
}

func TestPartitionedLock_IndependentPartitionsDoNotBlockEachOther(t *testing.T) {
	m := newTestManager(t, options.LockPartitioned, 4)

	tok0, err := m.PLock(0, 0)
	require.NoError(t, err)
	tok1, err := m.PLock(1, 0)
	require.NoError(t, err)
	require.NoError(t, m.PUnlock(0, tok0))
	require.NoError(t, m.PUnlock(1, tok1))
}

func TestLockSmart_DispatchesByMode(t *testing.T) {
	shared := newTestManager(t, options.LockShared, 0)
	tok, err := shared.LockSmart(0, false, 0)
	require.NoError(t, err)
	require.NoError(t, shared.UnlockSmart(0, false, tok))

	tok, err = shared.LockSmart(0, true, 0)
	require.NoError(t, err)
	require.NoError(t, shared.UnlockSmart(0, true, tok))
}

func TestClose_SecondCallReturnsError(t *testing.T) {
	m := newTestManager(t, options.LockExclusive, 0)
	require.NoError(t, m.Close())
	require.Error(t, m.Close())
}

// TestExclusiveLock_SecondHolderBlocksUntilFirstUnlocks drives spec.md's S6
// scenario directly: a second, unrelated acquisition of the same Manager
// (as Engine.Dup hands out) must genuinely block on an already-held
// exclusive lock, not fast-path through because some other holder's depth
// counter happens to be positive.
func TestExclusiveLock_SecondHolderBlocksUntilFirstUnlocks(t *testing.T) {
	m := newTestManager(t, options.LockExclusive, 0)

	tok1, err := m.Lock(0)
	require.NoError(t, err)

	acquired := make(chan Token, 1)
	go func() {
		tok2, err := m.Lock(0)
		require.NoError(t, err)
		acquired <- tok2
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired the exclusive lock while the first still held it")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, m.Unlock(tok1))

	select {
	case tok2 := <-acquired:
		require.NoError(t, m.Unlock(tok2))
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the exclusive lock after it was released")
	}
}

// TestPartitionedLock_SameHolderNestsDistinctHoldersBlock exercises both
// halves of the holder-identity fix on the same partition: the holder that
// acquired it nests freely by presenting its token, while a different
// holder (no token, or a stale one) genuinely blocks.
func TestPartitionedLock_SameHolderNestsDistinctHoldersBlock(t *testing.T) {
	m := newTestManager(t, options.LockPartitioned, 1)

	tok1, err := m.PLock(0, 0)
	require.NoError(t, err)
	tok1b, err := m.PLock(0, tok1)
	require.NoError(t, err)
	require.Equal(t, tok1, tok1b)
	require.NoError(t, m.PUnlock(0, tok1b))

	acquired := make(chan Token, 1)
	go func() {
		tok2, err := m.PLock(0, 0)
		require.NoError(t, err)
		acquired <- tok2
	}()

	select {
	case <-acquired:
		t.Fatal("a different holder acquired an already-held partition lock")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, m.PUnlock(0, tok1))

	select {
	case tok2 := <-acquired:
		require.NoError(t, m.PUnlock(0, tok2))
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the partition lock after it was released")
	}
}

// TestSharedLock_MultipleReadersConcurrent verifies the multi-reader side
// of MROW mode: distinct holders may hold the shared lock at the same
// time, and the OS-level lock is only released once every holder has.
func TestSharedLock_MultipleReadersConcurrent(t *testing.T) {
	m := newTestManager(t, options.LockShared, 0)

	var wg sync.WaitGroup
	toks := make([]Token, 8)
	for i := range toks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := m.LockShared(0)
			require.NoError(t, err)
			toks[i] = tok
		}(i)
	}
	wg.Wait()

	seen := make(map[Token]bool)
	for _, tok := range toks {
		require.NotEqual(t, Token(0), tok)
		require.False(t, seen[tok])
		seen[tok] = true
	}

	for _, tok := range toks {
		require.NoError(t, m.UnlockShared(tok))
	}
	require.False(t, m.IsOwned())
}
