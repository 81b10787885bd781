// Package lock implements the cross-process concurrency discipline (C7):
// an exclusive whole-database lock, N independent partition locks keyed by
// a key's hash, or a multi-reader/single-writer (MROW) shared lock, all
// nestable by a single holder via a depth counter. Lock state lives in a
// named file separate from the data file, the way spec.md's §6 shared
// memory file does.
//
// A Manager is safe to share across goroutines in the same process (the
// way Engine.Dup hands every duplicate the same *Manager): every lock
// class is fronted by a real in-process gate (sync.Mutex/RWMutex) that a
// second goroutine genuinely blocks on, with the OS-level flock/fcntl call
// made only by whichever goroutine is currently holding that gate. Nesting
// is identified by the Token a Lock/PLock/LockSmart call returns — a
// caller re-presents that token to nest without re-acquiring the gate or
// the OS lock; presenting the zero Token (or a token that doesn't match
// the current holder) always contends for the lock like a brand new
// holder, even one sharing this Manager with the current holder.
package lock

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/pagekv/pkg/options"
	"go.uber.org/zap"
)

// Token identifies one acquisition of a lock class. The zero Token is
// never issued and always means "not currently held by the presenter."
type Token uint64

// gate is the subset of sync.Mutex and sync.RWMutex (its writer side) a
// write-style acquisition needs; it lets lockExclusive share one code path
// between the plain exclusive lock and a LockShared-mode writer without
// caring which concrete mutex backs it.
type gate interface {
	Lock()
	TryLock() bool
	Unlock()
}

// partitionState is one partition's in-process gate plus the holder
// bookkeeping for it. Every field but gate is only ever touched while
// Manager.mu is held.
type partitionState struct {
	gate  sync.Mutex
	token Token
	depth int
}

// Manager owns one lock-state file, the in-process gates that give
// same-process goroutines real mutual exclusion, and the holder-identity
// bookkeeping layered on top of the OS-level advisory locks it holds.
type Manager struct {
	mu sync.Mutex

	mode           options.LockMode
	partitionCount uint32

	file *os.File
	path string
	log  *zap.SugaredLogger

	closed atomic.Bool

	nextToken atomic.Uint64

	// exclusiveGate backs Lock/Unlock when mode == LockExclusive.
	exclusiveGate sync.Mutex
	exclusiveTok  Token
	exclusiveDepth int

	// rw backs LockShared's reader side (RLock/RUnlock) and, when mode ==
	// LockShared, also backs lockExclusive's writer path via writeGate:
	// a writer must exclude every reader, not just other writers.
	rw          sync.RWMutex
	sharedDepth map[Token]int
	sharedCount int

	partitions []*partitionState
}

// Config carries what Manager needs to open its lock-state file.
type Config struct {
	// Path is the lock-state file's path, usually derived from the data
	// file's own path (see LockPathFor).
	Path string

	Mode           options.LockMode
	PartitionCount uint32

	Logger *zap.SugaredLogger
}

const lockFileSuffix = ".lock"

// LockPathFor derives the deterministic lock-state file path for a data
// file path, the way spec.md §6 describes naming a database's shared
// memory file from its own path.
func LockPathFor(dataPath string) string {
	return dataPath + lockFileSuffix
}

// newToken mints a fresh, never-repeating holder identity.
func (m *Manager) newToken() Token {
	return Token(m.nextToken.Add(1))
}

// writeGate returns the in-process primitive a write-style acquisition
// (Lock, or a LockShared-mode write via LockSmart) must hold before it is
// allowed to touch the OS-level lock.
func (m *Manager) writeGate() gate {
	if m.mode == options.LockShared {
		return &m.rw
	}
	return &m.exclusiveGate
}

func newPartitions(count uint32) []*partitionState {
	if count == 0 {
		count = 1
	}
	out := make([]*partitionState, count)
	for i := range out {
		out[i] = &partitionState{}
	}
	return out
}
