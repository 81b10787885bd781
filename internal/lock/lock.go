package lock

import (
	stdErrors "errors"
	"os"

	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"
	"github.com/iamNilotpal/pagekv/pkg/options"
	"golang.org/x/sys/unix"
)

var ErrLockManagerClosed = stdErrors.New("operation failed: lock manager is closed")

// New opens (creating if necessary) the lock-state file for config.Path
// and prepares a manager in config.Mode.
func New(config *Config) (*Manager, error) {
	if config == nil || config.Path == "" || config.Logger == nil {
		return nil, pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeInvalidInput, "lock manager configuration is required").
			WithField("config").WithRule("required").WithComponent("lock")
	}

	if config.Mode == options.LockNone {
		return &Manager{
			mode: options.LockNone, path: config.Path, log: config.Logger,
			sharedDepth: make(map[Token]int),
			partitions:  newPartitions(config.PartitionCount),
		}, nil
	}

	f, err := os.OpenFile(config.Path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, pkgerrors.ClassifyFileOpenError(err, config.Path, "lock file")
	}

	return &Manager{
		mode:           config.Mode,
		partitionCount: config.PartitionCount,
		file:           f,
		path:           config.Path,
		log:            config.Logger,
		sharedDepth:    make(map[Token]int),
		partitions:     newPartitions(config.PartitionCount),
	}, nil
}

// Close releases the lock-state file handle. It does not check for locks
// still held; a second call returns ErrLockManagerClosed.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrLockManagerClosed
	}
	if m.file == nil {
		return nil
	}
	return m.file.Close()
}

func (m *Manager) checkOpen() error {
	if m.closed.Load() {
		return ErrLockManagerClosed
	}
	return nil
}

// Lock acquires the exclusive whole-database lock, blocking indefinitely,
// and returns a Token identifying this acquisition. Presenting that same
// token to a nested Lock call only touches the OS lock on the outermost
// acquisition (§4.7 "nestable: a counter per holder tracks depth"); a held
// value of 0, or one that doesn't match the current holder, always
// contends for the lock for real, so a second goroutine sharing this
// Manager (e.g. via Engine.Dup) genuinely blocks instead of riding the
// first holder's depth.
func (m *Manager) Lock(held Token) (Token, error) {
	return m.lockExclusive(held, true)
}

// TryLock is the non-blocking form of Lock.
func (m *Manager) TryLock(held Token) (Token, error) {
	return m.lockExclusive(held, false)
}

func (m *Manager) lockExclusive(held Token, blocking bool) (Token, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	if m.mode == options.LockNone {
		return held, nil
	}

	m.mu.Lock()
	if held != 0 && held == m.exclusiveTok && m.exclusiveDepth > 0 {
		m.exclusiveDepth++
		tok := m.exclusiveTok
		m.mu.Unlock()
		return tok, nil
	}
	m.mu.Unlock()

	g := m.writeGate()
	if blocking {
		g.Lock()
	} else if !g.TryLock() {
		return 0, pkgerrors.NewLockError(nil, pkgerrors.ErrorCodeWouldBlock, "lock would block").
			WithMode("exclusive").WithOperation("TryLock")
	}

	flags := unix.LOCK_EX
	if !blocking {
		flags |= unix.LOCK_NB
	}
	if err := unix.Flock(int(m.file.Fd()), flags); err != nil {
		g.Unlock()
		return 0, m.lockErr(err, "Lock").WithMode("exclusive")
	}

	tok := m.newToken()
	m.mu.Lock()
	m.exclusiveTok = tok
	m.exclusiveDepth = 1
	m.mu.Unlock()
	return tok, nil
}

// Unlock releases one level of exclusive-lock nesting that held identifies,
// releasing the OS lock and the in-process gate once depth returns to zero.
func (m *Manager) Unlock(held Token) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if m.mode == options.LockNone {
		return nil
	}

	m.mu.Lock()
	if held == 0 || m.exclusiveDepth == 0 || held != m.exclusiveTok {
		m.mu.Unlock()
		return pkgerrors.NewLockError(nil, pkgerrors.ErrorCodeLockFailed, "unlock called without a matching lock").
			WithMode("exclusive").WithOperation("Unlock")
	}
	m.exclusiveDepth--
	if m.exclusiveDepth > 0 {
		m.mu.Unlock()
		return nil
	}
	m.exclusiveTok = 0
	m.mu.Unlock()

	err := unix.Flock(int(m.file.Fd()), unix.LOCK_UN)
	m.writeGate().Unlock()
	if err != nil {
		return m.lockErr(err, "Unlock").WithMode("exclusive")
	}
	return nil
}

// LockShared acquires the multi-reader side of the shared (MROW) lock and
// returns a Token identifying this acquisition, the way Lock does for the
// exclusive lock. Any number of distinct holders may hold the shared lock
// concurrently; the OS-level lock is released only once every holder has
// called UnlockShared.
func (m *Manager) LockShared(held Token) (Token, error) {
	return m.lockShared(held, true)
}

// TryLockShared is the non-blocking form of LockShared.
func (m *Manager) TryLockShared(held Token) (Token, error) {
	return m.lockShared(held, false)
}

func (m *Manager) lockShared(held Token, blocking bool) (Token, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	if m.mode == options.LockNone {
		return held, nil
	}

	m.mu.Lock()
	if held != 0 {
		if depth, ok := m.sharedDepth[held]; ok && depth > 0 {
			m.sharedDepth[held] = depth + 1
			m.mu.Unlock()
			return held, nil
		}
	}
	m.mu.Unlock()

	if blocking {
		m.rw.RLock()
	} else if !m.rw.TryRLock() {
		return 0, pkgerrors.NewLockError(nil, pkgerrors.ErrorCodeWouldBlock, "lock would block").
			WithMode("shared").WithOperation("TryLockShared")
	}

	flags := unix.LOCK_SH
	if !blocking {
		flags |= unix.LOCK_NB
	}
	if err := unix.Flock(int(m.file.Fd()), flags); err != nil {
		m.rw.RUnlock()
		return 0, m.lockErr(err, "LockShared").WithMode("shared")
	}

	tok := m.newToken()
	m.mu.Lock()
	m.sharedDepth[tok] = 1
	m.sharedCount++
	m.mu.Unlock()
	return tok, nil
}

// UnlockShared releases one level of nesting that held identifies,
// dropping the OS shared lock only once the last concurrent reader (not
// just the last nested call by this one) has released it — the OS lock is
// a single per-file-description reservation shared by every reader in
// this process, so releasing it while a sibling reader is still active
// would drop that sibling's protection too.
func (m *Manager) UnlockShared(held Token) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if m.mode == options.LockNone {
		return nil
	}

	m.mu.Lock()
	depth, ok := m.sharedDepth[held]
	if held == 0 || !ok || depth == 0 {
		m.mu.Unlock()
		return pkgerrors.NewLockError(nil, pkgerrors.ErrorCodeLockFailed, "unlock_shared called without a matching lock").
			WithMode("shared").WithOperation("UnlockShared")
	}
	if depth > 1 {
		m.sharedDepth[held] = depth - 1
		m.mu.Unlock()
		return nil
	}
	delete(m.sharedDepth, held)
	m.sharedCount--
	last := m.sharedCount == 0
	m.mu.Unlock()

	m.rw.RUnlock()
	if !last {
		return nil
	}
	if err := unix.Flock(int(m.file.Fd()), unix.LOCK_UN); err != nil {
		return m.lockErr(err, "UnlockShared").WithMode("shared")
	}
	return nil
}

// LockSmart dispatches to the lock appropriate for the manager's open-time
// mode: exclusive for LockExclusive, the partition owning hash for
// LockPartitioned, and shared-or-exclusive (depending on write) for
// LockShared (§4.7 lock_smart).
func (m *Manager) LockSmart(hash uint32, write bool, held Token) (Token, error) {
	return m.smart(hash, write, held, true)
}

// TryLockSmart is the non-blocking form of LockSmart.
func (m *Manager) TryLockSmart(hash uint32, write bool, held Token) (Token, error) {
	return m.smart(hash, write, held, false)
}

func (m *Manager) smart(hash uint32, write bool, held Token, blocking bool) (Token, error) {
	switch m.mode {
	case options.LockNone:
		return held, nil
	case options.LockExclusive:
		return m.lockExclusive(held, blocking)
	case options.LockPartitioned:
		return m.lockPartition(hash, held, blocking)
	case options.LockShared:
		if write {
			return m.lockExclusive(held, blocking)
		}
		return m.lockShared(held, blocking)
	default:
		return m.lockExclusive(held, blocking)
	}
}

// UnlockSmart releases whatever LockSmart/TryLockSmart acquired for the
// same (hash, write) pair, given the token it returned.
func (m *Manager) UnlockSmart(hash uint32, write bool, held Token) error {
	switch m.mode {
	case options.LockNone:
		return nil
	case options.LockExclusive:
		return m.Unlock(held)
	case options.LockPartitioned:
		return m.unlockPartition(hash, held)
	case options.LockShared:
		if write {
			return m.Unlock(held)
		}
		return m.UnlockShared(held)
	default:
		return m.Unlock(held)
	}
}

// IsLocked reports whether a holder in this process currently holds a lock,
// or whether any process holds an fcntl byte-range (partition) lock on the
// lock-state file. Exclusive and shared locks that another process holds
// through flock are not seen by the F_GETLK probe and are not reported.
func (m *Manager) IsLocked() bool {
	if m.mode == options.LockNone || m.closed.Load() {
		return false
	}

	if m.IsOwned() {
		return true
	}

	lk := unix.Flock_t{Type: unix.F_WRLCK, Whence: 0, Start: 0, Len: 0}
	if err := unix.FcntlFlock(m.file.Fd(), unix.F_GETLK, &lk); err != nil {
		return false
	}
	return lk.Type != unix.F_UNLCK
}

// IsOwned reports whether the calling process currently holds the lock
// (§4.7: "is_owned reports whether the calling process is a holder").
func (m *Manager) IsOwned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.exclusiveDepth > 0 || m.sharedCount > 0 {
		return true
	}
	for _, ps := range m.partitions {
		if ps.depth > 0 {
			return true
		}
	}
	return false
}

// Reset forcibly re-initializes the lock-state file's held regions. Unsafe
// while any process holds the lock (§4.7 lock_reset).
func Reset(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return pkgerrors.ClassifyFileOpenError(err, path, "lock file")
	}
	return f.Close()
}

// DeleteLockFiles removes the lock-state file. Only safe once every user
// of the database has stopped (§4.7 delete_lockfiles).
func DeleteLockFiles(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
