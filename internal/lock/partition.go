package lock

import (
	"errors"

	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"
	"github.com/iamNilotpal/pagekv/pkg/options"
	"golang.org/x/sys/unix"

	"github.com/iamNilotpal/pagekv/internal/pagehash"
)

// partitionOf resolves a key's hash to one of the manager's partitions
// (§4.1 partition_of).
func (m *Manager) partitionOf(hash uint32) uint32 {
	return pagehash.PartitionOf(hash, m.partitionCount)
}

// lockPartition acquires the byte-range lock for hash's partition, one
// independent advisory lock per partition within the single lock-state
// file (§4.7 plock/try_plock). Each partition has its own in-process gate,
// so contention on different partitions never blocks each other, and two
// different holders contending for the same partition genuinely block
// instead of riding a bare depth counter.
func (m *Manager) lockPartition(hash uint32, held Token, blocking bool) (Token, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	if m.mode == options.LockNone {
		return held, nil
	}

	partition := m.partitionOf(hash)
	ps := m.partitions[partition]

	m.mu.Lock()
	if held != 0 && held == ps.token && ps.depth > 0 {
		ps.depth++
		tok := ps.token
		m.mu.Unlock()
		return tok, nil
	}
	m.mu.Unlock()

	if blocking {
		ps.gate.Lock()
	} else if !ps.gate.TryLock() {
		return 0, pkgerrors.NewLockError(nil, pkgerrors.ErrorCodeWouldBlock, "lock would block").
			WithMode("partitioned").WithPartition(partition).WithOperation("TryPLock")
	}

	cmd := unix.F_SETLKW
	if !blocking {
		cmd = unix.F_SETLK
	}

	lk := unix.Flock_t{
		Type:   unix.F_WRLCK,
		Whence: 0,
		Start:  int64(partition),
		Len:    1,
	}
	if err := unix.FcntlFlock(m.file.Fd(), cmd, &lk); err != nil {
		ps.gate.Unlock()
		return 0, m.lockErr(err, "PLock").WithMode("partitioned").WithPartition(partition)
	}

	tok := m.newToken()
	m.mu.Lock()
	ps.token = tok
	ps.depth = 1
	m.mu.Unlock()
	return tok, nil
}

// unlockPartition releases one level of nesting that held identifies on
// hash's partition lock.
func (m *Manager) unlockPartition(hash uint32, held Token) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if m.mode == options.LockNone {
		return nil
	}

	partition := m.partitionOf(hash)
	ps := m.partitions[partition]

	m.mu.Lock()
	if held == 0 || ps.depth == 0 || held != ps.token {
		m.mu.Unlock()
		return pkgerrors.NewLockError(nil, pkgerrors.ErrorCodeLockFailed, "punlock called without a matching plock").
			WithMode("partitioned").WithPartition(partition).WithOperation("PUnlock")
	}
	ps.depth--
	if ps.depth > 0 {
		m.mu.Unlock()
		return nil
	}
	ps.token = 0
	m.mu.Unlock()

	lk := unix.Flock_t{
		Type:   unix.F_UNLCK,
		Whence: 0,
		Start:  int64(partition),
		Len:    1,
	}
	err := unix.FcntlFlock(m.file.Fd(), unix.F_SETLK, &lk)
	ps.gate.Unlock()
	if err != nil {
		return m.lockErr(err, "PUnlock").WithMode("partitioned").WithPartition(partition)
	}
	return nil
}

// PLock acquires the exclusive lock for the partition owning hash,
// blocking indefinitely, and returns a Token a nested PLock or PUnlock
// must present.
func (m *Manager) PLock(hash uint32, held Token) (Token, error) {
	return m.lockPartition(hash, held, true)
}

// TryPLock is the non-blocking form of PLock.
func (m *Manager) TryPLock(hash uint32, held Token) (Token, error) {
	return m.lockPartition(hash, held, false)
}

// PUnlock releases one level of nesting that held identifies on hash's
// partition lock.
func (m *Manager) PUnlock(hash uint32, held Token) error { return m.unlockPartition(hash, held) }

func (m *Manager) lockErr(err error, operation string) *pkgerrors.LockError {
	code := pkgerrors.ErrorCodeLockFailed
	if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
		code = pkgerrors.ErrorCodeWouldBlock
	}
	return pkgerrors.NewLockError(err, code, "lock operation failed").WithOperation(operation)
}
