package errors

// LockError provides specialized error handling for the lock manager:
// exclusive, partitioned, and shared (MROW) locking over the shared
// lock-state file.
type LockError struct {
	*baseError

	// mode names the lock mode in effect (e.g. "exclusive", "partitioned",
	// "shared", "none").
	mode string

	// partition identifies which partition was targeted, for partitioned
	// locks; zero for non-partitioned modes.
	partition uint32

	// holderPID records the process that held or attempted the lock.
	holderPID int

	// operation names the lock operation in progress (e.g. "Lock",
	// "TryLock", "Unlock", "LockSmart").
	operation string
}

// NewLockError creates a new lock-specific error with the provided context.
func NewLockError(err error, code ErrorCode, msg string) *LockError {
	return &LockError{baseError: NewBaseError(err, code, msg)}
}

// WithMessage updates the error message while maintaining the LockError type.
func (le *LockError) WithMessage(msg string) *LockError {
	le.baseError.WithMessage(msg)
	return le
}

// WithCode sets the error code while preserving the LockError type.
func (le *LockError) WithCode(code ErrorCode) *LockError {
	le.baseError.WithCode(code)
	return le
}

// WithDetail adds contextual information while maintaining the LockError type.
func (le *LockError) WithDetail(key string, value any) *LockError {
	le.baseError.WithDetail(key, value)
	return le
}

// WithMode records which lock mode was in effect.
func (le *LockError) WithMode(mode string) *LockError {
	le.mode = mode
	return le
}

// WithPartition records which partition was targeted.
func (le *LockError) WithPartition(partition uint32) *LockError {
	le.partition = partition
	return le
}

// WithHolderPID records the process that held or attempted the lock.
func (le *LockError) WithHolderPID(pid int) *LockError {
	le.holderPID = pid
	return le
}

// WithOperation records what lock operation was being performed.
func (le *LockError) WithOperation(operation string) *LockError {
	le.operation = operation
	return le
}

// Mode returns the lock mode in effect.
func (le *LockError) Mode() string {
	return le.mode
}

// Partition returns the partition that was targeted.
func (le *LockError) Partition() uint32 {
	return le.partition
}

// HolderPID returns the process that held or attempted the lock.
func (le *LockError) HolderPID() int {
	return le.holderPID
}

// Operation returns the name of the lock operation that was running.
func (le *LockError) Operation() string {
	return le.operation
}

// NewLockModeMismatchError creates an error for a call made against a handle
// opened with an incompatible lock mode (e.g. calling a partitioned-lock API
// on a handle opened in exclusive mode).
func NewLockModeMismatchError(wantMode, haveMode string) *LockError {
	return NewLockError(nil, ErrorCodeLockModeMismatch, "lock call incompatible with open mode").
		WithMode(haveMode).
		WithDetail("requested_mode", wantMode)
}

// NewWouldBlockError creates an error for a try_lock variant that found the
// lock already held.
func NewWouldBlockError(mode string, holderPID int) *LockError {
	return NewLockError(nil, ErrorCodeWouldBlock, "lock currently held").
		WithMode(mode).
		WithHolderPID(holderPID).
		WithOperation("TryLock")
}

// NewLockStateCorruptedError creates an error for a lock-state file that
// failed its initialization handshake or has an inconsistent holder count.
func NewLockStateCorruptedError(operation string, cause error) *LockError {
	return NewLockError(cause, ErrorCodeLockStateCorrupted, "lock state file corrupted").
		WithOperation(operation).
		WithDetail("recovery", "mdbm_lock_reset equivalent required")
}
