package errors

// ErrorCode represents a standardized way to categorize different types of errors.
type ErrorCode string

// Base error codes represent the fundamental categories of failures that can
// occur across any software system. These codes provide the foundation layer
// of error classification.
const (
	// ErrorCodeIO represents failures in input/output operations across any
	// system boundary: mmap/msync/fsync failures, short reads or writes against
	// the backing file, or failures opening the lock-state file.
	ErrorCodeIO ErrorCode = "IO_ERROR"

	// ErrorCodeInvalidInput represents client-side errors where the provided
	// data doesn't meet the system's requirements or constraints: zero-length
	// keys, oversized keys/values, bad open flags, an incompatible mode change.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrorCodeInternal represents unexpected system failures that don't fit
	// into other categories: invariant violations, assertion failures.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"

	// ErrorCodeNotFound represents a fetch/modify/delete miss on a key that
	// does not exist in the database.
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrorCodeExists represents an INSERT against a key that already exists.
	// This is a non-error, non-negative result code at the API boundary, but
	// it is still classified through the same taxonomy so callers can use
	// errors.Is/As uniformly.
	ErrorCodeExists ErrorCode = "ALREADY_EXISTS"

	// ErrorCodeNoRoom represents a page that stays full after every eviction
	// and split strategy has been exhausted, or a limit_pages ceiling that
	// would be exceeded (EFBIG).
	ErrorCodeNoRoom ErrorCode = "NO_ROOM"

	// ErrorCodeReplaceLost represents REPLACE removing the old entry but
	// failing to fit the new value (EOVERFLOW) — a documented non-atomicity.
	ErrorCodeReplaceLost ErrorCode = "REPLACE_LOST"

	// ErrorCodeLockFailed represents corrupted lock state or a call made
	// without the ownership the operation requires.
	ErrorCodeLockFailed ErrorCode = "LOCK_FAILED"

	// ErrorCodeUnsupported represents an operation unavailable for the
	// current on-disk format or access mode (e.g. page-locking a windowed
	// database, compress-tree on a v3-equivalent format).
	ErrorCodeUnsupported ErrorCode = "UNSUPPORTED"
)

// Storage-specific error codes extend the base error taxonomy to handle the
// unique failure modes of the memory-mapped, chunked backing file.
const (
	// ErrorCodeHeaderCorrupted indicates the file header's magic number,
	// page size, or other invariant field failed validation on open.
	ErrorCodeHeaderCorrupted ErrorCode = "HEADER_CORRUPTED"

	// ErrorCodeChunkCorrupted indicates a chunk's length/prev-length/type
	// fields are inconsistent with a forward or backward walk of the file.
	ErrorCodeChunkCorrupted ErrorCode = "CHUNK_CORRUPTED"

	// ErrorCodeHeaderReadFailure occurs when the system cannot read the
	// header page of the backing file.
	ErrorCodeHeaderReadFailure ErrorCode = "HEADER_READ_FAILURE"

	// ErrorCodePayloadReadFailure indicates problems reading page/chunk
	// content after the header was read successfully.
	ErrorCodePayloadReadFailure ErrorCode = "PAYLOAD_READ_FAILURE"

	// ErrorCodePermissionDenied indicates insufficient permissions to access
	// the backing file or its lock-state file.
	ErrorCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrorCodeDiskFull indicates growth of the backing file failed because
	// the underlying device ran out of space (ENOSPC).
	ErrorCodeDiskFull ErrorCode = "DISK_FULL"

	// ErrorCodeFilesystemReadonly indicates the filesystem backing the
	// database file is mounted read-only.
	ErrorCodeFilesystemReadonly ErrorCode = "FILESYSTEM_READONLY"
)

// Directory-specific error codes cover the extendible-hash directory (C4).
const (
	// ErrorCodeDirectoryCorrupted indicates the bitmap tree violates an
	// invariant: a leaf mapping to more than one data chunk, or a bit set
	// past max_shift.
	ErrorCodeDirectoryCorrupted ErrorCode = "DIRECTORY_CORRUPTED"

	// ErrorCodeMaxShiftReached indicates a split was attempted on a node
	// already at max_shift; the caller must fall back to oversized pages,
	// shake, or cache eviction.
	ErrorCodeMaxShiftReached ErrorCode = "MAX_SHIFT_REACHED"

	// ErrorCodeDirLimitReached indicates limit_dir_size would be exceeded.
	ErrorCodeDirLimitReached ErrorCode = "DIR_LIMIT_REACHED"
)

// Lock-specific error codes cover the lock manager (C7).
const (
	// ErrorCodeLockStateCorrupted indicates the lock-state file failed its
	// initialization handshake or a holder count underflowed.
	ErrorCodeLockStateCorrupted ErrorCode = "LOCK_STATE_CORRUPTED"

	// ErrorCodeLockModeMismatch indicates a partitioned/shared/exclusive
	// call was made against a handle opened with an incompatible lock mode.
	ErrorCodeLockModeMismatch ErrorCode = "LOCK_MODE_MISMATCH"

	// ErrorCodeWouldBlock is returned by try_* variants when the lock is
	// currently held by another holder.
	ErrorCodeWouldBlock ErrorCode = "WOULD_BLOCK"
)

// Cache-specific error codes cover cache-mode eviction and the backing
// store plug-in (C9/C10).
const (
	// ErrorCodeBackingStoreFailure indicates the plug-in's fetch/store/
	// delete hook returned an error while servicing a cache miss or
	// write-through.
	ErrorCodeBackingStoreFailure ErrorCode = "BACKING_STORE_FAILURE"

	// ErrorCodeEvictionExhausted indicates no further candidates remain to
	// evict and the page is still full.
	ErrorCodeEvictionExhausted ErrorCode = "EVICTION_EXHAUSTED"
)
