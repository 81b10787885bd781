package errors

// CacheError provides specialized error handling for cache-mode eviction
// (LFU/LRU/GDSF) and the backing-store plug-in that services misses and
// write-through stores.
type CacheError struct {
	*baseError

	// key identifies which key was being evicted, fetched, or stored
	// through the backing store when the error occurred.
	key string

	// pageNumber identifies the data page being shaken for room.
	pageNumber uint32

	// policy names the eviction policy in effect ("lfu", "lru", "gdsf").
	policy string

	// operation names the cache operation in progress (e.g. "Shake",
	// "Clean", "BackingFetch", "BackingStore").
	operation string
}

// NewCacheError creates a new cache-specific error with the provided context.
func NewCacheError(err error, code ErrorCode, msg string) *CacheError {
	return &CacheError{baseError: NewBaseError(err, code, msg)}
}

// WithMessage updates the error message while maintaining the CacheError type.
func (ce *CacheError) WithMessage(msg string) *CacheError {
	ce.baseError.WithMessage(msg)
	return ce
}

// WithCode sets the error code while preserving the CacheError type.
func (ce *CacheError) WithCode(code ErrorCode) *CacheError {
	ce.baseError.WithCode(code)
	return ce
}

// WithDetail adds contextual information while maintaining the CacheError type.
func (ce *CacheError) WithDetail(key string, value any) *CacheError {
	ce.baseError.WithDetail(key, value)
	return ce
}

// WithKey records which key was involved in the cache operation.
func (ce *CacheError) WithKey(key string) *CacheError {
	ce.key = key
	return ce
}

// WithPageNumber records which data page was being shaken for room.
func (ce *CacheError) WithPageNumber(pageNumber uint32) *CacheError {
	ce.pageNumber = pageNumber
	return ce
}

// WithPolicy records which eviction policy was in effect.
func (ce *CacheError) WithPolicy(policy string) *CacheError {
	ce.policy = policy
	return ce
}

// WithOperation records what cache operation was being performed.
func (ce *CacheError) WithOperation(operation string) *CacheError {
	ce.operation = operation
	return ce
}

// Key returns the key involved in the cache operation.
func (ce *CacheError) Key() string {
	return ce.key
}

// PageNumber returns the data page that was being shaken for room.
func (ce *CacheError) PageNumber() uint32 {
	return ce.pageNumber
}

// Policy returns the eviction policy that was in effect.
func (ce *CacheError) Policy() string {
	return ce.policy
}

// Operation returns the name of the cache operation that was running.
func (ce *CacheError) Operation() string {
	return ce.operation
}

// NewEvictionExhaustedError creates an error for a page that remains full
// after every eviction candidate has been tried.
func NewEvictionExhaustedError(pageNumber uint32, policy string) *CacheError {
	return NewCacheError(nil, ErrorCodeEvictionExhausted, "no eviction candidates remain").
		WithPageNumber(pageNumber).
		WithPolicy(policy).
		WithOperation("Shake")
}

// NewBackingStoreFailureError creates an error for a plug-in hook that
// returned an error while servicing a miss or write-through.
func NewBackingStoreFailureError(operation, key string, cause error) *CacheError {
	return NewCacheError(cause, ErrorCodeBackingStoreFailure, "backing store operation failed").
		WithOperation(operation).
		WithKey(key)
}
