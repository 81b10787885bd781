package errors

// StorageError is a specialized error type for storage-related operations:
// failures reading, writing, growing, or syncing the memory-mapped backing
// file and its fixed-size pages and chunks.
type StorageError struct {
	*baseError
	pageNumber uint32 // Which page was being accessed when the error occurred.
	offset     int    // Byte offset within the file where the problem happened.
	fileName   string // Name of the file that caused the issue.
	path       string // Path of the file that caused the issue.
}

// NewStorageError creates a new storage-specific error.
func NewStorageError(err error, code ErrorCode, msg string) *StorageError {
	return &StorageError{baseError: NewBaseError(err, code, msg)}
}

// WithPageNumber sets which page was involved in the error.
func (se *StorageError) WithPageNumber(pageNumber uint32) *StorageError {
	se.pageNumber = pageNumber
	return se
}

// WithOffset records the byte position where the error occurred.
func (se *StorageError) WithOffset(offset int) *StorageError {
	se.offset = offset
	return se
}

// WithFileName captures which file was being processed when the error occurred.
func (se *StorageError) WithFileName(fileName string) *StorageError {
	se.fileName = fileName
	return se
}

// WithPath captures which path was being processed when the error occurred.
func (se *StorageError) WithPath(path string) *StorageError {
	se.path = path
	return se
}

// PageNumber returns the page number where the error occurred.
func (se *StorageError) PageNumber() uint32 {
	return se.pageNumber
}

// Offset returns the byte offset within the file where the error happened.
// Combined with PageNumber, this gives you the exact location of the problem.
func (se *StorageError) Offset() int {
	return se.offset
}

// FileName returns the name of the file that was being processed.
func (se *StorageError) FileName() string {
	return se.fileName
}

// Path returns the path of the file that was being processed.
func (se *StorageError) Path() string {
	return se.path
}
