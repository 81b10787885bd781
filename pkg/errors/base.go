package errors

// baseError is the error wrapping pattern every domain error type in this
// package embeds: a cause, a message, a code, free-form details, plus which
// C-numbered subsystem (directory, lock, cache, storage, ...) raised it.
type baseError struct {
	cause     error
	message   string
	code      ErrorCode
	component string
	details   map[string]any
}

// NewBaseError creates a new baseError with the given underlying error and message.
func NewBaseError(err error, code ErrorCode, msg string) *baseError {
	return &baseError{cause: err, code: code, message: msg}
}

// WithMessage updates the error message.
func (be *baseError) WithMessage(msg string) *baseError {
	be.message = msg
	return be
}

// WithCode sets the error code for this error.
func (be *baseError) WithCode(code ErrorCode) *baseError {
	be.code = code
	return be
}

// WithComponent records which subsystem raised the error (e.g. "directory",
// "lock", "cache", "storage", "lob", "engine"), independent of the concrete
// Go error type, since a StorageError can originate from more than one
// caller's subsystem.
func (be *baseError) WithComponent(component string) *baseError {
	be.component = component
	return be
}

// WithDetail adds contextual information to help with debugging and logging.
// The details map is lazily initialized to avoid allocating when not needed.
func (be *baseError) WithDetail(key string, value any) *baseError {
	if be.details == nil {
		be.details = make(map[string]any)
	}
	be.details[key] = value
	return be
}

// Error implements the error interface.
func (b *baseError) Error() string {
	return b.message
}

// Unwrap enables errors.Is/errors.As to see through the wrapped cause.
func (b *baseError) Unwrap() error {
	return b.cause
}

// Code returns the error code.
func (b *baseError) Code() ErrorCode {
	return b.code
}

// Component returns which subsystem raised the error.
func (b *baseError) Component() string {
	return b.component
}

// Details returns the additional context stored with this error. The
// returned map is the internal one, not a copy.
func (b *baseError) Details() map[string]any {
	return b.details
}
