// Package window implements bounded virtual-window access (C8): instead
// of mapping an entire database file at once, a fixed-size arena of slots
// holds only the pages currently in use, evicting the least-recently-used
// slot to make room for a miss.
package window

import (
	"container/list"
	"os"
	"sync"

	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"

	"go.uber.org/zap"
)

// ErrPageLockUnsupported is returned by callers attempting to page-lock
// under windowed mode; §4.8 forbids it since slots are remapped under the
// caller's feet.
var ErrPageLockUnsupported = pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeUnsupported, "page locking is not supported in windowed mode")

// slot is one mapped span of contiguous file pages.
type slot struct {
	pageNumber uint32
	pages      uint32
	data       []byte
}

// Window is a fixed-capacity, LRU-evicted set of slots mapping spans of a
// larger backing file into process memory on demand.
type Window struct {
	mu sync.Mutex

	file     *os.File
	pageSize uint32

	// slotCount is the window's total capacity in pages.
	slotCount uint32
	used      uint32

	// order tracks recency, MRU at the front; index resolves a span's
	// starting page number to its list element.
	order *list.List
	index map[uint32]*list.Element

	log *zap.SugaredLogger
}

// Config carries what Window needs to reserve its virtual range.
type Config struct {
	File     *os.File
	PageSize uint32

	// Size is the total window size in bytes; must be >= 2*PageSize and a
	// multiple of the system page size (§4.8).
	Size uint32

	Logger *zap.SugaredLogger
}
