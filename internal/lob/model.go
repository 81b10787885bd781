// Package lob implements the large-object spill store (C5): values larger
// than a database's spill threshold are written into their own chunk
// instead of living on a data page, which only keeps a small descriptor
// (first page number, exact byte length, and the LARGE_OBJECT flag).
package lob

import (
	"sync"

	"github.com/iamNilotpal/pagekv/internal/storage"
	"go.uber.org/zap"
)

// Store owns LOB chunk allocation and the header written at the start of
// every LOB chunk.
type Store struct {
	mu    sync.RWMutex
	store *storage.Storage
	log   *zap.SugaredLogger
}

// Config carries what Store needs to operate.
type Config struct {
	Store  *storage.Storage
	Logger *zap.SugaredLogger
}

// Descriptor is what a home page stores in place of an oversized value:
// enough to find and validate the spilled bytes without re-deriving them.
type Descriptor struct {
	PageNumber uint32
	Length     uint32
	Pages      uint32
}
