// Package compaction reclaims space tombstoned deletes leave behind: packing
// each DATA page's live entries back together, and sweeping the whole file
// either on demand or on a ticker. Chunk-level coalescing of adjacent FREE
// chunks already happens eagerly in internal/storage.FreeChunk; this package
// is the maintenance pass the teacher's engine referenced but never built.
package compaction

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/iamNilotpal/pagekv/internal/storage"
	"go.uber.org/zap"
)

// Compaction runs page-compaction sweeps over a database's DATA chunks.
type Compaction struct {
	mu        sync.Mutex
	storage   *storage.Storage
	interval  time.Duration
	alignment uint8
	log       *zap.SugaredLogger

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// Config carries what Compaction needs to operate.
type Config struct {
	Storage *storage.Storage

	// Interval is how often the background loop runs. A zero or negative
	// value disables the background loop; on-demand Run calls still work.
	Interval time.Duration

	// Alignment must match the database's configured key/value alignment
	// (pkg/options.PageOptions.Alignment) so Compact repacks entries the
	// same way Insert laid them out.
	Alignment uint8

	Logger *zap.SugaredLogger
}

// Stats summarizes one compaction sweep.
type Stats struct {
	PagesScanned   int
	PagesCompacted int
	BytesReclaimed uint32
}
