package storage

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/pagekv/pkg/options"
	"go.uber.org/zap"
)

// Storage owns the single memory-mapped backing file (§3/§6): its page 0
// header, the mapped region covering every page, and the in-memory free
// lists rebuilt by walking chunk headers at open time (§4.3).
//
// Unlike a segment-rotated log, a pagekv database is one file that only
// ever grows; Storage's job is mapping/unmapping that file and handing out
// fixed-size page views into it, not choosing which file to write next.
type Storage struct {
	mu sync.RWMutex

	file   *os.File // the backing database file.
	data   []byte   // the current mmap'd region, length == sizePages*PageSize.
	path   string   // full path to the backing file.
	closed atomic.Bool

	pageSize  uint32 // fixed page size in bytes, from the header.
	sizePages uint32 // file size in pages (the high-water mark).

	options *options.Options
	log     *zap.SugaredLogger

	freeLists map[uint32][]uint32 // page-count bucket -> free chunk start pages.
}

// Config carries everything Storage needs to bootstrap or reopen a
// database file.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}
