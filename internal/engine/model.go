// Package engine orchestrates the core database operations (C6, spec.md
// §4.6): it wires the lock manager (C7), the extendible-hash directory
// (C4), the single-page data store (C2/C3), the large-object spill store
// (C5), cache-mode eviction (C9), the optional backing-store plug-in (C10),
// and the stats/check walker (C11) behind one Store/Fetch/Delete/Iterate
// surface — the same coordinating role the teacher's internal/engine
// played over index/storage/compaction, generalized to every subsystem a
// pagekv handle owns.
package engine

import (
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/pagekv/internal/backingstore"
	"github.com/iamNilotpal/pagekv/internal/cache"
	"github.com/iamNilotpal/pagekv/internal/compaction"
	"github.com/iamNilotpal/pagekv/internal/directory"
	"github.com/iamNilotpal/pagekv/internal/lob"
	"github.com/iamNilotpal/pagekv/internal/lock"
	"github.com/iamNilotpal/pagekv/internal/stats"
	"github.com/iamNilotpal/pagekv/internal/storage"
	"github.com/iamNilotpal/pagekv/internal/window"
	"github.com/iamNilotpal/pagekv/pkg/options"
	"go.uber.org/zap"
)

// StoreMode selects the insert/overwrite semantics of Store (§4.6).
type StoreMode int

const (
	// StoreInsert fails if the key already exists (returns StoreExists).
	StoreInsert StoreMode = iota
	// StoreReplace inserts or overwrites.
	StoreReplace
	// StoreInsertDup always inserts a new entry, even for a key that
	// already has one or more mappings.
	StoreInsertDup
	// StoreModify overwrites, failing with NotFound if the key is absent.
	StoreModify
)

// StoreFlag modifies Store's behavior beyond its mode (§4.6).
type StoreFlag uint8

const (
	// StoreFlagReserve makes Store return, in StoreResult.Reserved, a
	// writable slice over the stored value bytes. The caller's bytes are
	// still copied into the page first.
	StoreFlagReserve StoreFlag = 1 << iota
	// StoreFlagCacheOnly skips the backing store entirely.
	StoreFlagCacheOnly
	// StoreFlagCacheModify writes through to the backing store but only
	// updates the cache side if the key is already cached.
	StoreFlagCacheModify
)

// StoreCode is the non-error result code Store returns alongside a nil
// error (§4.6: "Ok, Exists (non-error under INSERT; returned as a positive
// code)").
type StoreCode int

const (
	StoreOK StoreCode = iota
	StoreExists
)

// StoreResult is what Store returns on success, including the non-error
// Exists outcome.
type StoreResult struct {
	Code StoreCode
	// Slot is the index the entry occupies on its home page.
	Slot int
	// Reserved is a writable slice over the entry's stored value bytes on
	// its page when StoreFlagReserve was set (§4.6 RESERVE); it already
	// holds the bytes passed to Store. For a value spilled to a LOB chunk
	// it covers the LOB descriptor on the page, not the value itself.
	Reserved []byte
}

// FetchInfo mirrors struct mdbm_fetch_info: the cache-mode metadata
// alongside a fetched value (§4.9's access-counter/last-access-time, plus
// the clean and large-object bits).
type FetchInfo struct {
	AccessCount uint16
	LastAccess  uint32
	Clean       bool
	LargeObject bool
}

// Iterator is a reentrant cursor over every live entry in a database, in
// ascending data-page order and then slot order within a page (§3's
// MDBM_ITER (page-number, index-within-page) pair).
type Iterator struct {
	pages  []uint32
	pageAt int
	after  int
}

// DupIterator iterates every value stored under one key by StoreInsertDup,
// seeded to that key's home page (§4.6 fetch_dup). Duplicates always live
// on the same page after hashing, so a DupIterator never crosses pages.
type DupIterator struct {
	hash  uint32
	key   []byte
	after int
}

// Engine is the live, opened state of one pagekv database: every internal
// subsystem wired together behind the C6 core API.
type Engine struct {
	mu sync.Mutex // serializes this process's use of a single handle (§5).

	opts *options.Options
	log  *zap.SugaredLogger

	closed atomic.Bool

	store     *storage.Storage
	locks     *lock.Manager
	dir       *directory.Directory
	lobs      *lob.Store
	evictor   *cache.Evictor
	backing   *backingstore.BackingStore
	accum     *stats.Stats
	compactor *compaction.Compaction
	win       *window.Window

	hashID       options.HashID
	alignment    uint8
	spillSize    uint32
	largeObjects bool
	cacheMode    options.CacheMode

	shakeFn cache.ShakeFunc
	cleanFn cache.CleanFunc

	defaultIterMu sync.Mutex
	defaultIter   *Iterator

	// refs counts live handles (the original Engine plus every Dup of it)
	// sharing the subsystems above, so Close only tears them down once the
	// last handle releases them.
	refs *atomic.Int32
}

// Config carries everything Engine needs to open or create a database.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger

	// Backing, when non-nil, installs a backing-store plug-in (C10).
	// Engine supplies the CacheAccessor side itself.
	Backing backingstore.Provider

	// ShakeFunc, when non-nil, is invoked on a full page at max directory
	// shift before cache eviction or NoRoom (§4.9 shake).
	ShakeFunc cache.ShakeFunc

	// CleanFunc, when non-nil, backs Clean (§4.9 clean_func).
	CleanFunc cache.CleanFunc
}
