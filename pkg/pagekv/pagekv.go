// Package pagekv provides a memory-mapped, fixed-page key/value data store
// built around an extendible-hash directory, inspired by MDBM. It combines
// a single mmap'd data file (page/chunk layout) with an in-memory directory
// bitmap to give O(1) lookup without an external index, optional large-object
// spilling, multi-process locking, windowed-mode bounded memory use, and
// cache-mode eviction with an optional backing-store plug-in.
package pagekv

import (
	"context"

	"github.com/iamNilotpal/pagekv/internal/backingstore"
	"github.com/iamNilotpal/pagekv/internal/cache"
	"github.com/iamNilotpal/pagekv/internal/compaction"
	"github.com/iamNilotpal/pagekv/internal/engine"
	"github.com/iamNilotpal/pagekv/internal/stats"
	"github.com/iamNilotpal/pagekv/pkg/logger"
	"github.com/iamNilotpal/pagekv/pkg/options"
)

// StoreMode selects Store's insert/overwrite semantics.
type StoreMode = engine.StoreMode

// StoreFlag modifies Store's behavior beyond its mode.
type StoreFlag = engine.StoreFlag

// StoreResult is what Store returns on success.
type StoreResult = engine.StoreResult

// FetchInfo is the cache-mode metadata returned alongside a fetched value.
type FetchInfo = engine.FetchInfo

// Iterator is a reentrant cursor over every live entry.
type Iterator = engine.Iterator

// DupIterator iterates every value stored under one key.
type DupIterator = engine.DupIterator

const (
	StoreInsert    = engine.StoreInsert
	StoreReplace   = engine.StoreReplace
	StoreInsertDup = engine.StoreInsertDup
	StoreModify    = engine.StoreModify
)

const (
	StoreFlagReserve     = engine.StoreFlagReserve
	StoreFlagCacheOnly   = engine.StoreFlagCacheOnly
	StoreFlagCacheModify = engine.StoreFlagCacheModify
)

const (
	StoreOK     = engine.StoreOK
	StoreExists = engine.StoreExists
)

// DB is the primary entry point for interacting with a pagekv database: it
// encapsulates the core engine handling read/write operations and the
// options applied to this instance.
type DB struct {
	engine  *engine.Engine
	options *options.Options
}

// Config carries the optional extension points Open accepts beyond the
// functional options: a backing-store provider and the cache-mode shake/
// clean callbacks.
type Config struct {
	// Backing, when non-nil, installs a backing-store plug-in behind this
	// database's cache.
	Backing backingstore.Provider

	// ShakeFunc is invoked on a full page once the directory can no longer
	// split, to manually evict entries (§4.9 shake).
	ShakeFunc cache.ShakeFunc

	// CleanFunc backs CleanAll, marking entries clean a page at a time.
	CleanFunc cache.CleanFunc
}

// Open creates or opens a pagekv database under the options' DataDir,
// applying opts over the library defaults. service names the logger the way
// the teacher's NewInstance did.
func Open(ctx context.Context, service string, opts ...options.OptionFunc) (*DB, error) {
	return OpenWithConfig(ctx, service, nil, opts...)
}

// OpenWithConfig is Open plus a Config for wiring a backing store and/or
// cache-mode callbacks that have no functional-option form.
func OpenWithConfig(ctx context.Context, service string, cfg *Config, opts ...options.OptionFunc) (*DB, error) {
	log := logger.New(service)

	defaultOpts := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&defaultOpts)
	}

	econf := &engine.Config{Options: &defaultOpts, Logger: log}
	if cfg != nil {
		econf.Backing = cfg.Backing
		econf.ShakeFunc = cfg.ShakeFunc
		econf.CleanFunc = cfg.CleanFunc
	}

	eng, err := engine.New(ctx, econf)
	if err != nil {
		return nil, err
	}
	return &DB{engine: eng, options: &defaultOpts}, nil
}

// Store inserts or overwrites key/value according to mode and flags.
func (db *DB) Store(key, value []byte, mode StoreMode, flags StoreFlag) (StoreResult, error) {
	return db.engine.Store(key, value, mode, flags)
}

// Fetch retrieves the value stored under key.
func (db *DB) Fetch(key []byte) ([]byte, error) {
	return db.engine.Fetch(key)
}

// FetchInfo retrieves the value stored under key alongside its cache-mode
// metadata (mdbm_fetch_info equivalent).
func (db *DB) FetchInfo(key []byte) ([]byte, FetchInfo, error) {
	return db.engine.FetchInfoFor(key)
}

// FetchDup seeds an iterator over every value stored under key by
// StoreInsertDup.
func (db *DB) FetchDup(key []byte) *DupIterator {
	return db.engine.FetchDup(key)
}

// NextDup advances it and returns the next duplicate value for its key.
func (db *DB) NextDup(it *DupIterator) ([]byte, bool, error) {
	return db.engine.NextDup(it)
}

// Delete removes key.
func (db *DB) Delete(key []byte) error {
	return db.engine.Delete(key)
}

// Iterate returns a fresh reentrant cursor over every live entry.
func (db *DB) Iterate() *Iterator {
	return db.engine.NewIterator()
}

// Next advances it and returns the next live entry, in ascending page order.
func (db *DB) Next(it *Iterator) (key, value []byte, ok bool, err error) {
	return db.engine.Next(it)
}

// First rewinds it to the start of the iteration order and returns the
// first entry.
func (db *DB) First(it *Iterator) (key, value []byte, ok bool, err error) {
	return db.engine.First(it)
}

// DefaultIterator returns the handle-wide non-reentrant cursor shared by
// callers using the First/Next style instead of their own Iterator.
func (db *DB) DefaultIterator() *Iterator {
	return db.engine.DefaultIterator()
}

// ResetDefaultIterator rewinds DefaultIterator's cursor.
func (db *DB) ResetDefaultIterator() {
	db.engine.ResetDefaultIterator()
}

// PreSplit pre-creates data pages ahead of the first writes, avoiding
// incremental splits during an initial bulk load.
func (db *DB) PreSplit(n uint32) error {
	return db.engine.PreSplit(n)
}

// Limit raises the directory's maximum split depth so it can hold maxPages
// data pages. It never lowers the depth, so it does not cap a database
// below its current maximum.
func (db *DB) Limit(maxPages uint32) error {
	return db.engine.Limit(maxPages)
}

// Clean scans pageNumber's live entries with fn, marking CLEAN the ones it
// approves.
func (db *DB) Clean(pageNumber uint32, fn cache.CleanFunc) (int, error) {
	return db.engine.Clean(pageNumber, fn)
}

// CleanAll runs Clean over every data page using the CleanFunc installed at
// open time, if any.
func (db *DB) CleanAll() (int, error) {
	return db.engine.CleanAll()
}

// Compact runs an on-demand compaction sweep across every data chunk,
// reclaiming tombstoned slot space.
func (db *DB) Compact() (compaction.Stats, error) {
	return db.engine.Compact()
}

// Stats returns a point-in-time snapshot of operation counters.
func (db *DB) Stats() stats.Counters {
	return db.engine.Stats()
}

// FetchLatency returns the fetch-operation latency histogram, zero if
// WithStatOperations was not set at open time.
func (db *DB) FetchLatency() stats.LatencySnapshot {
	return db.engine.FetchLatency()
}

// StoreLatency returns the store-operation latency histogram.
func (db *DB) StoreLatency() stats.LatencySnapshot {
	return db.engine.StoreLatency()
}

// DeleteLatency returns the delete-operation latency histogram.
func (db *DB) DeleteLatency() stats.LatencySnapshot {
	return db.engine.DeleteLatency()
}

// Check walks the database up to level, returning every invariant violation
// found.
func (db *DB) Check(level stats.CheckLevel, verbose bool) stats.CheckResult {
	return db.engine.Check(level, verbose)
}

// GetSize returns the backing file's current size in bytes.
func (db *DB) GetSize() uint64 { return db.engine.GetSize() }

// GetPageSize returns the fixed page size in bytes.
func (db *DB) GetPageSize() uint32 { return db.engine.GetPageSize() }

// GetVersion returns the on-disk format version.
func (db *DB) GetVersion() (uint32, error) { return db.engine.GetVersion() }

// Sync flushes dirty mapped pages to disk.
func (db *DB) Sync() error {
	return db.engine.Sync()
}

// Close shuts down the database, releasing every subsystem it owns.
// A second call does nothing and returns an error.
func (db *DB) Close() error {
	return db.engine.Close()
}

// Dup returns a new handle sharing this database's mmap, directory, and
// lock state but holding its own iterator cursor — and, when a backing
// store is configured, its own independent provider handle.
func (db *DB) Dup() (*DB, error) {
	eng, err := db.engine.Dup()
	if err != nil {
		return nil, err
	}
	return &DB{engine: eng, options: db.options}, nil
}
