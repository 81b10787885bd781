package engine

import (
	stdErrors "errors"
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
	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"
	"github.com/iamNilotpal/pagekv/pkg/options"

	"go.uber.org/multierr"

	"context"
)

// ErrEngineClosed is returned when attempting to perform operations on a
// closed engine.
var ErrEngineClosed = stdErrors.New("operation failed: cannot access closed engine")

// ErrCompressUnsupported is returned by administrative callers asking for
// mdbm_compress_tree-equivalent behavior; the format this port targets
// keeps that operation an error return.
var ErrCompressUnsupported = stdErrors.New("operation failed: compress-tree is not supported on this format")

// coder is satisfied by every pkg/errors domain error type, letting this
// package branch on Code() without importing each concrete type.
type coder interface{ Code() pkgerrors.ErrorCode }

func codeOf(err error) (pkgerrors.ErrorCode, bool) {
	var c coder
	if stdErrors.As(err, &c) {
		return c.Code(), true
	}
	return "", false
}

func hasCode(err error, code pkgerrors.ErrorCode) bool {
	c, ok := codeOf(err)
	return ok && c == code
}

// New opens or creates a database and wires every subsystem described in
// spec.md §2's data-flow: lock manager, storage, directory, large-object
// store, cache evictor, optional backing store, stats, compaction, and
// (when configured) the windowed slot table.
func New(ctx context.Context, config *Config) (*Engine, error) {
	if config == nil || config.Options == nil || config.Logger == nil {
		return nil, pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeInvalidInput, "engine configuration is required").
			WithField("config").WithRule("required").WithComponent("engine")
	}
	opts := config.Options

	store, err := storage.New(&storage.Config{Options: opts, Logger: config.Logger})
	if err != nil {
		return nil, err
	}

	header, err := store.Header()
	if err != nil {
		store.Close()
		return nil, err
	}

	locks, err := lock.New(&lock.Config{
		Path:           lock.LockPathFor(store.Path()),
		Mode:           opts.Lock.Mode,
		PartitionCount: opts.Lock.PartitionCount,
		Logger:         config.Logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	dir, err := directory.New(ctx, &directory.Config{
		Store: store, Logger: config.Logger, MinShift: opts.Page.MinShift, MaxShift: opts.Page.MaxShift,
	})
	if err != nil {
		locks.Close()
		store.Close()
		return nil, err
	}

	lobs, err := lob.New(&lob.Config{Store: store, Logger: config.Logger})
	if err != nil {
		dir.Close()
		locks.Close()
		store.Close()
		return nil, err
	}

	var evictor *cache.Evictor
	if opts.Cache.Mode != options.CacheNone {
		evictor = cache.New(&cache.Config{Mode: opts.Cache.Mode, EvictCleanFirst: opts.Cache.EvictCleanFirst, Logger: config.Logger})
	}

	accum := stats.New(&stats.Config{RecordLatency: opts.StatOperations, Logger: config.Logger})

	compactor := compaction.New(&compaction.Config{
		Storage: store, Interval: opts.CompactInterval, Alignment: opts.Page.Alignment, Logger: config.Logger,
	})

	eng := &Engine{
		opts:         opts,
		log:          config.Logger,
		store:        store,
		locks:        locks,
		dir:          dir,
		lobs:         lobs,
		evictor:      evictor,
		accum:        accum,
		compactor:    compactor,
		hashID:       header.HashID,
		alignment:    opts.Page.Alignment,
		spillSize:    header.SpillSize,
		largeObjects: header.LargeObjects,
		cacheMode:    opts.Cache.Mode,
		shakeFn:      config.ShakeFunc,
		cleanFn:      config.CleanFunc,
		refs:         new(atomic.Int32),
	}
	eng.refs.Store(1)

	if opts.Window.Enabled {
		win, err := window.New(&window.Config{
			File: store.File(), PageSize: store.PageSize(), Size: uint32(opts.Window.Size), Logger: config.Logger,
		})
		if err != nil {
			dir.Close()
			locks.Close()
			store.Close()
			return nil, err
		}
		eng.win = win
	}

	if config.Backing != nil {
		bs, err := backingstore.New(&backingstore.Config{
			Provider: config.Backing, Cache: cacheAdapter{eng: eng}, Logger: config.Logger,
		})
		if err != nil {
			if eng.win != nil {
				eng.win.Close()
			}
			dir.Close()
			locks.Close()
			store.Close()
			return nil, err
		}
		eng.backing = bs
	}

	compactor.Start(ctx)

	config.Logger.Infow("engine opened", "dataDir", opts.DataDir, "pageSize", store.PageSize())
	return eng, nil
}

// Close shuts down every subsystem this engine owns. A second call does
// nothing and returns ErrEngineClosed. On a Dup'd handle,
// the shared subsystems (store, directory, locks, compactor, window) are
// only torn down once every handle sharing them has closed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	var err error
	if e.backing != nil {
		err = multierr.Append(err, e.backing.Close())
	}

	if e.refs.Add(-1) > 0 {
		return err
	}

	e.compactor.Stop()
	if e.win != nil {
		err = multierr.Append(err, e.win.Close())
	}
	err = multierr.Append(err, e.dir.Close())
	err = multierr.Append(err, e.locks.Close())
	err = multierr.Append(err, e.store.Close())

	return err
}

// Dup returns a new handle sharing this engine's storage, directory, lock
// manager, and cache state but holding its own iterator cursor and, when a
// backing store is configured, its own independent provider handle
// (mdbm_dup_handle's documented rationale: save the mmap setup cost of a
// second open while keeping each handle's iteration state private).
func (e *Engine) Dup() (*Engine, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	var backing *backingstore.BackingStore
	if e.backing != nil {
		b, err := e.backing.Dup()
		if err != nil {
			return nil, err
		}
		backing = b
	}

	e.refs.Add(1)
	dup := &Engine{
		opts:         e.opts,
		log:          e.log,
		store:        e.store,
		locks:        e.locks,
		dir:          e.dir,
		lobs:         e.lobs,
		evictor:      e.evictor,
		backing:      backing,
		accum:        e.accum,
		compactor:    e.compactor,
		win:          e.win,
		hashID:       e.hashID,
		alignment:    e.alignment,
		spillSize:    e.spillSize,
		largeObjects: e.largeObjects,
		cacheMode:    e.cacheMode,
		shakeFn:      e.shakeFn,
		cleanFn:      e.cleanFn,
		refs:         e.refs,
	}
	return dup, nil
}

// Sync flushes dirty mapped pages to disk.
func (e *Engine) Sync() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	return e.store.Sync()
}

// PreSplit pre-creates data pages ahead of the first writes (§4.4 pre_split).
func (e *Engine) PreSplit(n uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dir.PreSplit(n)
}

// Limit raises the directory's maximum split depth to cover maxPages leaf
// pages; it never lowers it (§4.4 limit).
func (e *Engine) Limit(maxPages uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dir.Limit(maxPages)
}

// Stats returns a point-in-time snapshot of operation counters.
func (e *Engine) Stats() stats.Counters { return e.accum.Snapshot() }

// FetchLatency returns the fetch-operation latency histogram, zero if
// StatOperations was not enabled at open time.
func (e *Engine) FetchLatency() stats.LatencySnapshot { return e.accum.FetchLatency() }

// StoreLatency returns the store-operation latency histogram.
func (e *Engine) StoreLatency() stats.LatencySnapshot { return e.accum.StoreLatency() }

// DeleteLatency returns the delete-operation latency histogram.
func (e *Engine) DeleteLatency() stats.LatencySnapshot { return e.accum.DeleteLatency() }

// Check walks the database up to level, returning every invariant
// violation found (§4.11 check(level, verbose)).
func (e *Engine) Check(level stats.CheckLevel, verbose bool) stats.CheckResult {
	return stats.Check(stats.CheckDeps{Storage: e.store, Directory: e.dir, HashID: e.hashID}, level, verbose, e.log)
}

// GetSize returns the backing file's current size in bytes.
func (e *Engine) GetSize() uint64 { return uint64(e.store.SizePages()) * uint64(e.store.PageSize()) }

// GetPageSize returns the fixed page size in bytes.
func (e *Engine) GetPageSize() uint32 { return e.store.PageSize() }

// GetVersion returns the on-disk format version (mdbm_get_version
// equivalent).
func (e *Engine) GetVersion() (uint32, error) {
	h, err := e.store.Header()
	if err != nil {
		return 0, err
	}
	return h.Version, nil
}

// Clean scans pageNumber's live entries with fn, marking CLEAN the ones it
// approves (§4.9 clean_func / clean(page)).
func (e *Engine) Clean(pageNumber uint32, fn cache.CleanFunc) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	buf, err := e.pageBuf(pageNumber)
	if err != nil {
		return 0, err
	}
	return cache.Clean(buf, fn)
}

// CleanAll runs Clean over every DATA page in the database using the
// CleanFunc installed at open time, if any.
func (e *Engine) CleanAll() (int, error) {
	if e.cleanFn == nil {
		return 0, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	total := 0
	for _, page := range e.dir.Leaves() {
		buf, err := e.pageBuf(page)
		if err != nil {
			return total, err
		}
		n, err := cache.Clean(buf, e.cleanFn)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Compact runs an on-demand compaction sweep (reclaiming tombstoned page
// space) across every DATA chunk.
func (e *Engine) Compact() (compaction.Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compactor.Run()
}

// pageBuf resolves a data page number to its bytes, going through the
// window's slot table when windowed mode is enabled (§4.8) or directly
// through the storage mapping otherwise.
func (e *Engine) pageBuf(pageNumber uint32) ([]byte, error) {
	if e.win != nil {
		buf, err := e.win.Acquire(pageNumber, 1)
		if err != nil {
			return nil, err
		}
		return buf[storage.ChunkHeaderSize:], nil
	}
	return e.store.PageAt(pageNumber), nil
}

const lobDescriptorSize = 12

func encodeLOBDescriptor(d lob.Descriptor) []byte {
	buf := make([]byte, lobDescriptorSize)
	putUint32(buf[0:4], d.PageNumber)
	putUint32(buf[4:8], d.Length)
	putUint32(buf[8:12], d.Pages)
	return buf
}

func decodeLOBDescriptor(buf []byte) lob.Descriptor {
	return lob.Descriptor{
		PageNumber: getUint32(buf[0:4]),
		Length:     getUint32(buf[4:8]),
		Pages:      getUint32(buf[8:12]),
	}
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
