// Package options provides data structures and functions for configuring a
// pagekv database. It defines every open-time parameter that controls the
// on-disk layout, locking discipline, cache-mode eviction policy, and
// windowed-access behavior, mirroring the flag namespace of the original
// `mdbm_open` call.
package options

import (
	"strings"
	"time"
)

// HashID selects one of the fixed hash families (C1). The zero value is the
// default, FNV.
type HashID int

const (
	HashFNV HashID = iota
	HashCRC32
	HashEJB
	HashPHONG
	HashOZ
	HashTorek
	HashSTL
	HashMD5
	HashSHA1
	HashJenkins
	HashHsieh
)

// LockMode selects the concurrency discipline used across processes (C7).
type LockMode int

const (
	// LockExclusive serializes every reader and writer through one
	// whole-database lock. This is the default.
	LockExclusive LockMode = iota

	// LockPartitioned spreads locking across PartitionCount named
	// partitions, keyed by the entry's hash.
	LockPartitioned

	// LockShared allows concurrent readers and serializes only writers
	// (multi-reader, one-writer).
	LockShared

	// LockNone disables locking entirely; the caller is responsible for
	// external synchronization.
	LockNone
)

// CacheMode selects the eviction policy used once a page fills (C9).
type CacheMode int

const (
	// CacheNone disables cache-mode eviction; a full page simply reports
	// NoRoom once directory splitting is exhausted.
	CacheNone CacheMode = iota
	CacheLFU
	CacheLRU
	CacheGDSF
)

// PageOptions controls the on-disk page and directory layout. These values
// are written into the header at creation time and, per spec.md §4.1/§4.2,
// must not change for the life of the database.
type PageOptions struct {
	// Size is the fixed page size in bytes: any multiple of 64 between
	// 128 and 16MiB-64, or a multiple of the system page size when
	// Window.Enabled is true.
	//
	//   - Default: 4096
	Size uint32 `json:"pageSize"`

	// Alignment is the byte alignment (1, 2, 4, or 8) applied to key and
	// value storage within a page. Immutable after the first insert.
	//
	//   - Default: 8
	Alignment uint8 `json:"alignment"`

	// MinShift and MaxShift bound the extendible-hash directory depth:
	// the bitmap holds 2^MaxShift-1 bits, and splitting never proceeds
	// past MaxShift.
	//
	//   - Default MinShift: 0
	//   - Default MaxShift: 16
	MinShift uint8 `json:"minShift"`
	MaxShift uint8 `json:"maxShift"`

	// HashID selects the key-hashing function (C1).
	//
	//   - Default: HashFNV
	HashID HashID `json:"hashId"`

	// LargeObjects enables value spill into LOB chunks once a value
	// exceeds SpillSize.
	//
	//   - Default: true
	LargeObjects bool `json:"largeObjects"`

	// SpillSize is the large-object spill threshold in bytes; values
	// strictly greater than this spill into a LOB chunk. Must be less
	// than Size.
	//
	//   - Default: Size / 4
	SpillSize uint32 `json:"spillSize"`

	// LimitPages caps the file's growth in pages; zero means unbounded.
	//
	//   - Default: 0 (unbounded)
	LimitPages uint32 `json:"limitPages"`

	// LimitDirPages caps the directory's own growth in pages; zero means
	// unbounded.
	//
	//   - Default: 0 (unbounded)
	LimitDirPages uint32 `json:"limitDirPages"`
}

// LockOptions controls the concurrency discipline (C7).
type LockOptions struct {
	// Mode selects exclusive, partitioned, shared, or no locking.
	//
	//   - Default: LockExclusive
	Mode LockMode `json:"mode"`

	// PartitionCount is the number of named partitions when Mode is
	// LockPartitioned; ignored otherwise.
	//
	//   - Default: 0
	PartitionCount uint32 `json:"partitionCount"`
}

// CacheOptions controls cache-mode eviction and the backing-store plug-in
// (C9/C10).
type CacheOptions struct {
	// Mode selects the eviction policy; CacheNone disables eviction.
	//
	//   - Default: CacheNone
	Mode CacheMode `json:"mode"`

	// EvictCleanFirst restricts eviction candidates to CLEAN entries
	// before considering dirty ones.
	//
	//   - Default: false
	EvictCleanFirst bool `json:"evictCleanFirst"`
}

// WindowOptions controls windowed access (C8) for databases larger than the
// process address space can hold.
type WindowOptions struct {
	// Enabled turns on windowed mode: the handle maps only a bounded
	// slice of the file at a time and remaps slots on demand.
	//
	//   - Default: false
	Enabled bool `json:"enabled"`

	// Size is the total virtual address range reserved for the window,
	// carved into slots. Must be at least 2x PageOptions.Size when
	// Enabled.
	//
	//   - Default: 64MiB
	Size uint64 `json:"size"`
}

// Options is the full configuration for opening a pagekv database.
type Options struct {
	// DataDir is the base path where the database file and its lock
	// file are stored.
	//
	//   - Default: "/var/lib/pagekv"
	DataDir string `json:"dataDir"`

	// CompactInterval is how often the background compaction pass runs.
	//
	//   - Default: 5h
	CompactInterval time.Duration `json:"compactInterval"`

	// Page configures the on-disk page/directory layout.
	Page *PageOptions `json:"page"`

	// Lock configures the concurrency discipline.
	Lock *LockOptions `json:"lock"`

	// Cache configures eviction and the backing-store plug-in.
	Cache *CacheOptions `json:"cache"`

	// Window configures windowed access.
	Window *WindowOptions `json:"window"`

	// ReadOnly opens the database without write access (MDBM_O_RDONLY).
	//
	//   - Default: false
	ReadOnly bool `json:"readOnly"`

	// Create creates the database file if it does not exist
	// (MDBM_O_CREAT).
	//
	//   - Default: true
	Create bool `json:"create"`

	// Truncate truncates an existing database file on open
	// (MDBM_O_TRUNC).
	//
	//   - Default: false
	Truncate bool `json:"truncate"`

	// Fsync issues an fsync after every store/delete instead of relying
	// on the caller to call Sync explicitly (MDBM_O_FSYNC).
	//
	//   - Default: false
	Fsync bool `json:"fsync"`

	// StatOperations enables the per-operation counters and latency
	// histograms exposed by C11.
	//
	//   - Default: false
	StatOperations bool `json:"statOperations"`
}

// OptionFunc is a function type that modifies the database's configuration.
type OptionFunc func(*Options)

// WithDefaultOptions applies a predefined set of default configuration
// values to the Options struct.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		*o = NewDefaultOptions()
	}
}

// WithDataDir sets the primary data directory for the database.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithCompactInterval sets the interval at which the background compaction
// pass runs.
func WithCompactInterval(interval time.Duration) OptionFunc {
	return func(o *Options) {
		if interval > 0 {
			o.CompactInterval = interval
		}
	}
}

// WithPageSize sets the fixed page size in bytes.
func WithPageSize(size uint32) OptionFunc {
	return func(o *Options) {
		if size >= MinPageSize && size <= MaxPageSize && size%PageSizeGranularity == 0 {
			o.Page.Size = size
		}
	}
}

// WithAlignment sets the key/value byte alignment (1, 2, 4, or 8).
func WithAlignment(alignment uint8) OptionFunc {
	return func(o *Options) {
		switch alignment {
		case 1, 2, 4, 8:
			o.Page.Alignment = alignment
		}
	}
}

// WithHashID selects the key-hashing function.
func WithHashID(id HashID) OptionFunc {
	return func(o *Options) {
		o.Page.HashID = id
	}
}

// WithMaxShift sets the maximum extendible-hash directory depth.
func WithMaxShift(shift uint8) OptionFunc {
	return func(o *Options) {
		if shift > 0 {
			o.Page.MaxShift = shift
		}
	}
}

// WithLargeObjects toggles large-object spill support and its threshold.
func WithLargeObjects(enabled bool, spillSize uint32) OptionFunc {
	return func(o *Options) {
		o.Page.LargeObjects = enabled
		if spillSize > 0 {
			o.Page.SpillSize = spillSize
		}
	}
}

// WithLimitPages caps the file's growth in pages.
func WithLimitPages(pages uint32) OptionFunc {
	return func(o *Options) {
		o.Page.LimitPages = pages
	}
}

// WithLimitDirPages caps the directory's own growth in pages.
func WithLimitDirPages(pages uint32) OptionFunc {
	return func(o *Options) {
		o.Page.LimitDirPages = pages
	}
}

// WithLockMode selects the concurrency discipline.
func WithLockMode(mode LockMode, partitionCount uint32) OptionFunc {
	return func(o *Options) {
		o.Lock.Mode = mode
		if mode == LockPartitioned && partitionCount > 0 {
			o.Lock.PartitionCount = partitionCount
		}
	}
}

// WithCacheMode selects the eviction policy.
func WithCacheMode(mode CacheMode, evictCleanFirst bool) OptionFunc {
	return func(o *Options) {
		o.Cache.Mode = mode
		o.Cache.EvictCleanFirst = evictCleanFirst
	}
}

// WithWindowed enables windowed access with the given address-space size.
func WithWindowed(size uint64) OptionFunc {
	return func(o *Options) {
		o.Window.Enabled = true
		if size > 0 {
			o.Window.Size = size
		}
	}
}

// WithReadOnly opens the database without write access.
func WithReadOnly() OptionFunc {
	return func(o *Options) {
		o.ReadOnly = true
	}
}

// WithTruncate truncates an existing database file on open.
func WithTruncate() OptionFunc {
	return func(o *Options) {
		o.Truncate = true
	}
}

// WithFsync issues an fsync after every mutating call.
func WithFsync() OptionFunc {
	return func(o *Options) {
		o.Fsync = true
	}
}

// WithStatOperations enables per-operation counters and latency histograms.
func WithStatOperations() OptionFunc {
	return func(o *Options) {
		o.StatOperations = true
	}
}
