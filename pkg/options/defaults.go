package options

import "time"

const (
	// DefaultDataDir specifies the default base directory where pagekv
	// will store its database file and lock file.
	DefaultDataDir = "/var/lib/pagekv"

	// DefaultCompactInterval defines the default time duration between
	// automatic compaction passes.
	DefaultCompactInterval = time.Hour * 5

	// PageSizeGranularity is the required multiple for PageOptions.Size
	// (spec.md §3: "any multiple of 64 bytes").
	PageSizeGranularity uint32 = 64

	// MinPageSize is the smallest allowed page size in bytes.
	MinPageSize uint32 = 128

	// MaxPageSize is the largest allowed page size in bytes (16MiB - 64,
	// the last value satisfying PageSizeGranularity below 16MiB).
	MaxPageSize uint32 = 16*1024*1024 - 64

	// DefaultPageSize is the default fixed page size in bytes.
	DefaultPageSize uint32 = 4096

	// DefaultAlignment is the default key/value byte alignment.
	DefaultAlignment uint8 = 8

	// DefaultMaxShift is the default maximum extendible-hash directory
	// depth; the bitmap holds 2^DefaultMaxShift-1 bits.
	DefaultMaxShift uint8 = 16

	// DefaultSpillDivisor determines DefaultSpillSize as
	// DefaultPageSize/DefaultSpillDivisor, matching the original's rule
	// of thumb that large objects are a minority of page content.
	DefaultSpillDivisor uint32 = 4

	// DefaultWindowSize is the default virtual address range reserved
	// for windowed access.
	DefaultWindowSize uint64 = 64 * 1024 * 1024
)

// defaultOptions holds the default configuration settings for a pagekv
// database.
var defaultOptions = Options{
	DataDir:         DefaultDataDir,
	CompactInterval: DefaultCompactInterval,
	Page: &PageOptions{
		Size:         DefaultPageSize,
		Alignment:    DefaultAlignment,
		MinShift:     0,
		MaxShift:     DefaultMaxShift,
		HashID:       HashFNV,
		LargeObjects: true,
		SpillSize:    DefaultPageSize / DefaultSpillDivisor,
	},
	Lock: &LockOptions{
		Mode: LockExclusive,
	},
	Cache: &CacheOptions{
		Mode: CacheNone,
	},
	Window: &WindowOptions{
		Enabled: false,
		Size:    DefaultWindowSize,
	},
	Create: true,
}

// NewDefaultOptions returns a fresh copy of the default configuration. Each
// call allocates new Page/Lock/Cache/Window sub-structs so callers can
// safely mutate the result without aliasing package-level state.
func NewDefaultOptions() Options {
	opts := defaultOptions
	page := *defaultOptions.Page
	lock := *defaultOptions.Lock
	cache := *defaultOptions.Cache
	window := *defaultOptions.Window
	opts.Page = &page
	opts.Lock = &lock
	opts.Cache = &cache
	opts.Window = &window
	return opts
}
