// Package backingstore implements the pluggable backing-store vtable (C10):
// a small set of hooks — init/term/lock/unlock/fetch/store/delete/dup — that
// let a database defer to an external source of truth on a cache miss, plus
// the two predefined providers spec.md names: a fixed-slot FILE provider and
// a nested-handle provider.
package backingstore

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Provider is the backing-store vtable. Once installed on a BackingStore it
// is immutable for the life of the handle.
type Provider interface {
	// Init prepares the provider for use: opening files, connecting to a
	// nested handle, and so on.
	Init() error

	// Term releases everything Init acquired.
	Term() error

	// Lock acquires whatever serialization the provider needs around its
	// own fetch/store/delete calls.
	Lock() error

	// Unlock releases what Lock acquired.
	Unlock() error

	// Fetch retrieves value for key from the backing source, returning a
	// NotFound-classified error when it holds no such key.
	Fetch(key []byte) ([]byte, error)

	// Store writes key/value through to the backing source.
	Store(key, value []byte) error

	// Delete removes key from the backing source.
	Delete(key []byte) error

	// Dup returns an independent handle to the same backing source, for a
	// forked or cloned database handle.
	Dup() (Provider, error)
}

// StoreFlag modifies Store's write-through behavior (§4.10).
type StoreFlag uint8

const (
	// StoreCacheOnly writes only into the cache side, never through to the
	// provider.
	StoreCacheOnly StoreFlag = 1 << iota

	// StoreCacheModify writes through to the provider but updates the
	// cache side only if the key is already cached, rather than inserting
	// a new cache entry.
	StoreCacheModify
)

// CacheAccessor is the cache-side half of a BackingStore: whatever already
// holds the hot set (the engine's page/directory layer) implements this so
// BackingStore can stay ignorant of pages, hashing, or eviction.
type CacheAccessor interface {
	// Get returns the cached value for key, if present.
	Get(key []byte) ([]byte, bool)

	// Put installs value for key into the cache, evicting as needed.
	Put(key, value []byte) error

	// Has reports whether key is currently cached, without copying its value.
	Has(key []byte) bool

	// Remove clears key from the cache, if present.
	Remove(key []byte) error
}

// BackingStore pairs a Provider with a CacheAccessor and implements the
// fetch/store/delete write-through contract described in §4.10.
type BackingStore struct {
	mu       sync.RWMutex
	provider Provider
	cache    CacheAccessor
	log      *zap.SugaredLogger
	closed   atomic.Bool
}

// Config carries what a BackingStore needs to operate.
type Config struct {
	Provider Provider
	Cache    CacheAccessor
	Logger   *zap.SugaredLogger
}
