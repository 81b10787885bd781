package backingstore

import (
	stdErrors "errors"

	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"
)

// ErrClosed is returned by any BackingStore call made after Close.
var ErrClosed = stdErrors.New("operation failed: backing store is closed")

// New installs provider as the immutable backing-store plug-in for cache,
// calling provider.Init() before returning.
func New(config *Config) (*BackingStore, error) {
	if config == nil || config.Provider == nil || config.Cache == nil {
		return nil, pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeInvalidInput, "backing store configuration is required").
			WithField("config").WithComponent("backingstore")
	}

	if err := config.Provider.Init(); err != nil {
		return nil, err
	}

	return &BackingStore{provider: config.Provider, cache: config.Cache, log: config.Logger}, nil
}

func (b *BackingStore) checkOpen() error {
	if b.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Fetch returns the cached value for key, falling through to the provider
// and installing the result into the cache on a miss (§4.10).
func (b *BackingStore) Fetch(key []byte) ([]byte, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	if value, ok := b.cache.Get(key); ok {
		return value, nil
	}

	if err := b.provider.Lock(); err != nil {
		return nil, err
	}
	defer b.provider.Unlock()

	value, err := b.provider.Fetch(key)
	if err != nil {
		return nil, err
	}

	if err := b.cache.Put(key, value); err != nil {
		if b.log != nil {
			b.log.Warnw("backing store fetch could not install into cache", "error", err)
		}
	}
	return value, nil
}

// Store writes key/value according to flags (§4.10): by default it writes
// through to the provider and updates the cache; StoreCacheOnly skips the
// provider entirely; StoreCacheModify writes through but leaves an uncached
// key uncached.
func (b *BackingStore) Store(key, value []byte, flags StoreFlag) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	if flags&StoreCacheOnly != 0 {
		return b.cache.Put(key, value)
	}

	if err := b.provider.Lock(); err != nil {
		return err
	}
	if err := b.provider.Store(key, value); err != nil {
		b.provider.Unlock()
		return err
	}
	b.provider.Unlock()

	if flags&StoreCacheModify != 0 {
		if !b.cache.Has(key) {
			return nil
		}
	}
	return b.cache.Put(key, value)
}

// Delete clears key from both the cache and the backing provider (§4.10).
func (b *BackingStore) Delete(key []byte) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	if err := b.cache.Remove(key); err != nil {
		if b.log != nil {
			b.log.Warnw("backing store delete could not clear cache side", "error", err)
		}
	}

	if err := b.provider.Lock(); err != nil {
		return err
	}
	defer b.provider.Unlock()
	return b.provider.Delete(key)
}

// Dup returns a new BackingStore sharing this one's cache accessor but
// holding an independent provider handle.
func (b *BackingStore) Dup() (*BackingStore, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	dup, err := b.provider.Dup()
	if err != nil {
		return nil, err
	}
	return &BackingStore{provider: dup, cache: b.cache, log: b.log}, nil
}

// Close terminates the provider. Idempotent.
func (b *BackingStore) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.provider.Term()
}
