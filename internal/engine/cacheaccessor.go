package engine

// cacheAdapter implements backingstore.CacheAccessor over an Engine's own
// page/directory layer. It is only ever invoked by BackingStore.Fetch/
// Store/Delete, which are themselves only reachable from Engine.Fetch/
// Store/Delete after they've already acquired e.mu — so every method here
// calls the lock-free cache-only helpers directly rather than Engine's
// public, locking entry points, to avoid re-entering e.mu. It also never
// calls rawFetch/rawDelete's own backing-store fallback, since BackingStore
// already consults the cache before calling the provider; doing so would
// recurse between the two on every miss.
type cacheAdapter struct {
	eng *Engine
}

// Get returns the cached value for key, if present.
func (c cacheAdapter) Get(key []byte) ([]byte, bool) {
	hash := c.eng.hashKey(key)
	value, ok, err := c.eng.cacheFetch(hash, key)
	if err != nil || !ok {
		return nil, false
	}
	return value, true
}

// Put installs value for key into the cache, evicting as needed.
func (c cacheAdapter) Put(key, value []byte) error {
	hash := c.eng.hashKey(key)
	_, err := c.eng.cacheStore(hash, key, value, StoreReplace, 0)
	return err
}

// Has reports whether key is currently cached, without copying its value.
func (c cacheAdapter) Has(key []byte) bool {
	_, ok := c.Get(key)
	return ok
}

// Remove clears key from the cache, if present. Removing an absent key is
// not an error.
func (c cacheAdapter) Remove(key []byte) error {
	hash := c.eng.hashKey(key)
	_, err := c.eng.cacheDelete(hash, key)
	return err
}
