package engine

import (
	"time"

	"github.com/iamNilotpal/pagekv/internal/page"
	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"
)

// Delete removes key, clearing the backing store and cache sides (§4.6
// delete, §4.10). Deleting a missing key is a NotFound error, matching
// fetch's miss behavior.
func (e *Engine) Delete(key []byte) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.accum.RecordDelete(time.Since(start))

	if e.closed.Load() {
		return ErrEngineClosed
	}
	if len(key) == 0 {
		return pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeInvalidInput, "key must not be empty").
			WithField("key").WithRule("non_empty")
	}

	hash := e.hashKey(key)
	tok, err := e.locks.LockSmart(hash, true, 0)
	if err != nil {
		return err
	}
	defer e.locks.UnlockSmart(hash, true, tok)

	return e.rawDelete(hash, key)
}

// rawDelete assumes the caller already holds e.mu and the entry's lock.
func (e *Engine) rawDelete(hash uint32, key []byte) error {
	found, err := e.cacheDelete(hash, key)
	if err != nil {
		return err
	}

	if !found {
		if e.backing != nil {
			return e.backing.Delete(key)
		}
		return pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeNotFound, "key does not exist")
	}

	if e.backing != nil {
		if err := e.backing.Delete(key); err != nil {
			e.log.Warnw("backing store delete write-through failed", "error", err)
		}
	}
	return nil
}

// cacheDelete removes key from its home page only, never consulting the
// backing store, and reports whether it was present. This is the primitive
// cacheAdapter uses: BackingStore.Delete already clears the cache itself, so
// routing cacheAdapter through rawDelete's backing fallback would recurse
// forever on a miss.
func (e *Engine) cacheDelete(hash uint32, key []byte) (found bool, err error) {
	_, page0, _, err := e.dir.PageForHash(hash)
	if err != nil {
		return false, err
	}

	buf := e.store.PageAt(page0)
	idx, raw, ok := page.Lookup(buf, hash, key)
	if !ok {
		return false, nil
	}

	slot := page.SlotAt(buf, idx)
	if slot.LargeObject() {
		desc := decodeLOBDescriptor(raw)
		if err := e.lobs.Free(desc); err != nil {
			return false, err
		}
	}

	if err := page.Delete(buf, idx); err != nil {
		return false, err
	}
	return true, nil
}
