package engine

import (
	"time"

	"github.com/iamNilotpal/pagekv/internal/backingstore"
	"github.com/iamNilotpal/pagekv/internal/cache"
	"github.com/iamNilotpal/pagekv/internal/page"
	"github.com/iamNilotpal/pagekv/internal/pagehash"
	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"
	"github.com/iamNilotpal/pagekv/pkg/options"
)

// Store inserts or overwrites key/value according to mode and flags
// (§4.6 store). It returns StoreExists (not an error) when mode is
// StoreInsert and key already exists.
func (e *Engine) Store(key, value []byte, mode StoreMode, flags StoreFlag) (StoreResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.accum.RecordStore(time.Since(start))

	if e.closed.Load() {
		return StoreResult{}, ErrEngineClosed
	}
	if len(key) == 0 {
		return StoreResult{}, pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeInvalidInput, "key must not be empty").
			WithField("key").WithRule("non_empty")
	}

	hash := e.hashKey(key)
	tok, err := e.locks.LockSmart(hash, true, 0)
	if err != nil {
		return StoreResult{}, err
	}
	defer e.locks.UnlockSmart(hash, true, tok)

	if flags&StoreFlagCacheOnly != 0 && e.backing == nil {
		flags &^= StoreFlagCacheOnly
	}

	return e.rawStore(hash, key, value, mode, flags)
}

// rawStore assumes the caller already holds e.mu and the entry's lock.
func (e *Engine) rawStore(hash uint32, key, value []byte, mode StoreMode, flags StoreFlag) (StoreResult, error) {
	result, err := e.cacheStore(hash, key, value, mode, flags)
	if err != nil {
		return StoreResult{}, err
	}

	if flags&StoreFlagCacheOnly == 0 && e.backing != nil && result.Code == StoreOK {
		if err := e.backing.Store(key, value, backingStoreFlags(flags)); err != nil {
			e.log.Warnw("backing store write-through failed", "error", err)
		}
	}
	return result, nil
}

// cacheStore performs the page-level insert/replace without ever touching
// the backing store. This is the primitive cacheAdapter uses: BackingStore
// already writes through to the provider itself before calling cache.Put,
// so routing cacheAdapter through rawStore's write-through would recurse
// forever.
func (e *Engine) cacheStore(hash uint32, key, value []byte, mode StoreMode, flags StoreFlag) (StoreResult, error) {
	_, page0, _, err := e.dir.PageForHash(hash)
	if err != nil {
		return StoreResult{}, err
	}

	buf := e.store.PageAt(page0)
	existingIdx, _, found := page.Lookup(buf, hash, key)

	switch mode {
	case StoreInsert:
		if found {
			return StoreResult{Code: StoreExists, Slot: existingIdx}, nil
		}
	case StoreModify:
		if !found {
			return StoreResult{}, pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeNotFound, "key does not exist").
				WithPageNumber(page0)
		}
		// Same non-atomic overwrite as StoreReplace below.
		if err := page.Delete(buf, existingIdx); err != nil {
			return StoreResult{}, err
		}
	case StoreReplace:
		if found {
			// Non-atomic per §9: the old entry is removed before the new
			// one is inserted, so a NoRoom on the new value leaves the key
			// absent rather than restoring the old one.
			if err := page.Delete(buf, existingIdx); err != nil {
				return StoreResult{}, err
			}
		}
	case StoreInsertDup:
		// always inserts a fresh entry regardless of found.
	}

	valBytes, largeObj, err := e.encodeValue(value)
	if err != nil {
		return StoreResult{}, err
	}

	idx, destPage, err := e.insertWithRoom(page0, hash, key, valBytes, largeObj)
	if err != nil {
		if (mode == StoreReplace || mode == StoreModify) && found {
			return StoreResult{}, pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeReplaceLost,
				"replace removed the old entry but the new value did not fit").WithPageNumber(page0)
		}
		return StoreResult{}, err
	}

	result := StoreResult{Code: StoreOK, Slot: idx}
	if flags&StoreFlagReserve != 0 {
		slot := page.SlotAt(e.store.PageAt(destPage), idx)
		result.Reserved = e.store.PageAt(destPage)[slot.ValOffset : slot.ValOffset+slot.ValLen]
	}
	return result, nil
}

// encodeValue spills value into a LOB chunk when large objects are enabled
// and it exceeds the configured spill threshold, returning the bytes that
// actually get written to the home page's slot (§4.5 lob_put).
func (e *Engine) encodeValue(value []byte) (slotValue []byte, largeObject bool, err error) {
	if e.largeObjects && uint32(len(value)) > e.spillSize {
		desc, err := e.lobs.Put(value)
		if err != nil {
			return nil, false, err
		}
		return encodeLOBDescriptor(desc), true, nil
	}
	return value, false, nil
}

// insertWithRoom inserts key/valBytes into page0, splitting the leaf and
// rehashing resident entries (§4.4) while the directory can still split.
// Only once a split comes back MaxShiftReached does it fall back, in the
// priority order §4.4 specifies: an oversized LOB spill, the installed
// ShakeFunc, then cache-mode eviction (§4.9) — never before a split was
// even attempted, since eviction is meant to be the last resort once the
// directory genuinely cannot grow any further.
func (e *Engine) insertWithRoom(page0 uint32, hash uint32, key, valBytes []byte, largeObject bool) (idx int, destPage uint32, err error) {
	flags := page.Flag(0)
	if largeObject {
		flags |= page.FlagLargeObject
	}

	destPage = page0
	buf := e.store.PageAt(destPage)
	if idx, err := page.Insert(buf, key, valBytes, hash, e.alignment, flags); err == nil {
		return idx, destPage, nil
	} else if !hasCode(err, pkgerrors.ErrorCodeNoRoom) {
		return 0, 0, err
	}

	for {
		node, _, shift, perr := e.dir.PageForHash(hash)
		if perr != nil {
			return 0, 0, perr
		}

		leftPage, rightPage, splitErr := e.dir.Split(node)
		if splitErr != nil {
			if !hasCode(splitErr, pkgerrors.ErrorCodeMaxShiftReached) {
				return 0, 0, splitErr
			}
			return e.insertAtMaxShift(buf, destPage, key, valBytes, hash, flags, largeObject, splitErr)
		}
		e.accum.RecordSplit()

		if err := e.rehash(leftPage, rightPage, shift); err != nil {
			return 0, 0, err
		}

		childBit := (hash >> (31 - shift)) & 1
		destPage = leftPage
		if childBit == 1 {
			destPage = rightPage
		}
		buf = e.store.PageAt(destPage)

		idx, err := page.Insert(buf, key, valBytes, hash, e.alignment, flags)
		if err == nil {
			return idx, destPage, nil
		}
		if !hasCode(err, pkgerrors.ErrorCodeNoRoom) {
			return 0, 0, err
		}
		// page still doesn't fit after a split (very large value on a
		// freshly split page): split again.
	}
}

// insertAtMaxShift handles a NoRoom on a page whose directory node already
// sits at max_shift, where splitting is no longer an option (§4.4). It
// tries, in order: spilling an inline value into an oversized LOB chunk
// (the "oversized DATA chunk" §4.4 describes, implemented here via the
// large-object store rather than a literal bigger page, since that store
// already exists for exactly this purpose); the installed ShakeFunc; then
// cache-mode eviction. It returns splitErr, the directory's own
// MaxShiftReached error, if none of those make room.
func (e *Engine) insertAtMaxShift(buf []byte, destPage uint32, key, valBytes []byte, hash uint32, flags page.Flag, largeObject bool, splitErr error) (int, uint32, error) {
	if !largeObject && e.largeObjects {
		if desc, spillErr := e.lobs.Put(valBytes); spillErr == nil {
			lobBytes := encodeLOBDescriptor(desc)
			if idx, err := page.Insert(buf, key, lobBytes, hash, e.alignment, flags|page.FlagLargeObject); err == nil {
				return idx, destPage, nil
			}
			if freeErr := e.lobs.Free(desc); freeErr != nil {
				e.log.Warnw("failed to free oversized spill after insert still didn't fit", "error", freeErr)
			}
		}
	}

	if e.shakeFn != nil {
		if _, serr := cache.Shake(buf, e.shakeFn); serr == nil {
			if idx, err := page.Insert(buf, key, valBytes, hash, e.alignment, flags); err == nil {
				return idx, destPage, nil
			}
		}
	}

	if e.cacheMode != options.CacheNone && e.evictor != nil {
		required := page.Align(uint32(len(key)), e.alignment) + page.Align(uint32(len(valBytes)), e.alignment) + page.SlotSize
		e.evictor.EvictUntilFits(buf, required)
		if idx, err := page.Insert(buf, key, valBytes, hash, e.alignment, flags); err == nil {
			return idx, destPage, nil
		}
	}

	return 0, 0, splitErr
}

// rehash redistributes leftPage's resident entries between leftPage and
// rightPage after a split, using the same bit-selection convention as
// directory.PageForHash/Split: the bit at depth `shift` of each entry's
// hash decides which child it belongs to.
func (e *Engine) rehash(leftPage, rightPage uint32, shift uint8) error {
	src := e.store.PageAt(leftPage)

	var indices []int
	var keys, vals [][]byte
	var flagsList []page.Flag

	it := page.IterateFrom(src, 0)
	for {
		idx, key, value, ok := it.Next()
		if !ok {
			break
		}
		h := e.hashKey(key)
		if (h>>(31-shift))&1 == 1 {
			slot := page.SlotAt(src, idx)
			indices = append(indices, idx)
			keys = append(keys, append([]byte(nil), key...))
			vals = append(vals, append([]byte(nil), value...))
			flagsList = append(flagsList, slot.Flags)
		}
	}

	dst := e.store.PageAt(rightPage)
	for i, idx := range indices {
		if err := page.Delete(src, idx); err != nil {
			return err
		}
		h := e.hashKey(keys[i])
		if _, err := page.Insert(dst, keys[i], vals[i], h, e.alignment, flagsList[i]); err != nil {
			return err
		}
	}
	page.Compact(src, e.alignment)
	return nil
}

func (e *Engine) hashKey(key []byte) uint32 {
	return pagehash.Sum(key, e.hashID)
}

// backingStoreFlags translates the engine's own StoreFlag bitset into the
// backingstore package's write-through flags; the two types are deliberately
// kept distinct since StoreFlagReserve has no meaning to the backing store.
func backingStoreFlags(flags StoreFlag) (out backingstore.StoreFlag) {
	if flags&StoreFlagCacheOnly != 0 {
		out |= backingstore.StoreCacheOnly
	}
	if flags&StoreFlagCacheModify != 0 {
		out |= backingstore.StoreCacheModify
	}
	return out
}
