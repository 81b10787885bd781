package cache

import (
	"github.com/iamNilotpal/pagekv/internal/page"
	"github.com/iamNilotpal/pagekv/pkg/options"
)

// SelectVictim scans a full page's live entries and returns the index the
// eviction policy would remove next, restricted to CLEAN entries first
// when EvictCleanFirst is set and at least one CLEAN candidate exists
// (§4.9: "choose the victim ... restricted to CLEAN entries first if the
// flag is set"). Ties break on the lowest slot index.
func (e *Evictor) SelectVictim(buf []byte) (int, bool) {
	if e.mode == options.CacheNone {
		return 0, false
	}

	count := page.EntryCount(buf)

	hasClean := false
	if e.evictCleanFirst {
		for i := 1; i <= count; i++ {
			s := page.SlotAt(buf, i)
			if s.KeyOffset == 0 || s.Deleted() {
				continue
			}
			if s.Clean() {
				hasClean = true
				break
			}
		}
	}

	best := -1
	var bestScore float64

	for i := 1; i <= count; i++ {
		s := page.SlotAt(buf, i)
		if s.KeyOffset == 0 || s.Deleted() {
			continue
		}
		if hasClean && !s.Clean() {
			continue
		}

		score := e.score(s)
		if best == -1 || score < bestScore {
			best = i
			bestScore = score
		}
	}

	if best == -1 {
		return 0, false
	}
	return best, true
}

func (e *Evictor) score(s page.Slot) float64 {
	switch e.mode {
	case options.CacheLFU:
		return float64(s.AccessCount)
	case options.CacheGDSF:
		size := float64(s.KeyLen + s.ValLen)
		if size == 0 {
			size = 1
		}
		return float64(s.AccessCount) / size
	case options.CacheLRU:
		fallthrough
	default:
		return float64(s.LastAccessUnix)
	}
}

// EvictUntilFits repeatedly selects and deletes victims until requiredFree
// bytes are free on the page or no candidates remain, returning the number
// of entries it evicted (§4.9: "repeat until the new entry fits or no
// candidates remain").
func (e *Evictor) EvictUntilFits(buf []byte, requiredFree uint32) int {
	evicted := 0
	for {
		if page.FreeBytes(buf)+page.DeletedBytes(buf) >= requiredFree {
			return evicted
		}
		victim, ok := e.SelectVictim(buf)
		if !ok {
			return evicted
		}
		if err := page.Delete(buf, victim); err != nil {
			return evicted
		}
		evicted++
	}
}

// Shake invokes fn with every live entry on buf and deletes the ones it
// names, so the core can retry an insert that didn't fit (§4.9 shake).
func Shake(buf []byte, fn ShakeFunc) (deleted int, err error) {
	var entries []ShakeEntry
	it := page.IterateFrom(buf, 0)
	for {
		idx, key, value, ok := it.Next()
		if !ok {
			break
		}
		entries = append(entries, ShakeEntry{Index: idx, Key: key, Value: value})
	}

	victims := fn(entries)
	for _, idx := range victims {
		if err := page.Delete(buf, idx); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// Clean invokes fn with every live entry on buf, marking CLEAN the ones it
// approves, and stops scanning buf as soon as fn reports quit (§4.9
// clean_func / clean(page); §9's quit semantics are scoped to one page).
func Clean(buf []byte, fn CleanFunc) (cleaned int, err error) {
	it := page.IterateFrom(buf, 0)
	for {
		idx, key, value, ok := it.Next()
		if !ok {
			break
		}
		clean, quit := fn(ShakeEntry{Index: idx, Key: key, Value: value})
		if clean {
			if err := page.MarkClean(buf, idx); err != nil {
				return cleaned, err
			}
			cleaned++
		}
		if quit {
			break
		}
	}
	return cleaned, nil
}
