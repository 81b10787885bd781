package engine

import (
	"sort"

	"github.com/iamNilotpal/pagekv/internal/page"
)

// NewIterator builds a reentrant cursor over every live entry, ordered by
// ascending data-page number and then slot order within a page (§3's
// MDBM_ITER (page-number, index-within-page) pair).
func (e *Engine) NewIterator() *Iterator {
	e.mu.Lock()
	defer e.mu.Unlock()

	leaves := e.dir.Leaves()
	pages := make([]uint32, 0, len(leaves))
	for _, p := range leaves {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })

	return &Iterator{pages: pages, pageAt: 0, after: 0}
}

// Next advances it and returns the next live entry across the whole
// database. ok is false once every page has been exhausted.
func (e *Engine) Next(it *Iterator) (key, value []byte, ok bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for it.pageAt < len(it.pages) {
		pageNum := it.pages[it.pageAt]
		buf := e.store.PageAt(pageNum)

		pit := page.IterateFrom(buf, it.after)
		idx, k, v, next := pit.Next()
		if !next {
			it.pageAt++
			it.after = 0
			continue
		}
		it.after = idx

		slot := page.SlotAt(buf, idx)
		value, err := e.resolveValue(v, slot.LargeObject())
		if err != nil {
			return nil, nil, false, err
		}
		return append([]byte(nil), k...), value, true, nil
	}
	return nil, nil, false, nil
}

// First resets it to the beginning of its page set and returns the first
// entry, equivalent to calling NewIterator followed by Next.
func (e *Engine) First(it *Iterator) (key, value []byte, ok bool, err error) {
	it.pageAt = 0
	it.after = 0
	return e.Next(it)
}

// DefaultIterator returns the engine's single non-reentrant cursor, the
// way mdbm_first/mdbm_next share one handle-wide iteration state. Distinct
// from NewIterator's reentrant form, which callers use when they need more
// than one independent cursor open at once.
func (e *Engine) DefaultIterator() *Iterator {
	e.defaultIterMu.Lock()
	defer e.defaultIterMu.Unlock()
	if e.defaultIter == nil {
		e.defaultIter = e.NewIterator()
	}
	return e.defaultIter
}

// ResetDefaultIterator rewinds the handle-wide cursor DefaultIterator
// returns, the way mdbm_first does for a caller using the non-reentrant API.
func (e *Engine) ResetDefaultIterator() {
	e.defaultIterMu.Lock()
	defer e.defaultIterMu.Unlock()
	e.defaultIter = e.NewIterator()
}
