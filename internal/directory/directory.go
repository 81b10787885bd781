// Package directory implements the extendible-hash directory (C4): a
// tri-state bitmap over a complete binary tree whose leaves resolve a
// key's hash prefix down to the data page holding it. Splitting a leaf
// flips its bit and hands its two children one data page each; the tree
// can grow unevenly, since a hot subtree splits independently of a cold
// one.
package directory

import (
	"context"
	stdErrors "errors"
	"math/bits"

	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"

	"github.com/iamNilotpal/pagekv/internal/storage"
)

var ErrDirectoryClosed = stdErrors.New("operation failed: cannot access closed directory")

// rootNode is the tree's root, using 1-indexed binary-heap numbering.
const rootNode uint64 = 1

// New opens the directory for an already-initialized storage file,
// loading its bitmap and page table from page 0 or its DIR chunk, or
// bootstraps a brand-new one-page directory when none exists yet.
func New(_ context.Context, config *Config) (*Directory, error) {
	if config == nil || config.Store == nil || config.Logger == nil {
		return nil, pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeInvalidInput, "directory configuration is required").
			WithField("config").WithRule("required").WithComponent("directory")
	}

	d := &Directory{
		store:    config.Store,
		log:      config.Logger,
		minShift: config.MinShift,
		maxShift: config.MaxShift,
	}

	header, err := config.Store.Header()
	if err != nil {
		return nil, err
	}

	if header.DirectoryInlineLen == 0 && header.DirectoryPageNumber == 0 {
		if err := d.bootstrap(); err != nil {
			return nil, err
		}
		return d, nil
	}

	if err := d.load(header); err != nil {
		return nil, err
	}
	return d, nil
}

// bootstrap allocates the first data page and writes a trivial one-node
// directory pointing at it.
func (d *Directory) bootstrap() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	page, err := d.store.AllocChunk(1, storage.ChunkData, uint32(rootNode))
	if err != nil {
		return err
	}

	d.currentShift = 0
	d.bits = make([]byte, byteLen(bitsForShift(0)))
	d.pages = map[uint64]uint32{rootNode: page}

	return d.saveInline(page)
}

func (d *Directory) saveInline(rootPage uint32) error {
	header, err := d.store.Header()
	if err != nil {
		return err
	}
	header.DirectoryInlineLen = uint8(len(d.bits))
	copy(header.DirectoryInline[:], d.bits)
	header.DirectoryPageNumber = rootPage
	d.store.WriteHeader(header)
	return nil
}

func (d *Directory) load(header storage.Header) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if header.DirectoryInlineLen > 0 {
		d.currentShift = 0
		d.bits = append([]byte(nil), header.DirectoryInline[:header.DirectoryInlineLen]...)
		d.pages = map[uint64]uint32{rootNode: header.DirectoryPageNumber}
		return nil
	}

	return d.loadChunk(header.DirectoryPageNumber)
}

// Close releases the directory; the underlying storage is left open for
// its owner to close.
func (d *Directory) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return ErrDirectoryClosed
	}
	d.log.Infow("closing directory")
	return nil
}

// PageForHash resolves hash down through the bit tree to the data page
// currently responsible for it (§4.4 page_for_hash).
func (d *Directory) PageForHash(hash uint32) (node uint64, page uint32, shift uint8, err error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	node = rootNode
	shift = 0
	for shift < d.currentShift && getBit(d.bits, node) {
		childBit := (hash >> (31 - shift)) & 1
		if childBit == 0 {
			node = 2 * node
		} else {
			node = 2*node + 1
		}
		shift++
	}

	page, ok := d.pages[node]
	if !ok {
		return 0, 0, 0, pkgerrors.NewDirectoryCorruptionError("PageForHash", 0, nil).
			WithDetail("node", node).WithShiftLevel(shift)
	}
	return node, page, shift, nil
}

// Split allocates a new data page for node's right child, promotes node
// to an internal (split) node, and returns both children's pages so the
// caller can rehash node's resident entries between them (§4.4 split).
func (d *Directory) Split(node uint64) (leftPage, rightPage uint32, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	shift := depthOf(node)
	if shift >= d.maxShift {
		return 0, 0, pkgerrors.NewMaxShiftReachedError("", shift)
	}

	oldPage, ok := d.pages[node]
	if !ok {
		return 0, 0, pkgerrors.NewDirectoryCorruptionError("Split", 0, nil).WithDetail("node", node)
	}

	newShift := shift + 1
	if newShift > d.currentShift {
		d.bits = growBits(d.bits, newShift)
		d.currentShift = newShift
	}

	newPage, err := d.store.AllocChunk(1, storage.ChunkData, uint32(2*node+1))
	if err != nil {
		return 0, 0, err
	}

	setBit(d.bits, node)
	delete(d.pages, node)
	d.pages[2*node] = oldPage
	d.pages[2*node+1] = newPage

	if err := d.persist(); err != nil {
		return 0, 0, err
	}

	return oldPage, newPage, nil
}

// PreSplit pre-creates n data chunks (rounded up to a power of two)
// before any data exists, so the first writes don't pay split latency
// (§4.4 pre_split).
func (d *Directory) PreSplit(n uint32) error {
	d.mu.RLock()
	leafCount := uint32(len(d.pages))
	d.mu.RUnlock()

	target := nextPow2(n)
	for leafCount < target {
		node, err := d.firstSplittableLeaf()
		if err != nil {
			return err
		}
		if _, _, err := d.Split(node); err != nil {
			return err
		}
		d.mu.RLock()
		leafCount = uint32(len(d.pages))
		d.mu.RUnlock()
	}
	return nil
}

func (d *Directory) firstSplittableLeaf() (uint64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for node := range d.pages {
		if depthOf(node) < d.maxShift {
			return node, nil
		}
	}
	return 0, pkgerrors.NewMaxShiftReachedError("", d.maxShift)
}

func nextPow2(n uint32) uint32 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len32(n-1)
}

// Limit raises the directory's maximum split depth to the depth whose leaf
// count covers maxPages (rounded up to a power of two). It never lowers the
// depth: a maxPages below what the current maximum depth already allows
// leaves splitting unchanged, so Limit does not cap the page count
// (§4.4 limit).
func (d *Directory) Limit(maxPages uint32) error {
	target := uint8(bits.Len32(nextPow2(maxPages))) - 1
	d.mu.Lock()
	defer d.mu.Unlock()
	if target > d.maxShift {
		d.maxShift = target
	}
	return nil
}

// CurrentShift returns the deepest level the tree has reached so far.
func (d *Directory) CurrentShift() uint8 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.currentShift
}

// LeafCount returns the number of currently resident leaf pages.
func (d *Directory) LeafCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.pages)
}

// Leaves returns a snapshot of every leaf node index to the data page it
// currently resolves to, for integrity walkers (C11) that need to confirm
// each leaf maps to exactly one DATA chunk.
func (d *Directory) Leaves() map[uint64]uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[uint64]uint32, len(d.pages))
	for node, page := range d.pages {
		out[node] = page
	}
	return out
}
