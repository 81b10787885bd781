package directory

import (
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/pagekv/internal/storage"
	"go.uber.org/zap"
)

// Directory is the extendible-hash tree mapping hash prefixes to data
// pages (C4, §3/§4.4): a bit per tree node records whether that node has
// been split, and a sparse table records which data page each current
// leaf resolves to.
//
// The bit array models the tree directly, the way spec.md's directory
// bitmap does; the leaf -> page table is this implementation's own
// bookkeeping, needed because data chunks here are variable-offset
// allocations rather than a fixed positional array (see DESIGN.md).
type Directory struct {
	mu     sync.RWMutex
	closed atomic.Bool

	store *storage.Storage
	log   *zap.SugaredLogger

	minShift uint8
	maxShift uint8

	// currentShift is the deepest level any node has reached so far;
	// the bit array only needs to cover nodes up to this depth.
	currentShift uint8

	// bits holds one bit per tree node up to currentShift's depth,
	// 1-indexed the way a binary heap is (node 1 is the root).
	bits []byte

	// pages maps a leaf node index to the data page number it currently
	// resolves to. Only leaves appear here; split (internal) nodes don't.
	pages map[uint64]uint32
}

// Config carries what Directory needs to open or initialize itself.
type Config struct {
	Store    *storage.Storage
	Logger   *zap.SugaredLogger
	MinShift uint8
	MaxShift uint8
}
