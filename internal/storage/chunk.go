package storage

import (
	"encoding/binary"

	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"
)

// ChunkType identifies what a run of contiguous pages is used for (§3).
type ChunkType uint8

const (
	ChunkFree ChunkType = iota
	ChunkData
	ChunkDir
	ChunkLOB
)

// ChunkHeaderSize is the fixed size in bytes of a chunk header, written at
// the start of a chunk's first page.
const ChunkHeaderSize = 20

// ChunkHeader describes one chunk: a run of contiguous pages (§3/§4.3).
type ChunkHeader struct {
	Type ChunkType

	// PrevLengthPages is the page-length of the immediately preceding
	// chunk, allowing a backwards walk without a separate index.
	PrevLengthPages uint32

	// SelfLengthPages is this chunk's own length in pages.
	SelfLengthPages uint32

	// OwnerDirPage is the directory node this chunk belongs to, for DATA
	// chunks; unused (0) for FREE/DIR/LOB chunks.
	OwnerDirPage uint32

	// Occupancy is a type-dependent counter: live entry count for DATA
	// chunks, page count already in use for LOB chunks.
	Occupancy uint32
}

func decodeChunkHeader(buf []byte) ChunkHeader {
	return ChunkHeader{
		Type:            ChunkType(buf[0]),
		PrevLengthPages: binary.LittleEndian.Uint32(buf[4:8]),
		SelfLengthPages: binary.LittleEndian.Uint32(buf[8:12]),
		OwnerDirPage:    binary.LittleEndian.Uint32(buf[12:16]),
		Occupancy:       binary.LittleEndian.Uint32(buf[16:20]),
	}
}

func encodeChunkHeader(buf []byte, h ChunkHeader) {
	buf[0] = byte(h.Type)
	buf[1], buf[2], buf[3] = 0, 0, 0
	binary.LittleEndian.PutUint32(buf[4:8], h.PrevLengthPages)
	binary.LittleEndian.PutUint32(buf[8:12], h.SelfLengthPages)
	binary.LittleEndian.PutUint32(buf[12:16], h.OwnerDirPage)
	binary.LittleEndian.PutUint32(buf[16:20], h.Occupancy)
}

// ReadChunkHeader decodes the chunk header starting at page startPage.
func (s *Storage) ReadChunkHeader(startPage uint32) ChunkHeader {
	off := uint64(startPage) * uint64(s.pageSize)
	return decodeChunkHeader(s.data[off : off+ChunkHeaderSize])
}

func (s *Storage) writeChunkHeader(startPage uint32, h ChunkHeader) {
	off := uint64(startPage) * uint64(s.pageSize)
	encodeChunkHeader(s.data[off:off+ChunkHeaderSize], h)
}

// SetChunkOccupancy updates a chunk's Occupancy counter in place, leaving
// its type and length untouched. Used by C5/C6 callers to record live
// entry counts (DATA chunks) or pages actually holding data (LOB chunks).
func (s *Storage) SetChunkOccupancy(startPage uint32, occupancy uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.ReadChunkHeader(startPage)
	h.Occupancy = occupancy
	s.writeChunkHeader(startPage, h)
}

// PageAt returns a view of one data page's bytes, not including the
// ChunkHeaderSize bytes at the start of the page that hold the chunk header
// of a chunk starting there.
func (s *Storage) PageAt(pageNumber uint32) []byte {
	off := uint64(pageNumber) * uint64(s.pageSize)
	return s.data[off+ChunkHeaderSize : off+uint64(s.pageSize)]
}

// ChunkBytes returns a view spanning every page of a multi-page chunk
// starting at startPage, for chunk types (DIR, LOB) whose payload isn't
// bounded by a single page.
func (s *Storage) ChunkBytes(startPage, lengthPages uint32) []byte {
	off := uint64(startPage) * uint64(s.pageSize)
	length := uint64(lengthPages) * uint64(s.pageSize)
	return s.data[off : off+length]
}

// bucketKey maps a page count to the free-list bucket it is stored under.
// Exact-size buckets keep allocation O(1) in the common case; AllocChunk
// falls back to splitting the smallest larger bucket otherwise.
func bucketKey(pages uint32) uint32 { return pages }

// ForEachChunk walks every chunk from page 1 to the end of the file,
// calling fn with each chunk's start page and header. Used for directory
// discovery (C4), integrity checks and stats (C11), and rebuilding the
// in-memory free lists on open.
func (s *Storage) ForEachChunk(fn func(startPage uint32, h ChunkHeader) error) error {
	page := uint32(1)
	for page < s.sizePages {
		h := s.ReadChunkHeader(page)
		if h.SelfLengthPages == 0 {
			return pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeChunkCorrupted, "chunk has zero length").WithPageNumber(page)
		}
		if err := fn(page, h); err != nil {
			return err
		}
		page += h.SelfLengthPages
	}
	if page != s.sizePages {
		return pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeChunkCorrupted, "chunks do not tile the file exactly").WithPageNumber(page)
	}
	return nil
}

// rebuildFreeLists walks the whole file and repopulates s.freeLists from
// on-disk FREE chunk headers. Called once at open; the free lists
// themselves are not persisted, only derivable on-disk state is.
func (s *Storage) rebuildFreeLists() error {
	s.freeLists = make(map[uint32][]uint32)
	return s.ForEachChunk(func(startPage uint32, h ChunkHeader) error {
		if h.Type == ChunkFree {
			key := bucketKey(h.SelfLengthPages)
			s.freeLists[key] = append(s.freeLists[key], startPage)
		}
		return nil
	})
}

// AllocChunk reserves pages contiguous pages of the given type, preferring
// an exact-size free chunk, then splitting the smallest larger one, and
// finally growing the file when nothing fits (§4.3).
func (s *Storage) AllocChunk(pages uint32, typ ChunkType, ownerDirPage uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pages == 0 {
		return 0, pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeInvalidInput, "chunk allocation requires at least one page").
			WithField("pages")
	}

	if list, ok := s.freeLists[pages]; ok && len(list) > 0 {
		start := list[len(list)-1]
		s.freeLists[pages] = list[:len(list)-1]
		s.commitAlloc(start, pages, typ, ownerDirPage)
		return start, nil
	}

	bestKey, found := uint32(0), false
	for key, list := range s.freeLists {
		if key > pages && len(list) > 0 && (!found || key < bestKey) {
			bestKey, found = key, true
		}
	}
	if found {
		list := s.freeLists[bestKey]
		start := list[len(list)-1]
		s.freeLists[bestKey] = list[:len(list)-1]

		remainder := bestKey - pages
		remainderStart := start + pages
		s.commitAlloc(start, pages, typ, ownerDirPage)
		s.writeChunkHeader(remainderStart, ChunkHeader{
			Type:            ChunkFree,
			PrevLengthPages: pages,
			SelfLengthPages: remainder,
		})
		s.fixNextPrevLength(remainderStart, remainder)
		s.freeLists[remainder] = append(s.freeLists[remainder], remainderStart)
		return start, nil
	}

	start, err := s.growFile(pages)
	if err != nil {
		return 0, err
	}
	s.commitAlloc(start, pages, typ, ownerDirPage)
	return start, nil
}

func (s *Storage) commitAlloc(start, pages uint32, typ ChunkType, ownerDirPage uint32) {
	prev := s.ReadChunkHeader(start).PrevLengthPages
	s.writeChunkHeader(start, ChunkHeader{
		Type:            typ,
		PrevLengthPages: prev,
		SelfLengthPages: pages,
		OwnerDirPage:    ownerDirPage,
	})
}

// fixNextPrevLength updates the PrevLengthPages of the chunk immediately
// following [start, start+length) so backwards walks stay consistent.
func (s *Storage) fixNextPrevLength(start, length uint32) {
	next := start + length
	if next >= s.sizePages {
		return
	}
	h := s.ReadChunkHeader(next)
	h.PrevLengthPages = length
	s.writeChunkHeader(next, h)
}

// FreeChunk marks a chunk FREE and coalesces it with adjacent FREE
// neighbours, returning the resulting chunk to the appropriate free list
// bucket (§4.3).
func (s *Storage) FreeChunk(startPage uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.ReadChunkHeader(startPage)
	start := startPage
	length := h.SelfLengthPages

	if next := start + length; next < s.sizePages {
		nh := s.ReadChunkHeader(next)
		if nh.Type == ChunkFree {
			s.removeFromFreeList(next, nh.SelfLengthPages)
			length += nh.SelfLengthPages
		}
	}

	if h.PrevLengthPages > 0 && start >= h.PrevLengthPages {
		prevStart := start - h.PrevLengthPages
		ph := s.ReadChunkHeader(prevStart)
		if ph.Type == ChunkFree && ph.SelfLengthPages == h.PrevLengthPages {
			s.removeFromFreeList(prevStart, ph.SelfLengthPages)
			start = prevStart
			length += ph.SelfLengthPages
		}
	}

	s.writeChunkHeader(start, ChunkHeader{
		Type:            ChunkFree,
		PrevLengthPages: s.ReadChunkHeader(start).PrevLengthPages,
		SelfLengthPages: length,
	})
	s.fixNextPrevLength(start, length)
	s.freeLists[length] = append(s.freeLists[length], start)
	return nil
}

func (s *Storage) removeFromFreeList(start, length uint32) {
	list := s.freeLists[length]
	for i, p := range list {
		if p == start {
			s.freeLists[length] = append(list[:i], list[i+1:]...)
			return
		}
	}
}
