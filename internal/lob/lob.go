package lob

import (
	"encoding/binary"

	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"

	"github.com/iamNilotpal/pagekv/internal/storage"
)

// headerSize is the fixed size of the header written at the start of every
// LOB chunk's payload (after the chunk header itself): the exact value
// length, so a short final page doesn't get mistaken for part of the value.
const headerSize = 8

const lobHeaderMagic uint32 = 0x4C4F4200 // "LOB\0"

// New constructs a Store bound to an already-open backing file.
func New(config *Config) (*Store, error) {
	if config == nil || config.Store == nil || config.Logger == nil {
		return nil, pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeInvalidInput, "lob store configuration is required").
			WithField("config").WithRule("required").WithComponent("lob")
	}
	return &Store{store: config.Store, log: config.Logger}, nil
}

// pagesFor returns the number of whole pages needed to hold valueLen bytes
// plus the chunk header and the LOB header, the way a squashfs writer rounds
// a fragment's byte length up to whole blocks.
func pagesFor(valueLen int, pageSize uint32) uint32 {
	total := uint64(valueLen) + uint64(storage.ChunkHeaderSize) + uint64(headerSize)
	pages := (total + uint64(pageSize) - 1) / uint64(pageSize)
	if pages == 0 {
		pages = 1
	}
	return uint32(pages)
}

// Put spills value into a freshly allocated LOB chunk and returns a
// descriptor the caller stores on the value's home page (§4.5 lob_put).
func (s *Store) Put(value []byte) (Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pageSize := s.store.PageSize()
	pages := pagesFor(len(value), pageSize)

	page, err := s.store.AllocChunk(pages, storage.ChunkLOB, 0)
	if err != nil {
		return Descriptor{}, err
	}

	buf := s.store.ChunkBytes(page, pages)[storage.ChunkHeaderSize:]
	writeLOBHeader(buf, uint32(len(value)))
	copy(buf[headerSize:], value)

	s.store.SetChunkOccupancy(page, pages)

	return Descriptor{PageNumber: page, Length: uint32(len(value)), Pages: pages}, nil
}

// Get validates the LOB header at desc.PageNumber and returns a copy of the
// spilled value (§4.5 lob_get).
func (s *Store) Get(desc Descriptor) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch := s.store.ReadChunkHeader(desc.PageNumber)
	if ch.Type != storage.ChunkLOB {
		return nil, pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeChunkCorrupted, "expected chunk to be a large-object chunk").
			WithPageNumber(desc.PageNumber)
	}

	buf := s.store.ChunkBytes(desc.PageNumber, ch.SelfLengthPages)[storage.ChunkHeaderSize:]
	length, err := readLOBHeader(buf)
	if err != nil {
		return nil, err
	}
	if length != desc.Length {
		return nil, pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeChunkCorrupted, "large-object length does not match its descriptor").
			WithPageNumber(desc.PageNumber).WithDetail("headerLength", length).WithDetail("descriptorLength", desc.Length)
	}
	if int(headerSize)+int(length) > len(buf) {
		return nil, pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeChunkCorrupted, "large-object length overruns its chunk").
			WithPageNumber(desc.PageNumber)
	}

	value := make([]byte, length)
	copy(value, buf[headerSize:headerSize+length])
	return value, nil
}

// Update overwrites an existing LOB in place when newValue still fits in
// its current chunk, otherwise allocates a new chunk and frees the old one
// (§4.5: "in-place update ... only attempted when the new size fits").
func (s *Store) Update(desc Descriptor, newValue []byte) (Descriptor, error) {
	s.mu.Lock()
	pageSize := s.store.PageSize()
	capacityBytes := uint64(desc.Pages)*uint64(pageSize) - storage.ChunkHeaderSize - headerSize
	fits := uint64(len(newValue)) <= capacityBytes
	s.mu.Unlock()

	if fits {
		s.mu.Lock()
		defer s.mu.Unlock()
		buf := s.store.ChunkBytes(desc.PageNumber, desc.Pages)[storage.ChunkHeaderSize:]
		writeLOBHeader(buf, uint32(len(newValue)))
		copy(buf[headerSize:], newValue)
		return Descriptor{PageNumber: desc.PageNumber, Length: uint32(len(newValue)), Pages: desc.Pages}, nil
	}

	next, err := s.Put(newValue)
	if err != nil {
		return Descriptor{}, err
	}
	if err := s.Free(desc); err != nil {
		return Descriptor{}, err
	}
	return next, nil
}

// Free returns a LOB chunk to the storage free list (§4.5 lob_free).
func (s *Store) Free(desc Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.FreeChunk(desc.PageNumber)
}

func writeLOBHeader(buf []byte, length uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], lobHeaderMagic)
	binary.LittleEndian.PutUint32(buf[4:8], length)
}

func readLOBHeader(buf []byte) (uint32, error) {
	if len(buf) < headerSize {
		return 0, pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeChunkCorrupted, "large-object chunk shorter than its header")
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != lobHeaderMagic {
		return 0, pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeChunkCorrupted, "large-object header magic mismatch")
	}
	return binary.LittleEndian.Uint32(buf[4:8]), nil
}
