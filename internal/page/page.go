// Package page implements the data page codec (C2, spec.md §3/§4.2): a
// fixed-size buffer holding a small page header, a grow-up heap of key/value
// bytes, and a grow-down footer of fixed-size entry slots.
//
// Layout of a page buffer of length pageSize:
//
//	[0 .. HeaderSize)                     page header
//	[HeaderSize .. heap cursor)           key/value bytes, growing up
//	[slot footer .. pageSize)             entry slots, growing down
//
// Slot 0 is reserved: it is written once at page initialization with
// KeyOffset == 0, which callers use to recognize it as the header sentinel
// rather than a user entry.
package page

import (
	"encoding/binary"

	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"
)

// HeaderSize is the fixed size in bytes of the page header.
const HeaderSize = 16

// SlotSize is the fixed size in bytes of one entry slot.
const SlotSize = 28

// Flag is a bitset of per-entry attributes stored in a slot.
type Flag uint8

const (
	// FlagDeleted marks a lazy tombstone, recoverable by Compact.
	FlagDeleted Flag = 1 << iota
	// FlagLargeObject marks that the value lives in a LOB chunk (C5) and
	// the slot's value bytes are a fixed-size descriptor, not the value
	// itself.
	FlagLargeObject
	// FlagClean marks an entry as not needing write-back to the backing
	// store; only meaningful in cache mode (C9).
	FlagClean
)

// Header is the decoded form of a page's fixed header.
type Header struct {
	// EntryCount is the number of live slots, excluding the reserved
	// slot 0 sentinel.
	EntryCount uint16
	// FreeOffset is the heap write cursor: bytes [HeaderSize, FreeOffset)
	// are occupied key/value data.
	FreeOffset uint32
	// FreeBytes is the number of unused bytes between the heap cursor
	// and the slot footer.
	FreeBytes uint32
	// DeletedBytes is the number of heap bytes owned by tombstoned
	// entries, reclaimable by Compact.
	DeletedBytes uint32
}

// Slot is the decoded form of one fixed-size entry slot.
type Slot struct {
	KeyOffset      uint32
	KeyLen         uint32
	ValOffset      uint32
	ValLen         uint32
	HashFragment   uint16
	Flags          Flag
	AccessCount    uint16 // cache mode (C9): incremented on each hit
	LastAccessUnix uint32 // cache mode (C9): seconds since epoch, truncated
}

// Deleted reports whether FlagDeleted is set.
func (s Slot) Deleted() bool { return s.Flags&FlagDeleted != 0 }

// LargeObject reports whether FlagLargeObject is set.
func (s Slot) LargeObject() bool { return s.Flags&FlagLargeObject != 0 }

// Clean reports whether FlagClean is set.
func (s Slot) Clean() bool { return s.Flags&FlagClean != 0 }

// Init lays out an empty page of len(buf) bytes: a zeroed header, and slot 0
// written as the reserved sentinel (KeyOffset == 0).
func Init(buf []byte) {
	pageSize := uint32(len(buf))
	h := Header{
		EntryCount: 0,
		FreeOffset: HeaderSize,
		FreeBytes:  pageSize - HeaderSize - SlotSize,
	}
	writeHeader(buf, h)
	writeSlot(buf, 0, Slot{})
}

func readHeader(buf []byte) Header {
	return Header{
		EntryCount:   binary.LittleEndian.Uint16(buf[0:2]),
		FreeOffset:   binary.LittleEndian.Uint32(buf[4:8]),
		FreeBytes:    binary.LittleEndian.Uint32(buf[8:12]),
		DeletedBytes: binary.LittleEndian.Uint32(buf[12:16]),
	}
}

func writeHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint16(buf[0:2], h.EntryCount)
	binary.LittleEndian.PutUint32(buf[4:8], h.FreeOffset)
	binary.LittleEndian.PutUint32(buf[8:12], h.FreeBytes)
	binary.LittleEndian.PutUint32(buf[12:16], h.DeletedBytes)
}

// slotOffset returns the byte offset of entry slot index, counting down
// from the end of the page. Slot 0 occupies the last SlotSize bytes.
func slotOffset(pageSize int, index int) int {
	return pageSize - (index+1)*SlotSize
}

func readSlot(buf []byte, index int) Slot {
	off := slotOffset(len(buf), index)
	b := buf[off : off+SlotSize]
	return Slot{
		KeyOffset:      binary.LittleEndian.Uint32(b[0:4]),
		KeyLen:         binary.LittleEndian.Uint32(b[4:8]),
		ValOffset:      binary.LittleEndian.Uint32(b[8:12]),
		ValLen:         binary.LittleEndian.Uint32(b[12:16]),
		HashFragment:   binary.LittleEndian.Uint16(b[16:18]),
		Flags:          Flag(b[18]),
		AccessCount:    binary.LittleEndian.Uint16(b[20:22]),
		LastAccessUnix: binary.LittleEndian.Uint32(b[24:28]),
	}
}

func writeSlot(buf []byte, index int, s Slot) {
	off := slotOffset(len(buf), index)
	b := buf[off : off+SlotSize]
	binary.LittleEndian.PutUint32(b[0:4], s.KeyOffset)
	binary.LittleEndian.PutUint32(b[4:8], s.KeyLen)
	binary.LittleEndian.PutUint32(b[8:12], s.ValOffset)
	binary.LittleEndian.PutUint32(b[12:16], s.ValLen)
	binary.LittleEndian.PutUint16(b[16:18], s.HashFragment)
	b[18] = byte(s.Flags)
	b[19] = 0
	binary.LittleEndian.PutUint16(b[20:22], s.AccessCount)
	b[22], b[23] = 0, 0
	binary.LittleEndian.PutUint32(b[24:28], s.LastAccessUnix)
}

// Align rounds n up to the next multiple of alignment. alignment must be
// 1, 2, 4, or 8; callers validate this at database-open time
// (pkg/options.WithAlignment).
func Align(n uint32, alignment uint8) uint32 {
	a := uint32(alignment)
	return (n + a - 1) &^ (a - 1)
}

func hashFragment(hash uint32) uint16 {
	return uint16(hash >> 16)
}

// Lookup scans a page's live slots for key, prefiltering by hash fragment
// before the byte-by-byte comparison. It returns the slot index and the
// value bytes (a view into buf) on a hit.
func Lookup(buf []byte, hash uint32, key []byte) (index int, value []byte, ok bool) {
	if len(key) == 0 {
		return 0, nil, false
	}
	frag := hashFragment(hash)
	h := readHeader(buf)
	for i := 1; i <= int(h.EntryCount); i++ {
		s := readSlot(buf, i)
		if s.KeyOffset == 0 || s.Deleted() {
			continue
		}
		if s.HashFragment != frag {
			continue
		}
		if s.KeyLen != uint32(len(key)) {
			continue
		}
		if string(buf[s.KeyOffset:s.KeyOffset+s.KeyLen]) == string(key) {
			return i, buf[s.ValOffset : s.ValOffset+s.ValLen], true
		}
	}
	return 0, nil, false
}

// Insert appends key/val to the page's heap and writes a new footer slot
// for them, returning the new slot's index. It returns a NoRoom error
// (pkg/errors, maps to EFBIG) if there isn't enough free space even after
// an in-place Compact.
func Insert(buf []byte, key, val []byte, hash uint32, alignment uint8, flags Flag) (int, error) {
	if len(key) == 0 {
		return 0, pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeInvalidInput, "key must not be empty").
			WithField("key").WithRule("non_empty")
	}

	h := readHeader(buf)
	keySpace := Align(uint32(len(key)), alignment)
	valSpace := Align(uint32(len(val)), alignment)
	required := keySpace + valSpace + SlotSize

	if h.FreeBytes < required {
		if h.FreeBytes+h.DeletedBytes < required {
			return 0, pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeNoRoom, "page has insufficient free and reclaimable space")
		}
		Compact(buf, alignment)
		h = readHeader(buf)
		if h.FreeBytes < required {
			return 0, pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeNoRoom, "page has insufficient space after compaction")
		}
	}

	keyOff := h.FreeOffset
	copy(buf[keyOff:keyOff+uint32(len(key))], key)
	valOff := keyOff + keySpace
	copy(buf[valOff:valOff+uint32(len(val))], val)

	index := int(h.EntryCount) + 1
	writeSlot(buf, index, Slot{
		KeyOffset:    keyOff,
		KeyLen:       uint32(len(key)),
		ValOffset:    valOff,
		ValLen:       uint32(len(val)),
		HashFragment: hashFragment(hash),
		Flags:        flags,
	})

	h.EntryCount++
	h.FreeOffset = valOff + valSpace
	h.FreeBytes -= required
	writeHeader(buf, h)

	return index, nil
}

// Delete marks the slot at index as a tombstone. The heap space it
// occupies is reclaimed by a later Compact, not immediately.
func Delete(buf []byte, index int) error {
	if index <= 0 {
		return pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeInvalidInput, "index must reference a live user slot").
			WithField("index").WithProvided(index)
	}
	h := readHeader(buf)
	if index > int(h.EntryCount) {
		return pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeNotFound, "slot index out of range")
	}
	s := readSlot(buf, index)
	if s.Deleted() {
		return nil
	}
	s.Flags |= FlagDeleted
	writeSlot(buf, index, s)

	reclaimed := (s.ValOffset + s.ValLen) - s.KeyOffset
	h.DeletedBytes += reclaimed
	writeHeader(buf, h)
	return nil
}

// Compact rewrites the heap in place, dropping tombstoned entries and
// packing the remaining ones from HeaderSize upward, then recomputes
// FreeOffset/FreeBytes/DeletedBytes. Slot indices of surviving entries do
// not change; their KeyOffset/ValOffset fields are rewritten in place.
func Compact(buf []byte, alignment uint8) {
	h := readHeader(buf)
	cursor := uint32(HeaderSize)

	for i := 1; i <= int(h.EntryCount); i++ {
		s := readSlot(buf, i)
		if s.KeyOffset == 0 || s.Deleted() {
			continue
		}

		keySpace := Align(s.KeyLen, alignment)
		valSpace := Align(s.ValLen, alignment)

		if s.KeyOffset != cursor {
			copy(buf[cursor:cursor+s.KeyLen], buf[s.KeyOffset:s.KeyOffset+s.KeyLen])
		}
		newKeyOff := cursor
		newValOff := cursor + keySpace
		if s.ValOffset != newValOff {
			copy(buf[newValOff:newValOff+s.ValLen], buf[s.ValOffset:s.ValOffset+s.ValLen])
		}

		s.KeyOffset = newKeyOff
		s.ValOffset = newValOff
		writeSlot(buf, i, s)

		cursor += keySpace + valSpace
	}

	footerStart := slotOffset(len(buf), int(h.EntryCount)) + SlotSize
	h.FreeOffset = cursor
	h.DeletedBytes = 0
	if uint32(footerStart) > cursor {
		h.FreeBytes = uint32(footerStart) - cursor
	} else {
		h.FreeBytes = 0
	}
	writeHeader(buf, h)
}

// Iterator is an opaque cursor over a page's live entries (C6's
// per-page half of MDBM_ITER).
type Iterator struct {
	buf   []byte
	after int
}

// IterateFrom returns an iterator that yields entries after slot index
// after (use 0 to start from the beginning).
func IterateFrom(buf []byte, after int) *Iterator {
	return &Iterator{buf: buf, after: after}
}

// Next advances the iterator and returns the next live entry. ok is false
// once every slot has been visited.
func (it *Iterator) Next() (index int, key, value []byte, ok bool) {
	h := readHeader(it.buf)
	for it.after+1 <= int(h.EntryCount) {
		it.after++
		s := readSlot(it.buf, it.after)
		if s.KeyOffset == 0 || s.Deleted() {
			continue
		}
		k := it.buf[s.KeyOffset : s.KeyOffset+s.KeyLen]
		v := it.buf[s.ValOffset : s.ValOffset+s.ValLen]
		return it.after, k, v, true
	}
	return 0, nil, nil, false
}

// EntryCount returns the number of live-or-tombstoned user slots on buf,
// not counting the reserved sentinel.
func EntryCount(buf []byte) int {
	return int(readHeader(buf).EntryCount)
}

// FreeBytes returns the number of unused heap bytes currently available
// without compaction.
func FreeBytes(buf []byte) uint32 {
	return readHeader(buf).FreeBytes
}

// DeletedBytes returns the number of heap bytes owned by tombstoned
// entries, reclaimable by Compact.
func DeletedBytes(buf []byte) uint32 {
	return readHeader(buf).DeletedBytes
}

// SlotAt returns the decoded slot at index (0 is the reserved sentinel).
func SlotAt(buf []byte, index int) Slot {
	return readSlot(buf, index)
}

// Touch advances a slot's cache-mode access counter and last-access time,
// as done on every fetch (§4.9: "each entry carries an access-counter and
// a last-access-time, both advanced on fetch").
func Touch(buf []byte, index int, nowUnix uint32) error {
	h := readHeader(buf)
	if index <= 0 || index > int(h.EntryCount) {
		return pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeNotFound, "slot index out of range")
	}
	s := readSlot(buf, index)
	s.AccessCount++
	s.LastAccessUnix = nowUnix
	writeSlot(buf, index, s)
	return nil
}

// MarkClean sets FlagClean on a slot, making it eligible for
// EVICT_CLEAN_FIRST preference (§4.9 clean_func).
func MarkClean(buf []byte, index int) error {
	h := readHeader(buf)
	if index <= 0 || index > int(h.EntryCount) {
		return pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeNotFound, "slot index out of range")
	}
	s := readSlot(buf, index)
	s.Flags |= FlagClean
	writeSlot(buf, index, s)
	return nil
}
