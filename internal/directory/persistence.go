package directory

import (
	"encoding/binary"

	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"

	"github.com/iamNilotpal/pagekv/internal/storage"
)

// entrySize is the encoded size of one (node, page) page-table entry.
const entrySize = 8 + 4

// persist writes the directory's current state back to page 0 (when it's
// still a single unsplit root) or to its DIR chunk (once more than one
// leaf exists, since page 0 only has room for one page reference).
func (d *Directory) persist() error {
	if len(d.pages) <= 1 {
		var rootPage uint32
		for _, p := range d.pages {
			rootPage = p
		}
		return d.saveInline(rootPage)
	}
	return d.persistChunk()
}

func (d *Directory) encodedSize() int {
	return 4 + 4 + len(d.bits) + 4 + len(d.pages)*entrySize
}

func (d *Directory) persistChunk() error {
	needed := d.encodedSize()
	pageSize := int(d.store.PageSize())
	pagesNeeded := uint32((needed + ChunkHeaderReserve + pageSize - 1) / pageSize)
	if pagesNeeded == 0 {
		pagesNeeded = 1
	}

	header, err := d.store.Header()
	if err != nil {
		return err
	}

	oldChunk := uint32(0)
	if header.DirectoryInlineLen == 0 {
		oldChunk = header.DirectoryPageNumber
	}

	newChunk, err := d.store.AllocChunk(pagesNeeded, storage.ChunkDir, 0)
	if err != nil {
		return err
	}

	buf := d.store.ChunkBytes(newChunk, pagesNeeded)[storage.ChunkHeaderSize:]
	binary.LittleEndian.PutUint32(buf[0:4], uint32(d.currentShift))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(d.bits)))
	copy(buf[8:8+len(d.bits)], d.bits)

	cursor := 8 + len(d.bits)
	binary.LittleEndian.PutUint32(buf[cursor:cursor+4], uint32(len(d.pages)))
	cursor += 4
	for node, page := range d.pages {
		binary.LittleEndian.PutUint64(buf[cursor:cursor+8], node)
		binary.LittleEndian.PutUint32(buf[cursor+8:cursor+12], page)
		cursor += entrySize
	}

	header.DirectoryInlineLen = 0
	header.DirectoryPageNumber = newChunk
	d.store.WriteHeader(header)

	if oldChunk != 0 && oldChunk != newChunk {
		if err := d.store.FreeChunk(oldChunk); err != nil {
			return err
		}
	}

	return nil
}

// ChunkHeaderReserve keeps a little slack past storage.ChunkHeaderSize so
// size estimates round generously rather than landing exactly on a page
// boundary and needing a second pass.
const ChunkHeaderReserve = storage.ChunkHeaderSize

func (d *Directory) loadChunk(startPage uint32) error {
	length := d.store.ReadChunkHeader(startPage).SelfLengthPages
	buf := d.store.ChunkBytes(startPage, length)[storage.ChunkHeaderSize:]

	currentShift := binary.LittleEndian.Uint32(buf[0:4])
	bitmapLen := binary.LittleEndian.Uint32(buf[4:8])
	if int(bitmapLen) > len(buf)-8 {
		return pkgerrors.NewDirectoryCorruptionError("load", startPage, nil).WithDetail("bitmapLen", bitmapLen)
	}

	d.currentShift = uint8(currentShift)
	d.bits = append([]byte(nil), buf[8:8+bitmapLen]...)

	cursor := int(8 + bitmapLen)
	entryCount := binary.LittleEndian.Uint32(buf[cursor : cursor+4])
	cursor += 4

	d.pages = make(map[uint64]uint32, entryCount)
	for i := uint32(0); i < entryCount; i++ {
		node := binary.LittleEndian.Uint64(buf[cursor : cursor+8])
		page := binary.LittleEndian.Uint32(buf[cursor+8 : cursor+12])
		d.pages[node] = page
		cursor += entrySize
	}

	return nil
}
