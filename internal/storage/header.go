package storage

import (
	"encoding/binary"

	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"
	"github.com/iamNilotpal/pagekv/pkg/options"
)

// magic identifies the pagekv on-disk format (§3: "magic identifies a
// unique on-disk format; refusing to open on mismatch is the only
// supported cross-version behavior").
var magic = [4]byte{'P', 'G', 'K', 'V'}

// formatVersion is bumped whenever the on-disk layout changes incompatibly.
const formatVersion uint32 = 1

// headerFixedSize is the number of page 0 bytes occupied by the fixed
// header fields; the remainder of page 0 is reserved and, when the
// directory bitmap is small enough, holds it inline (§3 "Directory").
const headerFixedSize = 64

// directoryInlineCapacity is the largest directory bitmap page 0 can hold
// inline, per §3 ("inline in page 0 when its size <= 8 bytes").
const directoryInlineCapacity = 8

// Header is the decoded form of page 0.
type Header struct {
	Version uint32

	PageSize uint32

	MinShift uint8
	MaxShift uint8

	HashID    options.HashID
	CacheMode options.CacheMode

	SpillSize      uint32
	LargeObjects   bool
	Alignment      uint8
	PartitionCount uint32

	// SizePages is the file's high-water mark in pages, including page 0.
	SizePages uint32

	// DirectoryPageNumber is the first page of the DIR chunk holding the
	// directory bitmap, or 0 when the bitmap is stored inline below.
	DirectoryPageNumber uint32
	DirectoryInlineLen  uint8
	DirectoryInline     [directoryInlineCapacity]byte

	// StatsPageNumber is the page holding the C11 statistics block, or 0
	// if statistics tracking was disabled at open time.
	StatsPageNumber uint32
}

// NewHeader builds the initial header for a freshly created database file
// from the open options.
func NewHeader(opts *options.Options) Header {
	h := Header{
		Version:        formatVersion,
		PageSize:       opts.Page.Size,
		MinShift:       opts.Page.MinShift,
		MaxShift:       opts.Page.MaxShift,
		HashID:         opts.Page.HashID,
		CacheMode:      opts.Cache.Mode,
		SpillSize:      opts.Page.SpillSize,
		LargeObjects:   opts.Page.LargeObjects,
		Alignment:      opts.Page.Alignment,
		PartitionCount: opts.Lock.PartitionCount,
		SizePages:      1,
	}
	return h
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerFixedSize {
		return Header{}, pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeHeaderCorrupted, "page 0 shorter than fixed header size")
	}

	var gotMagic [4]byte
	copy(gotMagic[:], buf[0:4])
	if gotMagic != magic {
		return Header{}, pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeHeaderCorrupted, "magic number mismatch")
	}

	h := Header{
		Version:             binary.LittleEndian.Uint32(buf[4:8]),
		PageSize:             binary.LittleEndian.Uint32(buf[8:12]),
		MinShift:             buf[12],
		MaxShift:             buf[13],
		HashID:               options.HashID(buf[14]),
		CacheMode:            options.CacheMode(buf[15]),
		SpillSize:            binary.LittleEndian.Uint32(buf[16:20]),
		PartitionCount:       binary.LittleEndian.Uint32(buf[20:24]),
		SizePages:            binary.LittleEndian.Uint32(buf[24:28]),
		DirectoryPageNumber:  binary.LittleEndian.Uint32(buf[28:32]),
		DirectoryInlineLen:   buf[32],
		Alignment:            buf[33],
		LargeObjects:         buf[34] != 0,
		StatsPageNumber:      binary.LittleEndian.Uint32(buf[36:40]),
	}
	copy(h.DirectoryInline[:], buf[40:40+directoryInlineCapacity])

	if h.Version != formatVersion {
		return Header{}, pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeHeaderCorrupted, "unsupported on-disk format version").
			WithDetail("version", h.Version).WithDetail("supported", formatVersion)
	}

	return h, nil
}

func encodeHeader(buf []byte, h Header) {
	copy(buf[0:4], magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.PageSize)
	buf[12] = h.MinShift
	buf[13] = h.MaxShift
	buf[14] = byte(h.HashID)
	buf[15] = byte(h.CacheMode)
	binary.LittleEndian.PutUint32(buf[16:20], h.SpillSize)
	binary.LittleEndian.PutUint32(buf[20:24], h.PartitionCount)
	binary.LittleEndian.PutUint32(buf[24:28], h.SizePages)
	binary.LittleEndian.PutUint32(buf[28:32], h.DirectoryPageNumber)
	buf[32] = h.DirectoryInlineLen
	buf[33] = h.Alignment
	if h.LargeObjects {
		buf[34] = 1
	} else {
		buf[34] = 0
	}
	buf[35] = 0
	binary.LittleEndian.PutUint32(buf[36:40], h.StatsPageNumber)
	copy(buf[40:40+directoryInlineCapacity], h.DirectoryInline[:])
}
