// Package storage owns the single memory-mapped backing file that holds a
// pagekv database (C3, §3/§4.3/§6): the page 0 header, the chunk manager's
// typed free lists, and mmap/munmap/msync lifecycle around the whole
// thing.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"
	"github.com/iamNilotpal/pagekv/pkg/filesys"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// dataFileName is the backing file's fixed name inside Options.DataDir.
// Unlike the teacher's segment-rotated log, a pagekv database never
// rotates files; there is exactly one.
const dataFileName = "pagekv.db"

// growthFactor governs how the high-water mark expands once the file
// can't satisfy an allocation, per §4.3 ("round file growth to a
// power-of-two high-water mark").
const growthFactor = 2

// New opens or creates the backing file described by config.Options,
// mmaps it, and (for a fresh file) writes an initial header and a single
// FREE chunk spanning the remainder of the file.
func New(config *Config) (*Storage, error) {
	if config == nil || config.Options == nil || config.Logger == nil {
		return nil, fmt.Errorf("invalid configuration")
	}

	opts := config.Options
	config.Logger.Infow("initializing storage", "dataDir", opts.DataDir, "pageSize", opts.Page.Size)

	if !opts.ReadOnly {
		if err := filesys.CreateDir(opts.DataDir, 0755, true); err != nil {
			return nil, pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to create data directory").
				WithPath(opts.DataDir)
		}
	}

	path := filepath.Join(opts.DataDir, dataFileName)
	exists, err := filesys.Exists(path)
	if err != nil {
		return nil, pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to stat data file").WithPath(path)
	}

	flags := os.O_RDWR
	if opts.ReadOnly {
		flags = os.O_RDONLY
	}
	if !exists && !opts.ReadOnly {
		flags |= os.O_CREATE
	}
	if opts.Truncate && !opts.ReadOnly {
		flags |= os.O_TRUNC
		exists = false
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, pkgerrors.ClassifyFileOpenError(err, path, dataFileName)
	}

	s := &Storage{file: file, path: path, options: opts, log: config.Logger}

	if exists {
		if err := s.openExisting(); err != nil {
			file.Close()
			return nil, err
		}
	} else {
		if err := s.createNew(); err != nil {
			file.Close()
			return nil, err
		}
	}

	if err := s.rebuildFreeLists(); err != nil {
		s.Close()
		return nil, err
	}

	config.Logger.Infow("storage initialized", "path", path, "sizePages", s.sizePages, "pageSize", s.pageSize)
	return s, nil
}

func (s *Storage) createNew() error {
	s.pageSize = s.options.Page.Size
	initialPages := uint32(4)
	if limit := s.options.Page.LimitPages; limit > 0 && limit < initialPages {
		initialPages = limit
	}
	if initialPages < 2 {
		initialPages = 2
	}

	if err := s.file.Truncate(int64(initialPages) * int64(s.pageSize)); err != nil {
		return pkgerrors.ClassifySyncError(err, dataFileName, s.path, 0)
	}

	data, err := mmapFile(s.file, int(initialPages)*int(s.pageSize))
	if err != nil {
		return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to mmap data file").WithPath(s.path)
	}
	s.data = data
	s.sizePages = initialPages

	header := NewHeader(s.options)
	header.SizePages = initialPages
	encodeHeader(s.data[0:s.pageSize], header)

	encodeChunkHeader(s.data[uint64(s.pageSize):uint64(s.pageSize)+ChunkHeaderSize], ChunkHeader{
		Type:            ChunkFree,
		SelfLengthPages: initialPages - 1,
	})

	return s.Sync()
}

func (s *Storage) openExisting() error {
	info, err := s.file.Stat()
	if err != nil {
		return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to stat data file").WithPath(s.path)
	}
	if info.Size() == 0 {
		return s.createNew()
	}

	probe := make([]byte, headerFixedSize)
	if _, err := s.file.ReadAt(probe, 0); err != nil {
		return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeHeaderReadFailure, "failed to read page 0").WithPath(s.path)
	}
	probeHeader, err := decodeHeader(probe)
	if err != nil {
		return err
	}

	s.pageSize = probeHeader.PageSize
	totalPages := uint32(info.Size() / int64(s.pageSize))

	data, err := mmapFile(s.file, int(totalPages)*int(s.pageSize))
	if err != nil {
		return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to mmap data file").WithPath(s.path)
	}
	s.data = data
	s.sizePages = totalPages
	return nil
}

func mmapFile(f *os.File, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// Header decodes the current page 0 header.
func (s *Storage) Header() (Header, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return decodeHeader(s.data[0:headerFixedSize])
}

// WriteHeader re-encodes h into page 0.
func (s *Storage) WriteHeader(h Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	encodeHeader(s.data[0:s.pageSize], h)
}

// Path returns the backing file's full path, used by callers (the lock
// manager, administrative tooling) that derive their own paths from it.
func (s *Storage) Path() string { return s.path }

// File returns the backing *os.File, used by callers (windowed mode) that
// need to map their own view of it independent of Storage's own mapping.
func (s *Storage) File() *os.File { return s.file }

// PageSize returns the fixed page size in bytes.
func (s *Storage) PageSize() uint32 { return s.pageSize }

// SizePages returns the file's current size in pages.
func (s *Storage) SizePages() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sizePages
}

// growFile extends the backing file to hold at least minNewPages
// additional pages beyond the current high-water mark, doubling
// (growthFactor) until satisfied and never exceeding
// Options.Page.LimitPages when one is configured. It returns the start
// page of a new FREE chunk covering the grown region.
func (s *Storage) growFile(minNewPages uint32) (uint32, error) {
	oldSize := s.sizePages
	newSize := oldSize
	for newSize-oldSize < minNewPages {
		if newSize == 0 {
			newSize = minNewPages
			break
		}
		newSize *= growthFactor
	}

	limit := s.options.Page.LimitPages
	if limit > 0 && newSize > limit {
		if oldSize+minNewPages > limit {
			return 0, pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeNoRoom, "growing the file would exceed the configured page limit").
				WithDetail("limitPages", limit).WithDetail("requestedPages", oldSize+minNewPages)
		}
		newSize = limit
	}

	if err := unix.Munmap(s.data); err != nil {
		return 0, pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to unmap data file before growth").WithPath(s.path)
	}

	if err := s.file.Truncate(int64(newSize) * int64(s.pageSize)); err != nil {
		remapped, remapErr := mmapFile(s.file, int(oldSize)*int(s.pageSize))
		if remapErr == nil {
			s.data = remapped
		}
		return 0, pkgerrors.ClassifySyncError(err, dataFileName, s.path, 0)
	}

	data, err := mmapFile(s.file, int(newSize)*int(s.pageSize))
	if err != nil {
		return 0, pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to remap data file after growth").WithPath(s.path)
	}
	s.data = data

	newChunkStart := oldSize
	newChunkLen := newSize - oldSize
	encodeChunkHeader(s.data[uint64(newChunkStart)*uint64(s.pageSize):], ChunkHeader{
		Type:            ChunkFree,
		SelfLengthPages: newChunkLen,
	})

	header, err := decodeHeader(s.data[0:headerFixedSize])
	if err != nil {
		return 0, err
	}
	header.SizePages = newSize
	encodeHeader(s.data[0:s.pageSize], header)

	s.sizePages = newSize
	s.log.Infow("grew data file", "oldSizePages", oldSize, "newSizePages", newSize)
	return newChunkStart, nil
}

// Sync flushes dirty mapped pages to disk (msync), honoring
// Options.Fsync's choice between asynchronous and synchronous flush.
func (s *Storage) Sync() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flag := unix.MS_ASYNC
	if s.options.Fsync {
		flag = unix.MS_SYNC
	}
	if err := unix.Msync(s.data, flag); err != nil {
		return pkgerrors.ClassifySyncError(err, dataFileName, s.path, 0)
	}
	return nil
}

// Close unmaps the backing file and closes its file descriptor. Calling
// Close more than once is a no-op.
func (s *Storage) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.data != nil {
		if syncErr := unix.Msync(s.data, unix.MS_SYNC); syncErr != nil {
			err = multierr.Append(err, pkgerrors.ClassifySyncError(syncErr, dataFileName, s.path, 0))
		}
		if unmapErr := unix.Munmap(s.data); unmapErr != nil {
			err = multierr.Append(err, pkgerrors.NewStorageError(unmapErr, pkgerrors.ErrorCodeIO, "failed to munmap data file").WithPath(s.path))
		}
		s.data = nil
	}

	if s.file != nil {
		if closeErr := s.file.Close(); closeErr != nil {
			err = multierr.Append(err, pkgerrors.NewStorageError(closeErr, pkgerrors.ErrorCodeIO, "failed to close data file").WithPath(s.path))
		}
		s.file = nil
	}

	return err
}

// Closed reports whether Close has already run.
func (s *Storage) Closed() bool { return s.closed.Load() }
