package backingstore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"
	"github.com/iamNilotpal/pagekv/pkg/slotfile"
	"golang.org/x/sys/unix"
)

// fileSlotHeaderSize is the per-slot key-length/value-length prefix: two
// uint32s ahead of the raw key and value bytes.
const fileSlotHeaderSize = 8

// FileProviderConfig describes where the FILE provider's slot file lives and
// how big each fixed slot is. SlotSize must be large enough to hold the
// header plus the largest key/value pair ever stored; this provider is
// intended as a demo backing store, not a general-purpose one (§4.10).
type FileProviderConfig struct {
	DataDir  string
	SlotDir  string
	Prefix   string
	SlotSize uint32
}

// FileProvider is the FILE backing-store provider: a side file divided into
// fixed-size slots, named and discovered via the slotfile naming scheme.
type FileProvider struct {
	mu       sync.Mutex
	config   FileProviderConfig
	path     string
	file     *os.File
	index    map[string]int64
	nextSlot int64
}

// NewFileProvider builds a FileProvider against the given configuration.
// Call Init before use.
func NewFileProvider(config FileProviderConfig) (*FileProvider, error) {
	if config.DataDir == "" || config.SlotDir == "" || config.Prefix == "" {
		return nil, pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeInvalidInput, "file provider configuration is incomplete").
			WithField("dataDir/slotDir/prefix").WithComponent("backingstore.file")
	}
	if config.SlotSize <= fileSlotHeaderSize {
		return nil, pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeInvalidInput, "slot size must exceed the slot header").
			WithField("slotSize").WithComponent("backingstore.file")
	}
	return &FileProvider{config: config, index: make(map[string]int64)}, nil
}

// Init opens the latest slot file generation if one exists, rebuilding its
// in-memory key index by a full scan; otherwise it creates generation 1.
func (p *FileProvider) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	dir := filepath.Join(p.config.DataDir, p.config.SlotDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pkgerrors.ClassifyFileOpenError(err, dir, p.config.Prefix)
	}

	genID, info, err := slotfile.GetLatestSlotFileInfo(p.config.DataDir, p.config.SlotDir, p.config.Prefix)
	if err != nil {
		return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to discover slot file")
	}

	var path string
	if info == nil {
		path = filepath.Join(dir, slotfile.GenerateSlotFileName(genID, p.config.Prefix))
	} else {
		name, err := slotfile.GetLatestSlotFileName(p.config.DataDir, p.config.SlotDir, p.config.Prefix)
		if err != nil {
			return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to resolve slot file path")
		}
		path = name
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return pkgerrors.ClassifyFileOpenError(err, path, p.config.Prefix)
	}

	p.path = path
	p.file = file
	return p.rebuildIndex()
}

func (p *FileProvider) rebuildIndex() error {
	stat, err := p.file.Stat()
	if err != nil {
		return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to stat slot file")
	}

	slot := make([]byte, p.config.SlotSize)
	var offset int64
	for offset < stat.Size() {
		if _, err := p.file.ReadAt(slot, offset); err != nil {
			break
		}
		keyLen := binary.LittleEndian.Uint32(slot[0:4])
		if keyLen > 0 && keyLen <= p.config.SlotSize-fileSlotHeaderSize {
			key := string(slot[fileSlotHeaderSize : fileSlotHeaderSize+keyLen])
			p.index[key] = offset
		}
		offset += int64(p.config.SlotSize)
	}
	p.nextSlot = offset / int64(p.config.SlotSize)
	return nil
}

// Term closes the slot file.
func (p *FileProvider) Term() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return nil
	}
	return p.file.Close()
}

// Lock takes a whole-file exclusive advisory lock around the caller's
// fetch/store/delete sequence.
func (p *FileProvider) Lock() error {
	if err := unix.Flock(int(p.file.Fd()), unix.LOCK_EX); err != nil {
		return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to lock slot file")
	}
	return nil
}

// Unlock releases what Lock acquired.
func (p *FileProvider) Unlock() error {
	if err := unix.Flock(int(p.file.Fd()), unix.LOCK_UN); err != nil {
		return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to unlock slot file")
	}
	return nil
}

// Fetch returns the value stored for key, reading its slot directly off
// disk rather than trusting an in-memory copy.
func (p *FileProvider) Fetch(key []byte) ([]byte, error) {
	p.mu.Lock()
	offset, ok := p.index[string(key)]
	p.mu.Unlock()
	if !ok {
		return nil, pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeNotFound, "key not present in backing file")
	}

	slot := make([]byte, p.config.SlotSize)
	if _, err := p.file.ReadAt(slot, offset); err != nil {
		return nil, pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to read slot")
	}

	keyLen := binary.LittleEndian.Uint32(slot[0:4])
	valLen := binary.LittleEndian.Uint32(slot[4:8])
	value := make([]byte, valLen)
	copy(value, slot[fileSlotHeaderSize+keyLen:fileSlotHeaderSize+keyLen+valLen])
	return value, nil
}

// Store writes key/value into an existing slot if key is already present,
// or appends a new slot otherwise.
func (p *FileProvider) Store(key, value []byte) error {
	if fileSlotHeaderSize+uint32(len(key))+uint32(len(value)) > p.config.SlotSize {
		return pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeNoRoom, "key/value pair exceeds slot size")
	}

	slot := make([]byte, p.config.SlotSize)
	binary.LittleEndian.PutUint32(slot[0:4], uint32(len(key)))
	binary.LittleEndian.PutUint32(slot[4:8], uint32(len(value)))
	copy(slot[fileSlotHeaderSize:], key)
	copy(slot[fileSlotHeaderSize+uint32(len(key)):], value)

	p.mu.Lock()
	defer p.mu.Unlock()

	offset, exists := p.index[string(key)]
	if !exists {
		offset = p.nextSlot * int64(p.config.SlotSize)
		p.nextSlot++
	}

	if _, err := p.file.WriteAt(slot, offset); err != nil {
		return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to write slot")
	}
	p.index[string(key)] = offset
	return nil
}

// Delete zeroes key's slot and removes it from the index.
func (p *FileProvider) Delete(key []byte) error {
	p.mu.Lock()
	offset, ok := p.index[string(key)]
	if !ok {
		p.mu.Unlock()
		return pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeNotFound, "key not present in backing file")
	}
	delete(p.index, string(key))
	p.mu.Unlock()

	zero := make([]byte, p.config.SlotSize)
	if _, err := p.file.WriteAt(zero, offset); err != nil {
		return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to clear slot")
	}
	return nil
}

// Dup opens an independent FileProvider handle against the same slot file.
func (p *FileProvider) Dup() (Provider, error) {
	dup, err := NewFileProvider(p.config)
	if err != nil {
		return nil, err
	}
	if err := dup.Init(); err != nil {
		return nil, err
	}
	return dup, nil
}
