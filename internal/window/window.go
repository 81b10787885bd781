package window

import (
	"container/list"

	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// New validates config and reserves an (initially empty) window.
func New(config *Config) (*Window, error) {
	if config == nil || config.File == nil || config.Logger == nil || config.PageSize == 0 {
		return nil, pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeInvalidInput, "window configuration is required").
			WithField("config").WithRule("required").WithComponent("window")
	}

	if config.Size < 2*config.PageSize {
		return nil, pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeInvalidInput, "window size must be at least 2 pages").
			WithField("size").WithProvided(config.Size).WithComponent("window")
	}

	systemPageSize := uint32(unix.Getpagesize())
	if config.Size%systemPageSize != 0 {
		return nil, pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeInvalidInput, "window size must be a multiple of the system page size").
			WithField("size").WithProvided(config.Size).WithComponent("window")
	}

	return &Window{
		file:      config.File,
		pageSize:  config.PageSize,
		slotCount: config.Size / config.PageSize,
		order:     list.New(),
		index:     make(map[uint32]*list.Element),
		log:       config.Logger,
	}, nil
}

// Acquire resolves a span of pages pages long starting at pageNumber to a
// mapped slot, bumping it to most-recently-used, mapping it fresh (after
// evicting LRU slots to make room) on a miss (§4.8).
func (w *Window) Acquire(pageNumber uint32, pages uint32) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if pages == 0 {
		pages = 1
	}
	if pages > w.slotCount {
		return nil, pkgerrors.NewStorageError(nil, pkgerrors.ErrorCodeNoRoom, "span exceeds window capacity").
			WithDetail("pages", pages).WithDetail("capacity", w.slotCount)
	}

	if el, ok := w.index[pageNumber]; ok {
		w.order.MoveToFront(el)
		return el.Value.(*slot).data, nil
	}

	for w.used+pages > w.slotCount && w.order.Len() > 0 {
		if err := w.evictLRU(); err != nil {
			return nil, err
		}
	}

	data, err := unix.Mmap(
		int(w.file.Fd()),
		int64(pageNumber)*int64(w.pageSize),
		int(pages)*int(w.pageSize),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to map window slot").
			WithDetail("pageNumber", pageNumber).WithDetail("pages", pages)
	}

	s := &slot{pageNumber: pageNumber, pages: pages, data: data}
	el := w.order.PushFront(s)
	w.index[pageNumber] = el
	w.used += pages

	return data, nil
}

func (w *Window) evictLRU() error {
	back := w.order.Back()
	if back == nil {
		return nil
	}
	s := back.Value.(*slot)
	if err := unix.Munmap(s.data); err != nil {
		return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to unmap evicted window slot").
			WithDetail("pageNumber", s.pageNumber)
	}
	w.order.Remove(back)
	delete(w.index, s.pageNumber)
	w.used -= s.pages
	return nil
}

// Sync flushes the slot holding pageNumber to the backing file, if mapped.
func (w *Window) Sync(pageNumber uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	el, ok := w.index[pageNumber]
	if !ok {
		return nil
	}
	s := el.Value.(*slot)
	if err := unix.Msync(s.data, unix.MS_SYNC); err != nil {
		return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to sync window slot").
			WithDetail("pageNumber", pageNumber)
	}
	return nil
}

// Close unmaps every resident slot. The window must not be used afterward.
func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	for el := w.order.Front(); el != nil; el = el.Next() {
		s := el.Value.(*slot)
		if unmapErr := unix.Munmap(s.data); unmapErr != nil {
			err = multierr.Append(err, unmapErr)
		}
	}
	w.order.Init()
	w.index = make(map[uint32]*list.Element)
	w.used = 0
	return err
}

// Resident reports how many pages are currently mapped.
func (w *Window) Resident() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.used
}

// Capacity reports the window's total page capacity.
func (w *Window) Capacity() uint32 {
	return w.slotCount
}
