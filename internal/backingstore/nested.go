package backingstore

import (
	"sync"

	pkgerrors "github.com/iamNilotpal/pagekv/pkg/errors"
)

// NestedHandle is the subset of a pagekv handle the MDBM-style nested
// provider needs: another database owned and closed by the cache handle
// wrapping it (§4.10: "the cache handle then owns and closes the nested
// handle").
type NestedHandle interface {
	Fetch(key []byte) ([]byte, error)
	Store(key, value []byte) error
	Delete(key []byte) error
	Close() error
}

// NestedOpener constructs a fresh NestedHandle, used both for the initial
// Init and for Dup.
type NestedOpener func() (NestedHandle, error)

// NestedProvider is the MDBM backing-store provider: another pagekv handle,
// owned outright by this provider.
type NestedProvider struct {
	mu     sync.Mutex
	opener NestedOpener
	handle NestedHandle
}

// NewNestedProvider builds a NestedProvider around opener. Call Init before use.
func NewNestedProvider(opener NestedOpener) (*NestedProvider, error) {
	if opener == nil {
		return nil, pkgerrors.NewValidationError(nil, pkgerrors.ErrorCodeInvalidInput, "nested provider requires an opener").
			WithField("opener").WithComponent("backingstore.nested")
	}
	return &NestedProvider{opener: opener}, nil
}

// Init opens the nested handle.
func (p *NestedProvider) Init() error {
	handle, err := p.opener()
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.handle = handle
	p.mu.Unlock()
	return nil
}

// Term closes the nested handle.
func (p *NestedProvider) Term() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return nil
	}
	return p.handle.Close()
}

// Lock is a no-op: the nested handle manages its own internal locking.
func (p *NestedProvider) Lock() error { return nil }

// Unlock is a no-op; see Lock.
func (p *NestedProvider) Unlock() error { return nil }

// Fetch delegates to the nested handle.
func (p *NestedProvider) Fetch(key []byte) ([]byte, error) {
	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()
	return handle.Fetch(key)
}

// Store delegates to the nested handle.
func (p *NestedProvider) Store(key, value []byte) error {
	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()
	return handle.Store(key, value)
}

// Delete delegates to the nested handle.
func (p *NestedProvider) Delete(key []byte) error {
	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()
	return handle.Delete(key)
}

// Dup opens a second, independent nested handle via the same opener.
func (p *NestedProvider) Dup() (Provider, error) {
	dup, err := NewNestedProvider(p.opener)
	if err != nil {
		return nil, err
	}
	if err := dup.Init(); err != nil {
		return nil, err
	}
	return dup, nil
}
