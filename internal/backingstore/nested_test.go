package backingstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	data   map[string][]byte
	closed bool
}

func newFakeHandle() *fakeHandle { return &fakeHandle{data: make(map[string][]byte)} }

func (f *fakeHandle) Fetch(key []byte) ([]byte, error) { return f.data[string(key)], nil }
func (f *fakeHandle) Store(key, value []byte) error    { f.data[string(key)] = value; return nil }
func (f *fakeHandle) Delete(key []byte) error           { delete(f.data, string(key)); return nil }
func (f *fakeHandle) Close() error                      { f.closed = true; return nil }

func TestNestedProvider_DelegatesToHandle(t *testing.T) {
	inner := newFakeHandle()
	p, err := NewNestedProvider(func() (NestedHandle, error) { return inner, nil })
	require.NoError(t, err)
	require.NoError(t, p.Init())

	require.NoError(t, p.Store([]byte("k"), []byte("v")))
	value, err := p.Fetch([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)

	require.NoError(t, p.Term())
	require.True(t, inner.closed)
}

func TestNestedProvider_DupOpensIndependentHandle(t *testing.T) {
	var opened int
	opener := func() (NestedHandle, error) {
		opened++
		return newFakeHandle(), nil
	}

	p, err := NewNestedProvider(opener)
	require.NoError(t, err)
	require.NoError(t, p.Init())

	dup, err := p.Dup()
	require.NoError(t, err)
	require.Equal(t, 2, opened)

	require.NoError(t, dup.Store([]byte("k"), []byte("dup-value")))
	_, err = p.Fetch([]byte("k"))
	require.NoError(t, err)
}
