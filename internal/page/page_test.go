package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPage(t *testing.T, size int) []byte {
	t.Helper()
	buf := make([]byte, size)
	Init(buf)
	return buf
}

func TestInsertAndLookup(t *testing.T) {
	buf := newPage(t, 512)

	idx, err := Insert(buf, []byte("alpha"), []byte("one"), 0xAAAA0001, 8, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, val, ok := Lookup(buf, 0xAAAA0001, []byte("alpha"))
	require.True(t, ok)
	assert.Equal(t, "one", string(val))

	_, _, ok = Lookup(buf, 0xAAAA0001, []byte("missing"))
	assert.False(t, ok)
}

func TestLookup_RejectsEmptyKey(t *testing.T) {
	buf := newPage(t, 256)
	_, _, ok := Lookup(buf, 1, nil)
	assert.False(t, ok)
}

func TestInsert_RejectsEmptyKey(t *testing.T) {
	buf := newPage(t, 256)
	_, err := Insert(buf, nil, []byte("v"), 1, 8, 0)
	assert.Error(t, err)
}

func TestInsert_NoRoom(t *testing.T) {
	buf := newPage(t, 128)
	var lastErr error
	for i := 0; i < 1000; i++ {
		_, err := Insert(buf, []byte{byte(i), byte(i >> 8)}, []byte("xxxxxxxxxxxxxxxx"), uint32(i), 8, 0)
		if err != nil {
			lastErr = err
			break
		}
	}
	require.Error(t, lastErr)
}

func TestDeleteThenCompactReclaimsSpace(t *testing.T) {
	buf := newPage(t, 256)

	idx1, err := Insert(buf, []byte("k1"), []byte("value-one"), 10, 8, 0)
	require.NoError(t, err)
	_, err = Insert(buf, []byte("k2"), []byte("value-two"), 20, 8, 0)
	require.NoError(t, err)

	before := readHeader(buf).FreeBytes

	require.NoError(t, Delete(buf, idx1))
	_, _, ok := Lookup(buf, 10, []byte("k1"))
	assert.False(t, ok, "deleted entry must not be found by lookup")

	Compact(buf, 8)
	after := readHeader(buf).FreeBytes
	assert.Greater(t, after, before)

	_, val, ok := Lookup(buf, 20, []byte("k2"))
	require.True(t, ok)
	assert.Equal(t, "value-two", string(val))
}

func TestDelete_OutOfRangeIndex(t *testing.T) {
	buf := newPage(t, 256)
	assert.Error(t, Delete(buf, 0))
	assert.Error(t, Delete(buf, 99))
}

func TestIterateFrom(t *testing.T) {
	buf := newPage(t, 512)

	keys := []string{"a", "b", "c"}
	for i, k := range keys {
		_, err := Insert(buf, []byte(k), []byte{byte(i)}, uint32(i), 8, 0)
		require.NoError(t, err)
	}

	it := IterateFrom(buf, 0)
	var seen []string
	for {
		_, k, _, ok := it.Next()
		if !ok {
			break
		}
		seen = append(seen, string(k))
	}
	assert.Equal(t, keys, seen)
}

func TestAlign(t *testing.T) {
	assert.Equal(t, uint32(8), Align(1, 8))
	assert.Equal(t, uint32(8), Align(8, 8))
	assert.Equal(t, uint32(16), Align(9, 8))
	assert.Equal(t, uint32(4), Align(3, 4))
	assert.Equal(t, uint32(1), Align(1, 1))
}

func TestSlotFlags(t *testing.T) {
	buf := newPage(t, 256)
	_, err := Insert(buf, []byte("k"), []byte("v"), 1, 8, FlagLargeObject)
	require.NoError(t, err)

	s := SlotAt(buf, 1)
	assert.True(t, s.LargeObject())
	assert.False(t, s.Deleted())
	assert.False(t, s.Clean())
}
