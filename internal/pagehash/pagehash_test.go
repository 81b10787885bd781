package pagehash

import (
	"testing"

	"github.com/iamNilotpal/pagekv/pkg/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum_Deterministic(t *testing.T) {
	ids := []options.HashID{
		options.HashFNV, options.HashCRC32, options.HashEJB, options.HashPHONG,
		options.HashOZ, options.HashTorek, options.HashSTL, options.HashMD5,
		options.HashSHA1, options.HashJenkins, options.HashHsieh,
	}

	key := []byte("user:1234:session")
	for _, id := range ids {
		a := Sum(key, id)
		b := Sum(key, id)
		assert.Equalf(t, a, b, "hash id %d not deterministic", id)
	}
}

func TestSum_DifferentKeysDiffer(t *testing.T) {
	ids := []options.HashID{
		options.HashFNV, options.HashCRC32, options.HashEJB, options.HashPHONG,
		options.HashOZ, options.HashTorek, options.HashSTL, options.HashMD5,
		options.HashSHA1, options.HashJenkins, options.HashHsieh,
	}

	for _, id := range ids {
		a := Sum([]byte("alpha"), id)
		b := Sum([]byte("beta"), id)
		assert.NotEqualf(t, a, b, "hash id %d collided on distinct short keys", id)
	}
}

func TestSum_UnknownIDFallsBackToFNV(t *testing.T) {
	key := []byte("fallback-key")
	require.Equal(t, Sum(key, options.HashFNV), Sum(key, options.HashID(999)))
}

func TestSum_EmptyKey(t *testing.T) {
	ids := []options.HashID{
		options.HashFNV, options.HashCRC32, options.HashEJB, options.HashPHONG,
		options.HashOZ, options.HashTorek, options.HashSTL, options.HashMD5,
		options.HashSHA1, options.HashJenkins, options.HashHsieh,
	}
	for _, id := range ids {
		assert.NotPanics(t, func() { Sum(nil, id) })
	}
}

func TestPartitionOf(t *testing.T) {
	assert.Equal(t, uint32(0), PartitionOf(123456, 0))
	assert.Equal(t, uint32(42)%7, PartitionOf(42, 7))

	for h := uint32(0); h < 100; h++ {
		p := PartitionOf(h, 8)
		assert.Less(t, p, uint32(8))
	}
}

func TestHsieh_VariousLengths(t *testing.T) {
	for n := 0; n < 12; n++ {
		key := make([]byte, n)
		for i := range key {
			key[i] = byte('a' + i%26)
		}
		assert.NotPanics(t, func() { hsieh(key) })
	}
}
