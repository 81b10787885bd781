package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCounters_TrackEachOperation(t *testing.T) {
	s := New(&Config{})
	s.RecordFetch(true, 0)
	s.RecordFetch(false, 0)
	s.RecordStore(0)
	s.RecordDelete(0)
	s.RecordEviction()
	s.RecordSplit()

	snap := s.Snapshot()
	require.Equal(t, uint64(2), snap.Fetches)
	require.Equal(t, uint64(1), snap.Hits)
	require.Equal(t, uint64(1), snap.Misses)
	require.Equal(t, uint64(1), snap.Stores)
	require.Equal(t, uint64(1), snap.Deletes)
	require.Equal(t, uint64(1), snap.Evictions)
	require.Equal(t, uint64(1), snap.Splits)
}

func TestLatency_DisabledByDefault(t *testing.T) {
	s := New(&Config{})
	s.RecordFetch(true, 10*time.Millisecond)
	require.Equal(t, LatencySnapshot{}, s.FetchLatency())
}

func TestLatency_TracksMinMeanMax(t *testing.T) {
	s := New(&Config{RecordLatency: true})
	s.RecordFetch(true, 10*time.Millisecond)
	s.RecordFetch(true, 30*time.Millisecond)
	s.RecordFetch(true, 20*time.Millisecond)

	snap := s.FetchLatency()
	require.Equal(t, uint64(3), snap.Count)
	require.Equal(t, 10*time.Millisecond, snap.Min)
	require.Equal(t, 30*time.Millisecond, snap.Max)
	require.Equal(t, 20*time.Millisecond, snap.Mean)
}
