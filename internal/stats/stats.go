package stats

import "time"

// New builds a Stats accumulator. RecordLatency turns on the histograms;
// counters are tracked unconditionally.
func New(config *Config) *Stats {
	s := &Stats{recordLatency: config.RecordLatency, log: config.Logger}
	if config.RecordLatency {
		s.fetchLatency = &histogram{}
		s.storeLatency = &histogram{}
		s.deleteLatency = &histogram{}
	}
	return s
}

// RecordFetch counts a fetch and, if hit is true, a cache hit (a miss
// otherwise), observing elapsed in the fetch histogram when enabled.
func (s *Stats) RecordFetch(hit bool, elapsed time.Duration) {
	s.fetches.Add(1)
	if hit {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	if s.recordLatency {
		s.fetchLatency.observe(elapsed)
	}
}

// RecordStore counts a store, observing elapsed in the store histogram
// when enabled.
func (s *Stats) RecordStore(elapsed time.Duration) {
	s.stores.Add(1)
	if s.recordLatency {
		s.storeLatency.observe(elapsed)
	}
}

// RecordDelete counts a delete, observing elapsed in the delete histogram
// when enabled.
func (s *Stats) RecordDelete(elapsed time.Duration) {
	s.deletes.Add(1)
	if s.recordLatency {
		s.deleteLatency.observe(elapsed)
	}
}

// RecordEviction counts one cache-mode eviction (C9).
func (s *Stats) RecordEviction() { s.evictions.Add(1) }

// RecordSplit counts one directory split (C4).
func (s *Stats) RecordSplit() { s.splits.Add(1) }

// Snapshot returns a point-in-time copy of every counter.
func (s *Stats) Snapshot() Counters {
	return Counters{
		Fetches:   s.fetches.Load(),
		Stores:    s.stores.Load(),
		Deletes:   s.deletes.Load(),
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
		Splits:    s.splits.Load(),
	}
}

// FetchLatency returns a snapshot of the fetch histogram, or the zero value
// if latency recording is disabled.
func (s *Stats) FetchLatency() LatencySnapshot {
	if !s.recordLatency {
		return LatencySnapshot{}
	}
	return s.fetchLatency.snapshot()
}

// StoreLatency returns a snapshot of the store histogram, or the zero
// value if latency recording is disabled.
func (s *Stats) StoreLatency() LatencySnapshot {
	if !s.recordLatency {
		return LatencySnapshot{}
	}
	return s.storeLatency.snapshot()
}

// DeleteLatency returns a snapshot of the delete histogram, or the zero
// value if latency recording is disabled.
func (s *Stats) DeleteLatency() LatencySnapshot {
	if !s.recordLatency {
		return LatencySnapshot{}
	}
	return s.deleteLatency.snapshot()
}

func (h *histogram) observe(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 || d < h.min {
		h.min = d
	}
	if d > h.max {
		h.max = d
	}
	h.sum += d
	h.count++
}

func (h *histogram) snapshot() LatencySnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count: h.count,
		Mean:  h.sum / time.Duration(h.count),
		Min:   h.min,
		Max:   h.max,
	}
}
