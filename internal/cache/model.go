// Package cache implements cache-mode eviction (C9): choosing a victim
// entry on a full page under LRU, LFU, or GDSF, honoring EVICT_CLEAN_FIRST,
// and the shake/clean callback contracts used to make room for an insert.
package cache

import (
	"github.com/iamNilotpal/pagekv/pkg/options"
	"go.uber.org/zap"
)

// Evictor selects victims on a full page according to one cache-mode
// policy, shared across every page in a database.
type Evictor struct {
	mode            options.CacheMode
	evictCleanFirst bool
	log             *zap.SugaredLogger
}

// Config carries what Evictor needs to operate.
type Config struct {
	Mode            options.CacheMode
	EvictCleanFirst bool
	Logger          *zap.SugaredLogger
}

// ShakeEntry describes one live page entry as handed to a Shake callback.
type ShakeEntry struct {
	Index int
	Key   []byte
	Value []byte
}

// ShakeFunc is the legacy pre-split callback: given every live entry on a
// full page, it returns the indices it is willing to have deleted so the
// core can retry the insert (§4.9 shake).
type ShakeFunc func(entries []ShakeEntry) []int

// CleanFunc is the cache-mode callback invoked per entry; the first return
// value marks the entry CLEAN and thus a preferred eviction candidate under
// EVICT_CLEAN_FIRST (§4.9 clean_func). The second, quit, stops Clean's scan
// of the current page when true — per §9's documented ambiguity, quit only
// ever scopes to the page being scanned, never to the whole database, so
// both of the source's documented readings (stop scanning this page vs.
// keep going) are satisfiable by a caller of the page-at-a-time Clean/
// CleanAll surface.
type CleanFunc func(entry ShakeEntry) (clean bool, quit bool)

// New builds an Evictor for the given cache-mode configuration.
func New(config *Config) *Evictor {
	return &Evictor{mode: config.Mode, evictCleanFirst: config.EvictCleanFirst, log: config.Logger}
}

// Mode reports the configured eviction policy.
func (e *Evictor) Mode() options.CacheMode { return e.mode }
