package compaction

import (
	"context"
	"time"

	"github.com/iamNilotpal/pagekv/internal/page"
	"github.com/iamNilotpal/pagekv/internal/storage"
)

// New builds a Compaction for the given configuration.
func New(config *Config) *Compaction {
	return &Compaction{storage: config.Storage, interval: config.Interval, alignment: config.Alignment, log: config.Logger}
}

// Run walks every DATA chunk and compacts any page carrying tombstoned
// space, returning how much work it did.
func (c *Compaction) Run() (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stats Stats
	err := c.storage.ForEachChunk(func(startPage uint32, h storage.ChunkHeader) error {
		if h.Type != storage.ChunkData {
			return nil
		}

		for p := startPage; p < startPage+h.SelfLengthPages; p++ {
			buf := c.storage.PageAt(p)
			stats.PagesScanned++

			reclaimed := page.DeletedBytes(buf)
			if reclaimed == 0 {
				continue
			}

			page.Compact(buf, c.alignment)
			stats.PagesCompacted++
			stats.BytesReclaimed += reclaimed
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	if c.log != nil {
		c.log.Infow(
			"compaction sweep complete",
			"pagesScanned", stats.PagesScanned,
			"pagesCompacted", stats.PagesCompacted,
			"bytesReclaimed", stats.BytesReclaimed,
		)
	}
	return stats, nil
}

// Start launches a background goroutine that calls Run every Interval until
// Stop is called or ctx is cancelled. A no-op when Interval is non-positive
// or the loop is already running.
func (c *Compaction) Start(ctx context.Context) {
	if c.interval <= 0 {
		return
	}
	if !c.running.CompareAndSwap(false, true) {
		return
	}

	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-ticker.C:
				if _, err := c.Run(); err != nil && c.log != nil {
					c.log.Errorw("background compaction failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the loop Start launched, waiting for an in-flight sweep to
// finish. A no-op if Start was never called or has already been stopped.
func (c *Compaction) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	close(c.stop)
	<-c.done
}
