package stats

import (
	"fmt"
	"math/bits"

	"github.com/iamNilotpal/pagekv/internal/directory"
	"github.com/iamNilotpal/pagekv/internal/page"
	"github.com/iamNilotpal/pagekv/internal/pagehash"
	"github.com/iamNilotpal/pagekv/internal/storage"
	"github.com/iamNilotpal/pagekv/pkg/options"
	"go.uber.org/zap"
)

// CheckLevel selects how deep Check walks the database, mirroring spec.md
// §4.11's check(level, verbose): 0 header, 1 +chunks, 2 +directory, 3 +data.
type CheckLevel int

const (
	CheckHeader CheckLevel = iota
	CheckChunks
	CheckDirectory
	CheckData
)

// CheckDeps names what Check needs to walk a live database.
type CheckDeps struct {
	Storage   *storage.Storage
	Directory *directory.Directory
	HashID    options.HashID
}

// CheckResult reports every invariant violation Check found at or below
// the requested level.
type CheckResult struct {
	Level  CheckLevel
	Issues []string
}

// OK reports whether the walk found no issues.
func (r CheckResult) OK() bool { return len(r.Issues) == 0 }

// Check walks deps up to level, verifying the invariants spec.md §8 lists,
// optionally logging each step when verbose is true. It never returns an
// error itself — every problem found is appended to CheckResult.Issues so a
// caller gets a complete report rather than stopping at the first fault.
func Check(deps CheckDeps, level CheckLevel, verbose bool, log *zap.SugaredLogger) CheckResult {
	result := CheckResult{Level: level}
	logf := func(format string, args ...any) {
		if verbose && log != nil {
			log.Infof(format, args...)
		}
	}

	header, err := deps.Storage.Header()
	if err != nil {
		result.Issues = append(result.Issues, fmt.Sprintf("header: %v", err))
		return result
	}
	logf("header ok: version=%d pageSize=%d sizePages=%d", header.Version, header.PageSize, header.SizePages)
	if level < CheckChunks {
		return result
	}

	starts, err := checkChunks(deps.Storage, header, logf)
	result.Issues = append(result.Issues, err...)
	if level < CheckDirectory {
		return result
	}

	leaves := deps.Directory.Leaves()
	result.Issues = append(result.Issues, checkDirectory(deps.Storage, leaves, starts, logf)...)
	if level < CheckData {
		return result
	}

	result.Issues = append(result.Issues, checkData(deps.Storage, deps.HashID, leaves, logf)...)
	return result
}

// checkChunks verifies invariant 7: a forward walk using SelfLengthPages
// and a backward walk using PrevLengthPages visit the same chunk starts in
// reverse order.
func checkChunks(store *storage.Storage, header storage.Header, logf func(string, ...any)) (forward []uint32, issues []string) {
	err := store.ForEachChunk(func(start uint32, h storage.ChunkHeader) error {
		forward = append(forward, start)
		return nil
	})
	if err != nil {
		issues = append(issues, fmt.Sprintf("chunk forward walk: %v", err))
		return forward, issues
	}
	logf("chunk forward walk visited %d chunks", len(forward))

	if len(forward) == 0 {
		return forward, issues
	}

	backward := make([]uint32, 0, len(forward))
	cur := forward[len(forward)-1]
	backward = append(backward, cur)
	for len(backward) < len(forward) {
		h := store.ReadChunkHeader(cur)
		if h.PrevLengthPages == 0 || h.PrevLengthPages > cur {
			issues = append(issues, fmt.Sprintf("chunk at page %d has an unwalkable prev_length %d", cur, h.PrevLengthPages))
			break
		}
		cur -= h.PrevLengthPages
		backward = append(backward, cur)
	}

	for i, start := range backward {
		want := forward[len(forward)-1-i]
		if start != want {
			issues = append(issues, fmt.Sprintf("backward walk diverged: got page %d, forward walk has page %d", start, want))
			break
		}
	}
	logf("chunk backward walk matched forward walk in reverse")
	return forward, issues
}

// checkDirectory verifies invariant 8's first half: every directory leaf
// resolves to a chunk that actually exists and is typed DATA.
func checkDirectory(store *storage.Storage, leaves map[uint64]uint32, chunkStarts []uint32, logf func(string, ...any)) (issues []string) {
	known := make(map[uint32]bool, len(chunkStarts))
	for _, p := range chunkStarts {
		known[p] = true
	}

	for node, pageNum := range leaves {
		if !known[pageNum] {
			issues = append(issues, fmt.Sprintf("leaf node %d points at page %d, which is not a chunk start", node, pageNum))
			continue
		}
		if h := store.ReadChunkHeader(pageNum); h.Type != storage.ChunkData {
			issues = append(issues, fmt.Sprintf("leaf node %d's page %d is not a DATA chunk (type=%d)", node, pageNum, h.Type))
		}
	}
	logf("directory walk checked %d leaves", len(leaves))
	return issues
}

// checkData verifies invariant 8's second half: every live entry's hash
// falls under the bit-prefix its leaf owns.
func checkData(store *storage.Storage, hashID options.HashID, leaves map[uint64]uint32, logf func(string, ...any)) (issues []string) {
	var entriesChecked int
	for node, pageNum := range leaves {
		depth := uint8(bits.Len64(node)) - 1
		wantPrefix := node - (uint64(1) << depth)

		buf := store.PageAt(pageNum)
		it := page.IterateFrom(buf, 0)
		for {
			_, key, _, ok := it.Next()
			if !ok {
				break
			}
			hash := pagehash.Sum(key, hashID)
			gotPrefix := uint64(hash) >> (32 - depth)
			if gotPrefix != wantPrefix {
				issues = append(issues, fmt.Sprintf(
					"key %q on page %d (leaf %d) has prefix %d, want %d", key, pageNum, node, gotPrefix, wantPrefix,
				))
			}
			entriesChecked++
		}
	}
	logf("data walk checked %d entries", entriesChecked)
	return issues
}
