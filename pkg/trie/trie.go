// Package trie implements several interchangeable TrieStore layouts:
// concrete representations of the same build-time/query-time contract,
// differing only in space/time trade-offs.
package trie

import (
	"github.com/c2h5oh/datasize"

	"github.com/arpalm/arpalm/pkg/payload"
	"github.com/arpalm/arpalm/pkg/wordindex"
)

// MaxN is the hard ceiling on n-gram order.
const MaxN = 7

// ContextID is an opaque, layout-specific handle identifying a context
// (the length-(m-1) prefix of an m-gram) at a given level. Layered layouts
// treat it as a dense array index; flat layouts treat it as a running
// mixed hash of the prefix consumed so far. Callers never interpret its
// bits, only pass it back into GetContextID/GetMGram/GetNGram.
type ContextID uint64

// RootContext is the context of the empty prefix, i.e. the value passed in
// before any GetContextID call for a given query.
const RootContext ContextID = 0

// notFound is an all-ones sentinel context id. No layout returns it:
// every lookup reports a miss through its bool second return instead.
const notFound ContextID = ^ContextID(0)

// Store is the capability set every trie layout implements. The evaluator
// (pkg/query) is written purely against this interface and never needs to
// know which concrete layout backs it.
type Store interface {
	// Preallocate sizes internal storage from the ARPA counts header.
	// counts is indexed by level minus one: counts[level-1] holds the
	// count for that level, so counts[0] is the 1-gram count.
	Preallocate(counts []int)

	// Add1Gram stores a unigram payload. Re-inserting the same word id is
	// a collision (counted in Stats) but always succeeds (last write wins).
	Add1Gram(w wordindex.WordID, p payload.MidGram)
	// AddMGram stores a mid-level (2 <= level <= N-1) m-gram payload.
	AddMGram(ws []wordindex.WordID, p payload.MidGram)
	// AddNGram stores a level-N m-gram payload (no back-off weight).
	AddNGram(ws []wordindex.WordID, p payload.TopGram)
	// Finalize performs any sort/rehash the layout needs before queries
	// are safe to run concurrently. Idempotent.
	Finalize()

	// Get1Gram returns the stored unigram payload; always defined, since
	// the UNKNOWN entry is guaranteed present after a well-formed load.
	Get1Gram(w wordindex.WordID) payload.MidGram
	// UnigramContext returns the context id a query should start walking
	// from for a given first word. For layered layouts this is commonly
	// (but not necessarily) the word id itself, reinterpreted.
	UnigramContext(w wordindex.WordID) ContextID
	// GetContextID advances the context walk by one word at the given
	// level, or reports a miss.
	GetContextID(w wordindex.WordID, parent ContextID, level int) (ContextID, bool)
	// GetMGram looks up a mid-level payload within a context.
	GetMGram(ctx ContextID, w wordindex.WordID, level int) (payload.MidGram, bool)
	// GetNGram looks up a level-N probability within a context.
	GetNGram(ctx ContextID, w wordindex.WordID) (payload.TopGram, bool)

	// MaxLevel reports N.
	MaxLevel() int
	// Stats reports per-level entry counts and collision counts.
	Stats() Stats
	// MemoryStats reports an estimated memory footprint per level.
	MemoryStats() MemoryStats
}

// Stats carries build-time bookkeeping surfaced for diagnostics: per-level
// entry counts and collision-overwrite counts (a collision is a duplicate
// (context, word) key inserted twice).
type Stats struct {
	Counts     [MaxN + 1]int
	Collisions [MaxN + 1]int
}

// MemoryStats reports an estimated per-level byte footprint, using
// datasize for human-readable formatting.
type MemoryStats struct {
	PerLevel [MaxN + 1]datasize.ByteSize
}

// Total sums the per-level estimates.
func (m MemoryStats) Total() datasize.ByteSize {
	var total datasize.ByteSize
	for _, v := range m.PerLevel {
		total += v
	}
	return total
}

// packKey implements the layered-layout key packing rule:
// key = (parent_ctx_id as u64) << 32 | word_id.
func packKey(parent ContextID, w wordindex.WordID) uint64 {
	return uint64(parent)<<32 | uint64(w)
}
