package trie

import (
	"github.com/charmbracelet/log"

	"github.com/arpalm/arpalm/pkg/payload"
	"github.com/arpalm/arpalm/pkg/wordindex"
)

type w2cMidEntry struct {
	parent ContextID
	ctx    ContextID // this entry's own dense context id, minted at insert
	p      payload.MidGram
}

type w2cTopEntry struct {
	parent ContextID
	p      payload.TopGram
}

// W2CArray is the word-to-context layout: keyed the opposite way from
// C2DMap/C2WArray/G2DMap. For each word id at a given level there is a
// small dynamic stack of (parent context, payload) entries, one per
// distinct context that word continues. This suits tries where most
// words have few or one continuation, so a linear scan of a handful of
// entries beats a hash map's overhead. GetContextID hands back the
// entry's own minted ctx field (see nextCtx), a per-level global counter,
// not its index within the word's bucket: two different buckets can each
// hold an entry at local index 0, but their minted ctx values always
// differ, so a level-(L+1) lookup keyed by (parent, nextWord) can never
// alias two distinct length-L contexts together.
type W2CArray struct {
	n int

	unigrams []payload.MidGram
	mid      [MaxN + 1]map[wordindex.WordID][]w2cMidEntry
	nextCtx  [MaxN + 1]ContextID
	top      map[wordindex.WordID][]w2cTopEntry

	cache *bitmapCache
	stats Stats
}

// NewW2CArray constructs an empty store for n-gram orders up to n.
func NewW2CArray(n int, useCache bool) *W2CArray {
	s := &W2CArray{n: n, top: make(map[wordindex.WordID][]w2cTopEntry)}
	for lvl := 2; lvl <= n-1; lvl++ {
		s.mid[lvl] = make(map[wordindex.WordID][]w2cMidEntry)
	}
	if useCache {
		s.cache = newBitmapCache()
	}
	return s
}

// NewW2CHybrid constructs the hybrid word-to-context layout: w2ca and
// w2ch are distinguished only at the config label, both describing the
// same per-word stack-of-contexts representation, so this is the same
// mechanics under a second constructor name, matching how NewH2DMap
// relates to NewG2DMap above.
func NewW2CHybrid(n int, useCache bool) *W2CArray { return NewW2CArray(n, useCache) }

func (s *W2CArray) Preallocate(counts []int) {
	if len(counts) > 0 {
		s.unigrams = make([]payload.MidGram, 0, counts[0]+2)
	}
	if s.cache != nil {
		for lvl := 1; lvl <= s.n; lvl++ {
			if lvl-1 < len(counts) {
				s.cache.size(lvl, counts[lvl-1])
			}
		}
	}
}

func (s *W2CArray) ensureUnigramCap(w wordindex.WordID) {
	need := int(w) + 1
	if need <= len(s.unigrams) {
		return
	}
	grown := make([]payload.MidGram, need)
	copy(grown, s.unigrams)
	s.unigrams = grown
}

func (s *W2CArray) Add1Gram(w wordindex.WordID, p payload.MidGram) {
	s.ensureUnigramCap(w)
	if s.unigrams[w] != (payload.MidGram{}) {
		s.stats.Collisions[1]++
	}
	s.unigrams[w] = p
	s.stats.Counts[1]++
	if s.cache != nil {
		s.cache.mark(1, uint64(w))
	}
}

func (s *W2CArray) AddMGram(ws []wordindex.WordID, p payload.MidGram) {
	level := len(ws)
	parent, ok := contextIDFor(s, ws[:level-1])
	if !ok {
		log.Warnf("W2CArray: orphan %d-gram (missing prefix context), skipping", level)
		return
	}
	word := ws[level-1]
	bucket := s.mid[level][word]
	for i := range bucket {
		if bucket[i].parent == parent {
			s.stats.Collisions[level]++
			bucket[i].p = p
			return
		}
	}
	s.nextCtx[level]++
	s.mid[level][word] = append(bucket, w2cMidEntry{parent: parent, ctx: s.nextCtx[level], p: p})
	s.stats.Counts[level]++
	if s.cache != nil {
		s.cache.mark(level, packKey(parent, word))
	}
}

func (s *W2CArray) AddNGram(ws []wordindex.WordID, p payload.TopGram) {
	parent, ok := contextIDFor(s, ws[:len(ws)-1])
	if !ok {
		log.Warnf("W2CArray: orphan %d-gram (missing prefix context), skipping", s.n)
		return
	}
	word := ws[len(ws)-1]
	bucket := s.top[word]
	for i := range bucket {
		if bucket[i].parent == parent {
			s.stats.Collisions[s.n]++
			bucket[i].p = p
			return
		}
	}
	s.top[word] = append(bucket, w2cTopEntry{parent: parent, p: p})
	s.stats.Counts[s.n]++
	if s.cache != nil {
		s.cache.mark(s.n, packKey(parent, word))
	}
}

func (s *W2CArray) Finalize() {}

func (s *W2CArray) Get1Gram(w wordindex.WordID) payload.MidGram {
	if int(w) >= len(s.unigrams) {
		return payload.MidGram{}
	}
	return s.unigrams[w]
}

func (s *W2CArray) UnigramContext(w wordindex.WordID) ContextID { return ContextID(w) }

func (s *W2CArray) GetContextID(w wordindex.WordID, parent ContextID, level int) (ContextID, bool) {
	if s.cache != nil && !s.cache.mayContain(level, packKey(parent, w)) {
		return 0, false
	}
	bucket := s.mid[level][w]
	for i := range bucket {
		if bucket[i].parent == parent {
			return bucket[i].ctx, true
		}
	}
	return 0, false
}

func (s *W2CArray) GetMGram(ctx ContextID, w wordindex.WordID, level int) (payload.MidGram, bool) {
	if s.cache != nil && !s.cache.mayContain(level, packKey(ctx, w)) {
		return payload.MidGram{}, false
	}
	bucket := s.mid[level][w]
	for i := range bucket {
		if bucket[i].parent == ctx {
			return bucket[i].p, true
		}
	}
	return payload.MidGram{}, false
}

func (s *W2CArray) GetNGram(ctx ContextID, w wordindex.WordID) (payload.TopGram, bool) {
	if s.cache != nil && !s.cache.mayContain(s.n, packKey(ctx, w)) {
		return payload.TopGram{}, false
	}
	bucket := s.top[w]
	for i := range bucket {
		if bucket[i].parent == ctx {
			return bucket[i].p, true
		}
	}
	return payload.TopGram{}, false
}

func (s *W2CArray) MaxLevel() int { return s.n }

func (s *W2CArray) Stats() Stats { return s.stats }

func (s *W2CArray) MemoryStats() MemoryStats {
	var ms MemoryStats
	ms.PerLevel[1] = datasizeOf(len(s.unigrams) * 8)
	for lvl := 2; lvl <= s.n-1; lvl++ {
		n := 0
		for _, bucket := range s.mid[lvl] {
			n += len(bucket)
		}
		ms.PerLevel[lvl] = datasizeOf(n * (8 + 8))
	}
	n := 0
	for _, bucket := range s.top {
		n += len(bucket)
	}
	ms.PerLevel[s.n] = datasizeOf(n * (8 + 4))
	return ms
}
