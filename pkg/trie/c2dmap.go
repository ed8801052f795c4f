package trie

import (
	"github.com/charmbracelet/log"

	"github.com/arpalm/arpalm/pkg/payload"
	"github.com/arpalm/arpalm/pkg/wordindex"
)

// midEntry pairs a mid-level payload with the dense context id minted for
// it: the id a level-(L+1) insertion or query uses as its `parent` when
// continuing past this entry's word.
type midEntry struct {
	p   payload.MidGram
	ctx ContextID
}

// C2DMap is the context-to-data hash-map layout (§4.2): a per-word direct
// array for level 1, a hash map keyed on the packed (parent context, word)
// key for levels 2..N-1, and a separate hash map from packed key to bare
// probability for level N. Each mid-level map entry carries its own
// minted dense context id alongside the payload (see midEntry): that id,
// not the packed lookup key itself, is what GetContextID hands back, so
// packKey never has to pack anything wider than a small per-level counter
// (see contextIDFor in util.go).
type C2DMap struct {
	n int

	unigrams []payload.MidGram // indexed directly by WordID
	mid      [MaxN + 1]map[uint64]midEntry
	nextCtx  [MaxN + 1]ContextID
	top      map[uint64]payload.TopGram

	cache *bitmapCache
	stats Stats
}

// NewC2DMap constructs an empty store for n-gram orders up to n.
// useCache enables the optional bitmap-hash negative-lookup cache.
func NewC2DMap(n int, useCache bool) *C2DMap {
	s := &C2DMap{n: n, top: make(map[uint64]payload.TopGram)}
	for lvl := 2; lvl <= n-1; lvl++ {
		s.mid[lvl] = make(map[uint64]midEntry)
	}
	if useCache {
		s.cache = newBitmapCache()
	}
	return s
}

func (s *C2DMap) Preallocate(counts []int) {
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

func (s *C2DMap) ensureUnigramCap(w wordindex.WordID) {
	need := int(w) + 1
	if need <= len(s.unigrams) {
		return
	}
	grown := make([]payload.MidGram, need)
	copy(grown, s.unigrams)
	s.unigrams = grown
}

func (s *C2DMap) Add1Gram(w wordindex.WordID, p payload.MidGram) {
	s.ensureUnigramCap(w)
	if s.unigrams[w] != (payload.MidGram{}) {
		s.stats.Collisions[1]++
		log.Debugf("C2DMap: duplicate 1-gram for word %d, overwriting", w)
	}
	s.unigrams[w] = p
	s.stats.Counts[1]++
	if s.cache != nil {
		s.cache.mark(1, uint64(w))
	}
}

func (s *C2DMap) AddMGram(ws []wordindex.WordID, p payload.MidGram) {
	level := len(ws)
	parent, ok := contextIDFor(s, ws[:level-1])
	if !ok {
		log.Warnf("C2DMap: orphan %d-gram (missing prefix context), skipping", level)
		return
	}
	m, ok := s.mid[level]
	if !ok {
		m = make(map[uint64]midEntry)
		s.mid[level] = m
	}
	key := packKey(parent, ws[level-1])
	ctx := s.nextCtx[level] + 1
	if e, exists := m[key]; exists {
		s.stats.Collisions[level]++
		log.Debugf("C2DMap: duplicate %d-gram, overwriting", level)
		ctx = e.ctx
	} else {
		s.nextCtx[level] = ctx
	}
	m[key] = midEntry{p: p, ctx: ctx}
	s.stats.Counts[level]++
	if s.cache != nil {
		s.cache.mark(level, key)
	}
}

func (s *C2DMap) AddNGram(ws []wordindex.WordID, p payload.TopGram) {
	parent, ok := contextIDFor(s, ws[:len(ws)-1])
	if !ok {
		log.Warnf("C2DMap: orphan %d-gram (missing prefix context), skipping", s.n)
		return
	}
	key := packKey(parent, ws[len(ws)-1])
	if _, exists := s.top[key]; exists {
		s.stats.Collisions[s.n]++
		log.Debugf("C2DMap: duplicate %d-gram, overwriting", s.n)
	}
	s.top[key] = p
	s.stats.Counts[s.n]++
	if s.cache != nil {
		s.cache.mark(s.n, key)
	}
}

func (s *C2DMap) Finalize() {}

func (s *C2DMap) Get1Gram(w wordindex.WordID) payload.MidGram {
	if int(w) >= len(s.unigrams) {
		return payload.MidGram{}
	}
	return s.unigrams[w]
}

func (s *C2DMap) UnigramContext(w wordindex.WordID) ContextID { return ContextID(w) }

func (s *C2DMap) GetContextID(w wordindex.WordID, parent ContextID, level int) (ContextID, bool) {
	key := packKey(parent, w)
	if s.cache != nil && !s.cache.mayContain(level, key) {
		return 0, false
	}
	e, ok := s.mid[level][key]
	if !ok {
		return 0, false
	}
	return e.ctx, true
}

func (s *C2DMap) GetMGram(ctx ContextID, w wordindex.WordID, level int) (payload.MidGram, bool) {
	key := packKey(ctx, w)
	if s.cache != nil && !s.cache.mayContain(level, key) {
		return payload.MidGram{}, false
	}
	e, ok := s.mid[level][key]
	return e.p, ok
}

func (s *C2DMap) GetNGram(ctx ContextID, w wordindex.WordID) (payload.TopGram, bool) {
	key := packKey(ctx, w)
	if s.cache != nil && !s.cache.mayContain(s.n, key) {
		return payload.TopGram{}, false
	}
	p, ok := s.top[key]
	return p, ok
}

func (s *C2DMap) MaxLevel() int { return s.n }

func (s *C2DMap) Stats() Stats { return s.stats }

func (s *C2DMap) MemoryStats() MemoryStats {
	var ms MemoryStats
	ms.PerLevel[1] = datasizeOf(len(s.unigrams) * 8)
	for lvl := 2; lvl <= s.n-1; lvl++ {
		ms.PerLevel[lvl] = datasizeOf(len(s.mid[lvl]) * (8 + 8 + 8))
	}
	ms.PerLevel[s.n] = datasizeOf(len(s.top) * (8 + 4))
	return ms
}
