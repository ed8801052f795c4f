package trie

import (
	"sort"

	"github.com/charmbracelet/log"

	"github.com/arpalm/arpalm/pkg/payload"
	"github.com/arpalm/arpalm/pkg/wordindex"
)

type topCell struct {
	key uint64
	p   payload.TopGram
}

// C2DH is the context-to-data hybrid layout: identical to C2DMap for
// level 1 and the mid levels (2..N-1), but the top level (N) is a flat
// array of {packed_key, payload} sorted by key and searched by binary
// search instead of a hash map. The top level is usually the largest
// single level in a language model (it has no back-off weight to amortize
// against and the widest fan-out), so trading map overhead for a denser,
// sorted array pays off there.
type C2DH struct {
	n int

	unigrams []payload.MidGram
	mid      [MaxN + 1]map[uint64]midEntry
	nextCtx  [MaxN + 1]ContextID

	rawTop    []topCell
	top       []topCell
	finalized bool

	cache *bitmapCache
	stats Stats
}

// NewC2DH constructs an empty store for n-gram orders up to n.
func NewC2DH(n int, useCache bool) *C2DH {
	s := &C2DH{n: n}
	for lvl := 2; lvl <= n-1; lvl++ {
		s.mid[lvl] = make(map[uint64]midEntry)
	}
	if useCache {
		s.cache = newBitmapCache()
	}
	return s
}

func (s *C2DH) Preallocate(counts []int) {
	if len(counts) > 0 {
		s.unigrams = make([]payload.MidGram, 0, counts[0]+2)
	}
	if s.n-1 < len(counts) {
		s.rawTop = make([]topCell, 0, counts[s.n-1])
	}
	if s.cache != nil {
		for lvl := 1; lvl <= s.n; lvl++ {
			if lvl-1 < len(counts) {
				s.cache.size(lvl, counts[lvl-1])
			}
		}
	}
}

func (s *C2DH) ensureUnigramCap(w wordindex.WordID) {
	need := int(w) + 1
	if need <= len(s.unigrams) {
		return
	}
	grown := make([]payload.MidGram, need)
	copy(grown, s.unigrams)
	s.unigrams = grown
}

func (s *C2DH) Add1Gram(w wordindex.WordID, p payload.MidGram) {
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

func (s *C2DH) AddMGram(ws []wordindex.WordID, p payload.MidGram) {
	level := len(ws)
	parent, ok := contextIDFor(s, ws[:level-1])
	if !ok {
		log.Warnf("C2DH: orphan %d-gram (missing prefix context), skipping", level)
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
		log.Debugf("C2DH: duplicate %d-gram, overwriting", level)
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

func (s *C2DH) AddNGram(ws []wordindex.WordID, p payload.TopGram) {
	parent, ok := contextIDFor(s, ws[:len(ws)-1])
	if !ok {
		log.Warnf("C2DH: orphan %d-gram (missing prefix context), skipping", s.n)
		return
	}
	key := packKey(parent, ws[len(ws)-1])
	s.rawTop = append(s.rawTop, topCell{key: key, p: p})
	if s.cache != nil {
		s.cache.mark(s.n, key)
	}
}

// Finalize sorts the top level by key, deduplicating in favor of the last
// inserted value for a repeated key (the collision policy: warn+overwrite).
func (s *C2DH) Finalize() {
	if s.finalized {
		return
	}
	entries := s.rawTop
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	out := make([]topCell, 0, len(entries))
	i := 0
	for i < len(entries) {
		key := entries[i].key
		j := i
		for j < len(entries) && entries[j].key == key {
			j++
		}
		if j-i > 1 {
			s.stats.Collisions[s.n] += j - i - 1
			log.Debugf("C2DH: duplicate %d-gram, overwriting", s.n)
		}
		out = append(out, entries[j-1])
		i = j
	}
	s.top = out
	s.stats.Counts[s.n] = len(out)
	s.rawTop = nil
	s.finalized = true
}

func (s *C2DH) Get1Gram(w wordindex.WordID) payload.MidGram {
	if int(w) >= len(s.unigrams) {
		return payload.MidGram{}
	}
	return s.unigrams[w]
}

func (s *C2DH) UnigramContext(w wordindex.WordID) ContextID { return ContextID(w) }

func (s *C2DH) GetContextID(w wordindex.WordID, parent ContextID, level int) (ContextID, bool) {
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

func (s *C2DH) GetMGram(ctx ContextID, w wordindex.WordID, level int) (payload.MidGram, bool) {
	key := packKey(ctx, w)
	if s.cache != nil && !s.cache.mayContain(level, key) {
		return payload.MidGram{}, false
	}
	e, ok := s.mid[level][key]
	return e.p, ok
}

func (s *C2DH) GetNGram(ctx ContextID, w wordindex.WordID) (payload.TopGram, bool) {
	key := packKey(ctx, w)
	if s.cache != nil && !s.cache.mayContain(s.n, key) {
		return payload.TopGram{}, false
	}
	idx := sort.Search(len(s.top), func(i int) bool { return s.top[i].key >= key })
	if idx >= len(s.top) || s.top[idx].key != key {
		return payload.TopGram{}, false
	}
	return s.top[idx].p, true
}

func (s *C2DH) MaxLevel() int { return s.n }

func (s *C2DH) Stats() Stats { return s.stats }

func (s *C2DH) MemoryStats() MemoryStats {
	var ms MemoryStats
	ms.PerLevel[1] = datasizeOf(len(s.unigrams) * 8)
	for lvl := 2; lvl <= s.n-1; lvl++ {
		ms.PerLevel[lvl] = datasizeOf(len(s.mid[lvl]) * (8 + 8 + 8))
	}
	ms.PerLevel[s.n] = datasizeOf(len(s.top) * (8 + 4))
	return ms
}
