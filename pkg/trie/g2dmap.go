package trie

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/charmbracelet/log"

	"github.com/arpalm/arpalm/pkg/payload"
	"github.com/arpalm/arpalm/pkg/wordindex"
)

// midSlot and topSlot are open-addressed table cells. used distinguishes
// an empty cell from a zero-value payload; key is the full mixed fingerprint
// of the m-gram, stored alongside the payload so a linear-probe hit can be
// told apart from an unrelated entry that happened to land on the same
// slot after probing. This only detects a probe-sequence collision, not a
// fingerprint collision: two distinct m-grams that hash to the same 64-bit
// key are indistinguishable here, since GetMGram/GetContextID are handed
// only (ctx, word, level), never the full word-id sequence a slot was
// inserted from, so there is nothing wider to re-check the fingerprint
// against. Like wordindex.Hashing, this is an approximate-mode trade-off
// accepted deliberately for the memory G2DMap/H2DMap save by never storing
// a per-context array or sub-map.
type midSlot struct {
	used bool
	key  uint64
	p    payload.MidGram
}

type topSlot struct {
	used bool
	key  uint64
	p    payload.TopGram
}

// G2DMap is the gram-to-data flat hash layout: every m-gram, including
// unigrams, is keyed by a single 64-bit fingerprint into a per-level
// open-addressing table. There is no per-context array or sub-map to
// walk; the "context id" returned by GetContextID/UnigramContext is
// simply the running fingerprint of the prefix consumed so far, fed into
// the next level's mixing step.
type G2DMap struct {
	n   int
	mid [MaxN + 1][]midSlot
	top []topSlot

	cache *bitmapCache
	stats Stats
}

// NewG2DMap constructs an empty store for n-gram orders up to n.
func NewG2DMap(n int, useCache bool) *G2DMap {
	s := &G2DMap{n: n}
	if useCache {
		s.cache = newBitmapCache()
	}
	return s
}

// NewH2DMap constructs the hash-to-data layout. It reuses G2DMap's flat
// open-addressing mechanics verbatim: the distinction between G2DMap and
// H2DMap is which word index they're configured to pair with (dense
// continuous ids vs the Hashing variant's already-hashed ids), not a
// difference in storage representation. Both simply fingerprint whatever
// word ids they're handed.
func NewH2DMap(n int, useCache bool) *G2DMap { return NewG2DMap(n, useCache) }

func mixWord(parent ContextID, w wordindex.WordID) ContextID {
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(parent))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(w))
	return ContextID(xxhash.Sum64(buf[:]))
}

func (s *G2DMap) Preallocate(counts []int) {
	for lvl := 1; lvl <= s.n-1; lvl++ {
		n := 8
		if lvl-1 < len(counts) {
			n = int(nextPow2(uint64(counts[lvl-1]) * 2))
		}
		if n < 8 {
			n = 8
		}
		s.mid[lvl] = make([]midSlot, n)
		if s.cache != nil {
			s.cache.size(lvl, n/2)
		}
	}
	n := 8
	if s.n-1 < len(counts) {
		n = int(nextPow2(uint64(counts[s.n-1]) * 2))
	}
	if n < 8 {
		n = 8
	}
	s.top = make([]topSlot, n)
	if s.cache != nil {
		s.cache.size(s.n, n/2)
	}
}

func (s *G2DMap) growMid(level int) {
	if len(s.mid[level]) == 0 {
		s.mid[level] = make([]midSlot, 8)
		return
	}
	if s.stats.Counts[level] < len(s.mid[level])*3/4 {
		return
	}
	old := s.mid[level]
	grown := make([]midSlot, len(old)*2)
	s.mid[level] = grown
	for _, slot := range old {
		if !slot.used {
			continue
		}
		idx := s.probeMid(level, slot.key)
		s.mid[level][idx] = slot
	}
}

func (s *G2DMap) probeMid(level int, key uint64) int {
	tbl := s.mid[level]
	mask := uint64(len(tbl) - 1)
	i := key & mask
	for tbl[i].used && tbl[i].key != key {
		i = (i + 1) & mask
	}
	return int(i)
}

func (s *G2DMap) probeTop(key uint64) int {
	mask := uint64(len(s.top) - 1)
	i := key & mask
	for s.top[i].used && s.top[i].key != key {
		i = (i + 1) & mask
	}
	return int(i)
}

func (s *G2DMap) Add1Gram(w wordindex.WordID, p payload.MidGram) {
	key := uint64(mixWord(RootContext, w))
	s.insertMid(1, key, p)
}

func (s *G2DMap) AddMGram(ws []wordindex.WordID, p payload.MidGram) {
	level := len(ws)
	key := uint64(foldWords(ws))
	s.insertMid(level, key, p)
}

func (s *G2DMap) insertMid(level int, key uint64, p payload.MidGram) {
	s.growMid(level)
	idx := s.probeMid(level, key)
	if s.mid[level][idx].used {
		s.stats.Collisions[level]++
		log.Debugf("G2DMap: duplicate %d-gram fingerprint, overwriting", level)
	}
	s.mid[level][idx] = midSlot{used: true, key: key, p: p}
	s.stats.Counts[level]++
	if s.cache != nil {
		s.cache.mark(level, key)
	}
}

func (s *G2DMap) AddNGram(ws []wordindex.WordID, p payload.TopGram) {
	s.growTop()
	key := uint64(foldWords(ws))
	idx := s.probeTop(key)
	if s.top[idx].used {
		s.stats.Collisions[s.n]++
		log.Debugf("G2DMap: duplicate %d-gram fingerprint, overwriting", s.n)
	}
	s.top[idx] = topSlot{used: true, key: key, p: p}
	s.stats.Counts[s.n]++
	if s.cache != nil {
		s.cache.mark(s.n, key)
	}
}

func (s *G2DMap) growTop() {
	if len(s.top) == 0 {
		s.top = make([]topSlot, 8)
		return
	}
	if s.stats.Counts[s.n] < len(s.top)*3/4 {
		return
	}
	old := s.top
	s.top = make([]topSlot, len(old)*2)
	for _, slot := range old {
		if !slot.used {
			continue
		}
		idx := s.probeTop(slot.key)
		s.top[idx] = slot
	}
}

func foldWords(ws []wordindex.WordID) ContextID {
	ctx := RootContext
	for _, w := range ws {
		ctx = mixWord(ctx, w)
	}
	return ctx
}

func (s *G2DMap) Finalize() {}

func (s *G2DMap) Get1Gram(w wordindex.WordID) payload.MidGram {
	if len(s.mid[1]) == 0 {
		return payload.MidGram{}
	}
	key := uint64(mixWord(RootContext, w))
	idx := s.probeMid(1, key)
	if !s.mid[1][idx].used || s.mid[1][idx].key != key {
		return payload.MidGram{}
	}
	return s.mid[1][idx].p
}

func (s *G2DMap) UnigramContext(w wordindex.WordID) ContextID { return mixWord(RootContext, w) }

func (s *G2DMap) GetContextID(w wordindex.WordID, parent ContextID, level int) (ContextID, bool) {
	newCtx := mixWord(parent, w)
	if len(s.mid[level]) == 0 {
		return 0, false
	}
	key := uint64(newCtx)
	if s.cache != nil && !s.cache.mayContain(level, key) {
		return 0, false
	}
	idx := s.probeMid(level, key)
	if !s.mid[level][idx].used || s.mid[level][idx].key != key {
		return 0, false
	}
	return newCtx, true
}

func (s *G2DMap) GetMGram(ctx ContextID, w wordindex.WordID, level int) (payload.MidGram, bool) {
	if len(s.mid[level]) == 0 {
		return payload.MidGram{}, false
	}
	key := uint64(mixWord(ctx, w))
	if s.cache != nil && !s.cache.mayContain(level, key) {
		return payload.MidGram{}, false
	}
	idx := s.probeMid(level, key)
	if !s.mid[level][idx].used || s.mid[level][idx].key != key {
		return payload.MidGram{}, false
	}
	return s.mid[level][idx].p, true
}

func (s *G2DMap) GetNGram(ctx ContextID, w wordindex.WordID) (payload.TopGram, bool) {
	if len(s.top) == 0 {
		return payload.TopGram{}, false
	}
	key := uint64(mixWord(ctx, w))
	if s.cache != nil && !s.cache.mayContain(s.n, key) {
		return payload.TopGram{}, false
	}
	idx := s.probeTop(key)
	if !s.top[idx].used || s.top[idx].key != key {
		return payload.TopGram{}, false
	}
	return s.top[idx].p, true
}

func (s *G2DMap) MaxLevel() int { return s.n }

func (s *G2DMap) Stats() Stats { return s.stats }

func (s *G2DMap) MemoryStats() MemoryStats {
	var ms MemoryStats
	for lvl := 1; lvl <= s.n-1; lvl++ {
		ms.PerLevel[lvl] = datasizeOf(len(s.mid[lvl]) * (8 + 8))
	}
	ms.PerLevel[s.n] = datasizeOf(len(s.top) * (8 + 4))
	return ms
}
