package trie

import (
	"sort"

	"github.com/charmbracelet/log"

	"github.com/arpalm/arpalm/pkg/payload"
	"github.com/arpalm/arpalm/pkg/wordindex"
)

// wordEntryMid/wordEntryTop are the {word_id, payload} cells of a
// C2WArray level's flat, word_id-sorted array.
type wordEntryMid struct {
	word wordindex.WordID
	p    payload.MidGram
}

type wordEntryTop struct {
	word wordindex.WordID
	p    payload.TopGram
}

// span is a [begin, end) range into a level's flat array, owned by one
// context.
type span struct {
	begin, end int32
}

// rawMidEntry/rawTopEntry hold a raw insertion until Finalize: the prefix
// is kept as the actual word-id sequence (not folded into a wider
// integer) because its dense context id can only be resolved once the
// level below it has been finalized - see finalizeMid's ascending level
// order.
type rawMidEntry struct {
	prefix []wordindex.WordID
	word   wordindex.WordID
	p      payload.MidGram
	seq    int
}

type rawTopEntry struct {
	prefix []wordindex.WordID
	word   wordindex.WordID
	p      payload.TopGram
	seq    int
}

// C2WArray is the context-to-word sorted-array layout: a flat array per
// level sorted by word id, with each (level-1)-length context owning a
// [begin, end) range into the level array. Lookup within a context is
// binary search. Builds accumulate raw (prefix, word, payload) tuples and
// only resolve contexts and sort/slice them at Finalize, level by level
// in ascending order, so each level's context ids (the flat index of its
// own entry within arrMid[level]) are available by the time the next
// level up needs to resolve its own prefixes through them.
type C2WArray struct {
	n int

	unigrams []payload.MidGram
	rawMid   [MaxN + 1][]rawMidEntry
	rawTop   []rawTopEntry

	arrMid [MaxN + 1][]wordEntryMid
	arrTop []wordEntryTop
	// ranges[level] maps a context id of length `level` (the entry's own
	// index within arrMid[level], or a word id directly for level == 1)
	// to its span in arrMid[level+1] (or arrTop when level == n-1).
	ranges [MaxN + 1]map[ContextID]span

	cache     *bitmapCache
	stats     Stats
	finalized bool
}

// NewC2WArray constructs an empty store for n-gram orders up to n.
func NewC2WArray(n int, useCache bool) *C2WArray {
	s := &C2WArray{n: n}
	if useCache {
		s.cache = newBitmapCache()
	}
	return s
}

func (s *C2WArray) Preallocate(counts []int) {
	if len(counts) > 0 {
		s.unigrams = make([]payload.MidGram, 0, counts[0]+2)
	}
	for lvl := 2; lvl <= s.n-1; lvl++ {
		if lvl-1 < len(counts) {
			s.rawMid[lvl] = make([]rawMidEntry, 0, counts[lvl-1])
		}
	}
	if s.n-1 < len(counts) {
		s.rawTop = make([]rawTopEntry, 0, counts[s.n-1])
	}
	if s.cache != nil {
		for lvl := 1; lvl <= s.n; lvl++ {
			if lvl-1 < len(counts) {
				s.cache.size(lvl, counts[lvl-1])
			}
		}
	}
}

func (s *C2WArray) ensureUnigramCap(w wordindex.WordID) {
	need := int(w) + 1
	if need <= len(s.unigrams) {
		return
	}
	grown := make([]payload.MidGram, need)
	copy(grown, s.unigrams)
	s.unigrams = grown
}

func (s *C2WArray) Add1Gram(w wordindex.WordID, p payload.MidGram) {
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

func (s *C2WArray) AddMGram(ws []wordindex.WordID, p payload.MidGram) {
	level := len(ws)
	prefix := make([]wordindex.WordID, level-1)
	copy(prefix, ws[:level-1])
	s.rawMid[level] = append(s.rawMid[level], rawMidEntry{
		prefix: prefix, word: ws[level-1], p: p, seq: len(s.rawMid[level]),
	})
}

func (s *C2WArray) AddNGram(ws []wordindex.WordID, p payload.TopGram) {
	prefix := make([]wordindex.WordID, len(ws)-1)
	copy(prefix, ws[:len(ws)-1])
	s.rawTop = append(s.rawTop, rawTopEntry{
		prefix: prefix, word: ws[len(ws)-1], p: p, seq: len(s.rawTop),
	})
}

// resolvedMid/resolvedTop are rawMidEntry/rawTopEntry with their prefix
// already resolved to a dense parent context id, ready to sort by
// (parent, word).
type resolvedMid struct {
	parent ContextID
	word   wordindex.WordID
	p      payload.MidGram
	seq    int
}

type resolvedTop struct {
	parent ContextID
	word   wordindex.WordID
	p      payload.TopGram
	seq    int
}

// Finalize resolves each level's raw prefixes to dense context ids
// (ascending level order, so each level's own context ids - see
// GetContextID - are ready before the level above needs them), sorts by
// (context, word, -seq), compresses duplicate (context, word) pairs
// keeping the most recently inserted value (the collision policy:
// warn+overwrite), and records each context's span.
func (s *C2WArray) Finalize() {
	if s.finalized {
		return
	}
	for lvl := 2; lvl <= s.n-1; lvl++ {
		s.finalizeMid(lvl)
	}
	s.finalizeTop()
	s.finalized = true
}

func (s *C2WArray) finalizeMid(level int) {
	raw := s.rawMid[level]
	entries := make([]resolvedMid, 0, len(raw))
	for _, r := range raw {
		parent, ok := contextIDFor(s, r.prefix)
		if !ok {
			log.Warnf("C2WArray: orphan %d-gram (missing prefix context), skipping", level)
			continue
		}
		entries = append(entries, resolvedMid{parent: parent, word: r.word, p: r.p, seq: r.seq})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].parent != entries[j].parent {
			return entries[i].parent < entries[j].parent
		}
		if entries[i].word != entries[j].word {
			return entries[i].word < entries[j].word
		}
		return entries[i].seq > entries[j].seq
	})
	arr := make([]wordEntryMid, 0, len(entries))
	ranges := make(map[ContextID]span)
	i := 0
	for i < len(entries) {
		parent := entries[i].parent
		begin := len(arr)
		for i < len(entries) && entries[i].parent == parent {
			word := entries[i].word
			arr = append(arr, wordEntryMid{word: word, p: entries[i].p})
			i++
			for i < len(entries) && entries[i].parent == parent && entries[i].word == word {
				s.stats.Collisions[level]++
				log.Debugf("C2WArray: duplicate %d-gram, overwriting", level)
				i++
			}
		}
		ranges[parent] = span{begin: int32(begin), end: int32(len(arr))}
	}
	s.arrMid[level] = arr
	s.ranges[level-1] = ranges
	s.stats.Counts[level] = len(arr)
	s.rawMid[level] = nil
	if s.cache != nil {
		for parent, sp := range ranges {
			for _, e := range arr[sp.begin:sp.end] {
				s.cache.mark(level, packKey(parent, e.word))
			}
		}
	}
}

func (s *C2WArray) finalizeTop() {
	raw := s.rawTop
	entries := make([]resolvedTop, 0, len(raw))
	for _, r := range raw {
		parent, ok := contextIDFor(s, r.prefix)
		if !ok {
			log.Warnf("C2WArray: orphan %d-gram (missing prefix context), skipping", s.n)
			continue
		}
		entries = append(entries, resolvedTop{parent: parent, word: r.word, p: r.p, seq: r.seq})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].parent != entries[j].parent {
			return entries[i].parent < entries[j].parent
		}
		if entries[i].word != entries[j].word {
			return entries[i].word < entries[j].word
		}
		return entries[i].seq > entries[j].seq
	})
	arr := make([]wordEntryTop, 0, len(entries))
	ranges := make(map[ContextID]span)
	i := 0
	for i < len(entries) {
		parent := entries[i].parent
		begin := len(arr)
		for i < len(entries) && entries[i].parent == parent {
			word := entries[i].word
			arr = append(arr, wordEntryTop{word: word, p: entries[i].p})
			i++
			for i < len(entries) && entries[i].parent == parent && entries[i].word == word {
				s.stats.Collisions[s.n]++
				log.Debugf("C2WArray: duplicate %d-gram, overwriting", s.n)
				i++
			}
		}
		ranges[parent] = span{begin: int32(begin), end: int32(len(arr))}
	}
	s.arrTop = arr
	s.ranges[s.n-1] = ranges
	s.stats.Counts[s.n] = len(arr)
	s.rawTop = nil
	if s.cache != nil {
		for parent, sp := range ranges {
			for _, e := range arr[sp.begin:sp.end] {
				s.cache.mark(s.n, packKey(parent, e.word))
			}
		}
	}
}

func (s *C2WArray) Get1Gram(w wordindex.WordID) payload.MidGram {
	if int(w) >= len(s.unigrams) {
		return payload.MidGram{}
	}
	return s.unigrams[w]
}

func (s *C2WArray) UnigramContext(w wordindex.WordID) ContextID { return ContextID(w) }

// findMidIndex locates the slice index of (ctx, w) within arrMid[level],
// or reports a miss. The index doubles as that entry's own dense context
// id: GetContextID hands it back directly.
func (s *C2WArray) findMidIndex(level int, ctx ContextID, w wordindex.WordID) (int, bool) {
	if s.cache != nil && !s.cache.mayContain(level, packKey(ctx, w)) {
		return 0, false
	}
	ranges := s.ranges[level-1]
	if ranges == nil {
		return 0, false
	}
	sp, ok := ranges[ctx]
	if !ok {
		return 0, false
	}
	arr := s.arrMid[level]
	lo, hi := int(sp.begin), int(sp.end)
	idx := sort.Search(hi-lo, func(i int) bool { return arr[lo+i].word >= w }) + lo
	if idx >= hi || arr[idx].word != w {
		return 0, false
	}
	return idx, true
}

func (s *C2WArray) GetContextID(w wordindex.WordID, parent ContextID, level int) (ContextID, bool) {
	idx, ok := s.findMidIndex(level, parent, w)
	if !ok {
		return 0, false
	}
	return ContextID(idx), true
}

func (s *C2WArray) GetMGram(ctx ContextID, w wordindex.WordID, level int) (payload.MidGram, bool) {
	idx, ok := s.findMidIndex(level, ctx, w)
	if !ok {
		return payload.MidGram{}, false
	}
	return s.arrMid[level][idx].p, true
}

func (s *C2WArray) GetNGram(ctx ContextID, w wordindex.WordID) (payload.TopGram, bool) {
	if s.cache != nil && !s.cache.mayContain(s.n, packKey(ctx, w)) {
		return payload.TopGram{}, false
	}
	ranges := s.ranges[s.n-1]
	if ranges == nil {
		return payload.TopGram{}, false
	}
	sp, ok := ranges[ctx]
	if !ok {
		return payload.TopGram{}, false
	}
	arr := s.arrTop
	lo, hi := int(sp.begin), int(sp.end)
	idx := sort.Search(hi-lo, func(i int) bool { return arr[lo+i].word >= w }) + lo
	if idx >= hi || arr[idx].word != w {
		return payload.TopGram{}, false
	}
	return arr[idx].p, true
}

func (s *C2WArray) MaxLevel() int { return s.n }

func (s *C2WArray) Stats() Stats { return s.stats }

func (s *C2WArray) MemoryStats() MemoryStats {
	var ms MemoryStats
	ms.PerLevel[1] = datasizeOf(len(s.unigrams) * 8)
	for lvl := 2; lvl <= s.n-1; lvl++ {
		ms.PerLevel[lvl] = datasizeOf(len(s.arrMid[lvl]) * 12)
	}
	ms.PerLevel[s.n] = datasizeOf(len(s.arrTop) * 8)
	return ms
}
