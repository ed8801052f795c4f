package query

import (
	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"

	"github.com/arpalm/arpalm/pkg/wordindex"
)

// scratch is the per-query-thread state mentioned in spec.md §5: "each
// thread uses its own query scratch state (the payload-pointer caches
// and computed sub-probabilities of an in-flight query)". It memoizes
// logp(window) results keyed by a hash of the window's word ids, which
// matters most in cumulative mode where overlapping N-word windows slide
// one position at a time and frequently share a sub-window.
//
// Grounded on nothing in the teacher (it has no equivalent hot path);
// elastic/go-freelru is adopted from the examples pack's ecosystem
// surface as a fixed-capacity, allocation-free-on-hit LRU, which matches
// §5's "allocation-free on the hot path" requirement better than a plain
// map with manual eviction bookkeeping would.
type scratch struct {
	cache *freelru.LRU[uint64, float64]
}

func newScratch(capacity uint32) *scratch {
	c, err := freelru.New[uint64, float64](capacity, hashUint64)
	if err != nil {
		// capacity is always a small caller-supplied constant; a
		// construction error here means a programmer error, not a
		// runtime condition to recover from.
		panic(err)
	}
	return &scratch{cache: c}
}

func hashUint64(k uint64) uint32 {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(k >> (8 * i))
	}
	return uint32(xxhash.Sum64(buf[:]))
}

func windowKey(words []wordindex.WordID) uint64 {
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		buf[i*4] = byte(w)
		buf[i*4+1] = byte(w >> 8)
		buf[i*4+2] = byte(w >> 16)
		buf[i*4+3] = byte(w >> 24)
	}
	return xxhash.Sum64(buf)
}

func (s *scratch) get(words []wordindex.WordID) (float64, bool) {
	if s == nil {
		return 0, false
	}
	return s.cache.Get(windowKey(words))
}

func (s *scratch) put(words []wordindex.WordID, v float64) {
	if s == nil {
		return
	}
	s.cache.Add(windowKey(words), v)
}
