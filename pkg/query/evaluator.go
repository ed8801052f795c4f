// Package query implements the Katz back-off evaluator described in
// spec.md §4.5: single-query log10 probability, and cumulative/sliding
// window scoring built from independent single queries.
package query

import (
	"github.com/arpalm/arpalm/pkg/trie"
	"github.com/arpalm/arpalm/pkg/wordindex"
)

// Evaluator answers P(w_m | w_1..w_{m-1}) queries (and cumulative sums
// of them) against a built wordindex.Index + trie.Store pair. It holds
// no query-time mutable state of its own beyond n; concurrent callers
// each use their own scratch (see NewScratch) to stay allocation-free.
type Evaluator struct {
	idx   wordindex.Index
	store trie.Store
	n     int
}

// New constructs an Evaluator over a finalized index/store pair built for
// order n.
func New(idx wordindex.Index, store trie.Store, n int) *Evaluator {
	return &Evaluator{idx: idx, store: store, n: n}
}

// N returns the model order the Evaluator was built for.
func (e *Evaluator) N() int { return e.n }

// Scratch is opaque per-caller query state; share one per goroutine, not
// across goroutines (spec.md §5).
type Scratch struct{ s *scratch }

// NewScratch builds per-goroutine query scratch state with room for
// capacity memoized sub-window results.
func NewScratch(capacity uint32) *Scratch {
	return &Scratch{s: newScratch(capacity)}
}

// ResolveLine resolves a space-separated query line into word ids,
// registering nothing (GetWordID only): unseen tokens resolve to Unknown
// for continuous word indices.
func (e *Evaluator) ResolveLine(tokens []string) []wordindex.WordID {
	ids := make([]wordindex.WordID, len(tokens))
	for i, t := range tokens {
		ids[i] = e.idx.GetWordID(t)
	}
	return ids
}

// LogP implements the single-query algorithm of §4.5 for 1 <= len(words)
// <= N. sc may be nil to skip memoization.
func (e *Evaluator) LogP(words []wordindex.WordID, sc *Scratch) float64 {
	return e.logp(words, sc.unwrap())
}

func (sc *Scratch) unwrap() *scratch {
	if sc == nil {
		return nil
	}
	return sc.s
}

func (e *Evaluator) logp(words []wordindex.WordID, sc *scratch) float64 {
	m := len(words)
	if m == 1 {
		return float64(e.store.Get1Gram(words[0]).Prob)
	}
	if v, ok := sc.get(words); ok {
		return v
	}

	found := false
	var prob float64
	ctx, ctxOK := e.walkContext(words, m-1)
	if ctxOK {
		if m < e.n {
			if pl, ok := e.store.GetMGram(ctx, words[m-1], m); ok {
				prob, found = float64(pl.Prob), true
			}
		} else {
			if pl, ok := e.store.GetNGram(ctx, words[m-1]); ok {
				prob, found = float64(pl.Prob), true
			}
		}
	}
	if !found {
		bo := e.backOffWeight(words[:m-1], sc)
		prob = bo + e.logp(words[1:], sc)
	}
	sc.put(words, prob)
	return prob
}

// walkContext advances the context walk across words[0:upTo] (a prefix of
// length upTo, 1 <= upTo < len(words)), returning the context id a
// length-upTo prefix resolves to, or false if any step's context is
// absent from the store.
func (e *Evaluator) walkContext(words []wordindex.WordID, upTo int) (trie.ContextID, bool) {
	ctx := e.store.UnigramContext(words[0])
	for i := 2; i <= upTo; i++ {
		var ok bool
		ctx, ok = e.store.GetContextID(words[i-1], ctx, i)
		if !ok {
			return 0, false
		}
	}
	return ctx, true
}

// backOffWeight looks up the back-off weight stored for the exact prefix
// (length k, 1 <= k <= N-1); absent is 0.0 (I2), never itself triggering
// a further back-off (§4.5: "Missing back-off contributes 0").
func (e *Evaluator) backOffWeight(prefix []wordindex.WordID, sc *scratch) float64 {
	k := len(prefix)
	if k == 0 {
		return 0.0
	}
	if k == 1 {
		return float64(e.store.Get1Gram(prefix[0]).Back)
	}
	ctx, ok := e.walkContext(prefix, k-1)
	if !ok {
		return 0.0
	}
	pl, ok := e.store.GetMGram(ctx, prefix[k-1], k)
	if !ok {
		return 0.0
	}
	return float64(pl.Back)
}

// Cumulative implements §4.5's sliding-window mode: the sum, over i in
// [minLevel, len(words)], of logp of the length-min(N,i) window ending
// at position i. minLevel is 1 (full joint) or 2 (skip the lone leading
// unigram), per the cumulative config flag's caller.
func (e *Evaluator) Cumulative(words []wordindex.WordID, minLevel int, sc *Scratch) (sum float64, perWindow []float64) {
	s := sc.unwrap()
	for i := minLevel; i <= len(words); i++ {
		start := i - e.n + 1
		if start < 1 {
			start = 1
		}
		window := words[start-1 : i]
		v := e.logp(window, s)
		sum += v
		perWindow = append(perWindow, v)
	}
	return sum, perWindow
}
