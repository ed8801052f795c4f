package wordindex

import "github.com/cespare/xxhash/v2"

// occupancyFactor is k in "sized as a power of two >= k*|V|" (§4.1).
const occupancyFactor = 2

// emptySlot marks an unoccupied probe-table cell. Cells hold
// wordID - minValidID, so 0 is the first registered token's value and
// "empty" needs a value outside that range.
const emptySlot int64 = -1

// Optimizing wraps a Basic or Counting index and, once building is
// finished, builds a closed-addressing hash table over the same tokens so
// that GetWordID during query no longer has to walk the patricia trie: a
// single hash plus a short linear probe resolves most lookups (§4.1).
// Building the index (RegisterWord, counting protocol) still goes through
// the wrapped variant; only post-build lookups take the fast path.
type Optimizing struct {
	wrapped Index
	table   []int64 // wordID - minValidID, or emptySlot
	mask    uint64
	built   bool
}

// NewOptimizing wraps the given index (typically NewBasic() or
// NewCounting()).
func NewOptimizing(wrapped Index) *Optimizing {
	return &Optimizing{wrapped: wrapped}
}

func (o *Optimizing) Reserve(n int) { o.wrapped.Reserve(n) }

func (o *Optimizing) RegisterWord(token string) WordID { return o.wrapped.RegisterWord(token) }

func (o *Optimizing) IsContinuous() bool { return o.wrapped.IsContinuous() }

func (o *Optimizing) Len() int { return o.wrapped.Len() }

func (o *Optimizing) Token(id WordID) (string, bool) { return o.wrapped.Token(id) }

func (o *Optimizing) NeedsCounting() bool            { return o.wrapped.NeedsCounting() }
func (o *Optimizing) CountWord(token string, p float64) { o.wrapped.CountWord(token, p) }
func (o *Optimizing) FinalizeCounting()              { o.wrapped.FinalizeCounting() }

func (o *Optimizing) NeedsPostActions() bool { return true }

// PostActions builds the probe table. Idempotent: rebuilding just
// overwrites the same slots deterministically.
func (o *Optimizing) PostActions() {
	o.wrapped.PostActions()

	n := o.wrapped.Len()
	size := nextPow2(uint64(n) * occupancyFactor)
	if size == 0 {
		size = 1
	}
	table := make([]int64, size)
	for i := range table {
		table[i] = emptySlot
	}
	mask := size - 1

	for i := 0; i < n; i++ {
		id := minValidID + WordID(i)
		token, ok := o.wrapped.Token(id)
		if !ok {
			continue
		}
		h := xxhash.Sum64String(token) & mask
		for table[h] != emptySlot {
			h = (h + 1) & mask
		}
		table[h] = int64(i)
	}

	o.table = table
	o.mask = mask
	o.built = true
}

// GetWordID resolves token via the probe table when built, falling back to
// the wrapped index (e.g. mid-build, before PostActions has run).
func (o *Optimizing) GetWordID(token string) WordID {
	if !o.built {
		return o.wrapped.GetWordID(token)
	}
	h := xxhash.Sum64String(token) & o.mask
	for {
		slot := o.table[h]
		if slot == emptySlot {
			return Unknown
		}
		id := minValidID + WordID(slot)
		if tok, ok := o.wrapped.Token(id); ok && tok == token {
			return id
		}
		h = (h + 1) & o.mask
	}
}

func nextPow2(v uint64) uint64 {
	if v == 0 {
		return 0
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++
	return v
}
