package wordindex

import "github.com/cespare/xxhash/v2"

// Hashing returns the low 32 bits of hash64(token) as the WordID directly
// and never assigns dense ids. It is discontinuous and is only meant to be
// paired with trie layouts whose payloads are keyed entirely by hashes
// (G2DMap, H2DMap): those layouts accept that two distinct tokens may
// collide on that truncated 32-bit id, with no collision table maintained —
// an approximate-mode trade-off made deliberately for the memory it saves.
type Hashing struct {
	// reverse is best-effort only, kept for diagnostics/Dump; a hash
	// collision means the last-registered token for a given hash wins.
	reverse map[WordID]string
	count   int
}

// NewHashing constructs an empty Hashing word index.
func NewHashing() *Hashing {
	return &Hashing{reverse: make(map[WordID]string)}
}

func (h *Hashing) Reserve(n int) {
	if n > 0 {
		h.reverse = make(map[WordID]string, n)
	}
}

func hashToken(token string) WordID {
	sum := xxhash.Sum64String(token)
	// Never collide with the two reserved ids.
	if WordID(sum) == Undefined || WordID(sum) == Unknown {
		sum |= uint64(minValidID)
	}
	return WordID(sum)
}

func (h *Hashing) GetWordID(token string) WordID { return hashToken(token) }

func (h *Hashing) RegisterWord(token string) WordID {
	id := hashToken(token)
	if _, seen := h.reverse[id]; !seen {
		h.count++
	}
	h.reverse[id] = token
	return id
}

func (h *Hashing) IsContinuous() bool { return false }

func (h *Hashing) Len() int { return h.count }

func (h *Hashing) Token(id WordID) (string, bool) {
	t, ok := h.reverse[id]
	return t, ok
}

func (h *Hashing) NeedsCounting() bool      { return false }
func (h *Hashing) CountWord(string, float64) {}
func (h *Hashing) FinalizeCounting()        {}
func (h *Hashing) NeedsPostActions() bool   { return false }
func (h *Hashing) PostActions()             {}
