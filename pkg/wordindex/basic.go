package wordindex

import (
	"sort"

	"github.com/tchap/go-patricia/v2/patricia"
)

// Basic is a continuous word index backed by a patricia (radix) trie keyed
// on token bytes. A common-prefix radix structure keeps the vocabulary
// itself memory-compact. Ids are issued in first-seen (insertion) order.
type Basic struct {
	trie   *patricia.Trie
	tokens []string // id - minValidID -> token, for reverse lookup
}

// NewBasic constructs an empty Basic word index.
func NewBasic() *Basic {
	return &Basic{trie: patricia.NewTrie()}
}

func (b *Basic) Reserve(n int) {
	if n > 0 {
		b.tokens = make([]string, 0, n)
	}
}

func (b *Basic) GetWordID(token string) WordID {
	if token == UnknownToken {
		return Unknown
	}
	item := b.trie.Get(patricia.Prefix(token))
	if item == nil {
		return Unknown
	}
	return item.(WordID)
}

// RegisterWord assigns a fresh continuous id, except for the literal ARPA
// "<unk>" spelling, which binds to the reserved Unknown id instead of
// consuming a slot of its own: every out-of-vocabulary token already
// resolves to Unknown via GetWordID's miss path, so the 1-gram payload
// stored under the literal <unk> entry must live at that same id for
// unseen-token queries to find it.
func (b *Basic) RegisterWord(token string) WordID {
	if token == UnknownToken {
		return Unknown
	}
	if item := b.trie.Get(patricia.Prefix(token)); item != nil {
		return item.(WordID)
	}
	id := minValidID + WordID(len(b.tokens))
	b.tokens = append(b.tokens, token)
	b.trie.Insert(patricia.Prefix(token), id)
	return id
}

func (b *Basic) IsContinuous() bool { return true }

func (b *Basic) Len() int { return len(b.tokens) }

func (b *Basic) Token(id WordID) (string, bool) {
	if id < minValidID {
		return "", false
	}
	idx := int(id - minValidID)
	if idx < 0 || idx >= len(b.tokens) {
		return "", false
	}
	return b.tokens[idx], true
}

func (b *Basic) NeedsCounting() bool     { return false }
func (b *Basic) CountWord(string, float64) {}
func (b *Basic) FinalizeCounting()       {}
func (b *Basic) NeedsPostActions() bool  { return false }
func (b *Basic) PostActions()            {}

// countedWord holds a token's observed 1-gram probability during the
// counting pass, before any id has been assigned.
type countedWord struct {
	token string
	prob  float64
}

// Counting wraps a Basic index but defers id assignment until the whole
// 1-gram section has been scanned, then hands out the lowest ids to the
// highest-probability words so downstream code can exploit smaller ids
// for hotter words.
type Counting struct {
	*Basic
	counted  []countedWord
	counting bool
}

// NewCounting constructs an empty Counting word index, starting in
// counting mode.
func NewCounting() *Counting {
	return &Counting{Basic: NewBasic(), counting: true}
}

func (c *Counting) Reserve(n int) {
	c.Basic.Reserve(n)
	if n > 0 {
		c.counted = make([]countedWord, 0, n)
	}
}

func (c *Counting) NeedsCounting() bool { return c.counting }

func (c *Counting) CountWord(token string, prob float64) {
	if !c.counting {
		return
	}
	c.counted = append(c.counted, countedWord{token: token, prob: prob})
}

// FinalizeCounting sorts counted words by descending probability and
// assigns ids in that order, then leaves the index ready for a second pass
// of RegisterWord calls (which will now just resolve the pre-assigned ids).
func (c *Counting) FinalizeCounting() {
	if !c.counting {
		return
	}
	sort.SliceStable(c.counted, func(i, j int) bool {
		return c.counted[i].prob > c.counted[j].prob
	})
	for _, cw := range c.counted {
		c.Basic.RegisterWord(cw.token)
	}
	c.counting = false
	c.counted = nil
}
