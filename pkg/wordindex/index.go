// Package wordindex implements the vocabulary that maps surface tokens to
// dense 32-bit word ids, in four variants: Basic, Counting, Optimizing and
// Hashing. All variants share one contract (the Index interface below) so
// the ARPA builder and query evaluator never need to know which one is in
// play.
package wordindex

// WordID is the integer handle a token resolves to. 32 bits is ample for
// any realistic vocabulary.
type WordID uint32

const (
	// Undefined marks "no id" / "not yet assigned" contexts.
	Undefined WordID = 0
	// Unknown is the reserved id for out-of-vocabulary tokens.
	Unknown WordID = 0 + 1
	// minValidID is the first id handed out to a real token.
	minValidID WordID = 2
)

// UnknownToken is the canonical ARPA spelling for the out-of-vocabulary
// entry. Builders look for this exact token in the 1-gram section.
const UnknownToken = "<unk>"

// Index is the contract every word-index variant satisfies. None of its
// methods ever fail outright: a miss resolves to Unknown for continuous
// variants, or to a hash that simply won't match any stored payload for
// discontinuous ones.
type Index interface {
	// Reserve hints at the number of distinct tokens to expect.
	Reserve(n int)
	// GetWordID resolves a token to its id without registering it.
	GetWordID(token string) WordID
	// RegisterWord assigns (or returns the existing) id for token. Must be
	// idempotent: registering the same token twice returns the same id.
	RegisterWord(token string) WordID
	// IsContinuous reports whether issued ids form [minValidID, minValidID+|V|).
	IsContinuous() bool
	// Len returns the number of registered tokens (excluding the two
	// reserved ids).
	Len() int
	// Token performs the reverse lookup id->token, used by dumps/tests and
	// by diagnostics; not required on the query hot path.
	Token(id WordID) (string, bool)

	// NeedsCounting reports whether this variant wants the two-pass
	// counting protocol below driven during 1-gram ingestion.
	NeedsCounting() bool
	// CountWord records a 1-gram's probability during the first pass; id
	// registration is deferred until FinalizeCounting.
	CountWord(token string, prob float64)
	// FinalizeCounting assigns ids to counted tokens, lowest ids to the
	// highest-probability words, then flips the index into registration
	// mode for the (now id-aware) second pass.
	FinalizeCounting()

	// NeedsPostActions reports whether a build-completion hook should run
	// (e.g. building the Optimizing variant's probe table).
	NeedsPostActions() bool
	// PostActions runs that hook. Must be idempotent.
	PostActions()
}
