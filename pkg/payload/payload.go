// Package payload defines the small POD records stored at each trie level.
package payload

import "math"

// UnkDefault is the sentinel log10 probability assigned to the reserved
// UNKNOWN word when the ARPA model carries no explicit <unk> entry.
const UnkDefault = -10.0

// NegInf is the log10 of a zero probability. Nothing in the engine stores
// or combines it; Saturate returns the same value for NaN inputs.
var NegInf = math.Inf(-1)

// MidGram is the payload for 1..N-1 gram levels: a log10 probability and
// an optional log10 back-off weight. A back-off weight absent from the
// source ARPA is represented as 0.0 (I2), which is neutral under log10
// addition.
type MidGram struct {
	Prob float32
	Back float32
}

// TopGram is the payload for the level-N grams: probability only, no
// back-off weight is ever stored at the final level (§3).
type TopGram struct {
	Prob float32
}

// Saturate clamps log-domain arithmetic so that combining a finite value
// with -inf (the conventional ARPA "-99"/"-inf" zero-probability sentinel)
// never produces NaN: -inf + finite = -inf, and two -inf values still sum
// to -inf rather than NaN (which plain float addition already guarantees,
// this just documents and asserts the invariant for the open question in
// spec.md §9).
func Saturate(v float64) float64 {
	if math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}
