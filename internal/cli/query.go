// Package cli drives query-line evaluation against a loaded language
// model, adapted from the teacher's InputHandler (prompt loop -> handle
// one input -> log results), retargeted from prefix completion to
// m-gram log-probability queries (spec.md §6 stdout contract).
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/arpalm/arpalm/pkg/query"
)

// Runner evaluates query lines read from an io.Reader and prints one
// result line per query (plus one line per window in cumulative mode),
// in the stdout contract's format.
type Runner struct {
	eval       *query.Evaluator
	cumulative bool
	scratch    *query.Scratch
}

// NewRunner builds a Runner around an Evaluator. cumulative selects
// sliding-window scoring (spec.md §4.5) over single-query scoring.
func NewRunner(eval *query.Evaluator, cumulative bool) *Runner {
	return &Runner{eval: eval, cumulative: cumulative, scratch: query.NewScratch(256)}
}

// RunFile evaluates every non-blank line of r (the -q <path> surface).
func (run *Runner) RunFile(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		run.handleLine(line)
	}
	return scanner.Err()
}

// handleLine resolves and scores one query line, logging its result per
// spec.md §6: single mode prints one value, cumulative mode prints the
// sum and each window's contribution.
func (run *Runner) handleLine(line string) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return
	}

	if !run.cumulative {
		// B3: a query longer than the model order condenses to its last N
		// tokens in single mode (cumulative mode instead slides a window,
		// handled inside Evaluator.Cumulative).
		n := run.eval.N()
		condensed := tokens
		if len(condensed) > n {
			condensed = condensed[len(condensed)-n:]
		}
		words := run.eval.ResolveLine(condensed)
		v := run.eval.LogP(words, run.scratch)
		fmt.Printf("log_10( Prob( %s ) ) = %s\n", line, strconv.FormatFloat(v, 'g', -1, 32))
		return
	}

	words := run.eval.ResolveLine(tokens)
	minLevel := 1
	if len(words) > 1 {
		minLevel = 2
	}
	sum, perWindow := run.eval.Cumulative(words, minLevel, run.scratch)
	fmt.Printf("log_10( Prob( %s ) ) = %s\n", line, strconv.FormatFloat(sum, 'g', -1, 32))
	for i, v := range perWindow {
		fmt.Printf("  window %d: %s\n", i+1, strconv.FormatFloat(v, 'g', -1, 32))
	}
}
