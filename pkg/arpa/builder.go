// Package arpa implements the line-oriented ARPA model parser/builder
// (spec.md §4.4): it drives a wordindex.Index and a trie.Store through
// their build-time operations from a stream of lines produced by a
// filereader.Reader.
package arpa

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"

	"github.com/arpalm/arpalm/pkg/filereader"
	"github.com/arpalm/arpalm/pkg/payload"
	"github.com/arpalm/arpalm/pkg/trie"
	"github.com/arpalm/arpalm/pkg/wordindex"
)

const (
	markerData = `\data\`
	markerEnd  = `\end\`
)

// Builder drives an ARPA load into a wordindex.Index and trie.Store pair.
type Builder struct {
	idx   wordindex.Index
	store trie.Store
	n     int

	recording  bool
	entries    []Entry
	sawUnknown bool
}

// NewBuilder constructs a Builder for a model of order n.
func NewBuilder(idx wordindex.Index, store trie.Store, n int) *Builder {
	return &Builder{idx: idx, store: store, n: n}
}

// EnableRecording makes Load additionally remember every inserted m-gram
// (as word ids, not strings) so Dump can reproduce the ARPA text later
// without requiring a generic enumeration method on trie.Store, which
// none of the six layouts expose (§4.3 only specifies point lookups).
// Off by default: normal query-serving loads don't pay for it.
func (b *Builder) EnableRecording() { b.recording = true }

// Entries returns the m-grams recorded since recording was first
// enabled, in insertion order; EnableRecording does not clear them.
func (b *Builder) Entries() []Entry { return b.entries }

func (b *Builder) record(level int, ids []wordindex.WordID, prob, back float64, hasBack bool) {
	if !b.recording {
		return
	}
	cp := make([]wordindex.WordID, len(ids))
	copy(cp, ids)
	b.entries = append(b.entries, Entry{Level: level, Words: cp, Prob: prob, Back: back, HasBack: hasBack})
}

type unigramRaw struct {
	token string
	prob  float64
	back  float64
}

// LoadFromPath opens path (mmap, falling back to buffered for sources
// mmap can't map, e.g. pipes or empty files) and runs Load, holding an
// advisory file lock for the duration so two processes never race to
// (re)build a model from the same path concurrently. The lock is purely
// a load-time safety net (§5, I4): it is released as soon as Load
// returns, before the store ever serves a query.
func (b *Builder) LoadFromPath(path string) error {
	fl := flock.New(path + ".lock")
	locked, err := fl.TryLockContext(context.Background(), lockRetryInterval())
	if err != nil {
		return fmt.Errorf("arpa: acquiring load lock for %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("arpa: model %s is locked by another build", path)
	}
	defer fl.Unlock()

	r, err := filereader.OpenMmap(path)
	var reader filereader.Reader = r
	if err != nil {
		buffered, berr := filereader.OpenBuffered(path)
		if berr != nil {
			return fmt.Errorf("arpa: opening %s: %w", path, berr)
		}
		reader = buffered
	}
	defer reader.Close()

	return b.Load(reader)
}

// lockRetryInterval is how often TryLockContext polls while waiting for
// a concurrent build to release the lock; ARPA loads are sub-second to
// low-second for realistic models, so a short poll keeps wait latency
// low without busy-spinning.
func lockRetryInterval() time.Duration { return 50 * time.Millisecond }

// Load runs the full build algorithm (§4.4 steps 1-4) over r.
func (b *Builder) Load(r filereader.Reader) error {
	counts := make([]int, b.n+1)
	sawHeader := false
	sawData := false
	preallocated := false
	level := 0

	var rawUnigrams []unigramRaw
	countingPass := false

	finishLevel1 := func() {
		if !countingPass {
			return
		}
		b.idx.FinalizeCounting()
		for _, u := range rawUnigrams {
			id := b.idx.RegisterWord(u.token)
			b.store.Add1Gram(id, payload.MidGram{
				Prob: float32(payload.Saturate(u.prob)),
				Back: float32(payload.Saturate(u.back)),
			})
			b.record(1, []wordindex.WordID{id}, u.prob, u.back, u.back != 0)
		}
		rawUnigrams = nil
	}

	for {
		raw, ok := r.NextLine()
		if !ok {
			break
		}
		line := strings.TrimSpace(string(raw))
		if line == "" {
			continue
		}
		if line == markerData {
			sawData = true
			continue
		}
		if line == markerEnd {
			if level == 1 {
				finishLevel1()
			}
			b.finish()
			return nil
		}
		if lvl, isMarker := parseSectionMarker(line); isMarker {
			if !sawData {
				return fmt.Errorf("arpa: section marker %q before %s header", line, markerData)
			}
			if level == 1 && lvl != 1 {
				finishLevel1()
			}
			if !preallocated {
				if err := b.preallocate(counts); err != nil {
					return err
				}
				preallocated = true
			}
			level = lvl
			if level == 1 {
				countingPass = b.idx.NeedsCounting()
			}
			continue
		}
		if strings.HasPrefix(line, `\`) {
			return fmt.Errorf("arpa: malformed section marker %q", line)
		}
		if strings.HasPrefix(line, "ngram ") {
			lvl, count, err := parseCountLine(line)
			if err != nil {
				return fmt.Errorf("arpa: malformed counts header line %q: %w", line, err)
			}
			if lvl < 1 || lvl > b.n {
				return fmt.Errorf("arpa: counts header declares level %d outside [1,%d]", lvl, b.n)
			}
			counts[lvl] = count
			sawHeader = true
			continue
		}
		if level == 0 {
			log.Warnf("arpa: ignoring stray line before any section marker: %q", line)
			continue
		}
		if err := b.handleDataLine(r, raw, level, countingPass, &rawUnigrams); err != nil {
			log.Warnf("arpa: %v, skipping line", err)
		}
	}

	if !sawHeader {
		return fmt.Errorf("arpa: missing %s counts header", markerData)
	}
	// EOF without \end\: finalize whatever was in flight, same as a clean end.
	if level == 1 {
		finishLevel1()
	}
	b.finish()
	return nil
}

// finish runs the store and word-index build-completion hooks once all
// sections are loaded: trie.Store.Finalize (sorts/compresses the array-
// backed layouts, §4.2) and, if the word index wants it, PostActions
// (builds the Optimizing variant's probe table, §4.1). If the source
// model never carried an explicit "<unk>" 1-gram, it seeds the reserved
// Unknown word with payload.UnkDefault first, so Get1Gram(Unknown) never
// silently resolves to the zero value (probability 1.0) for models that
// rely on the implicit out-of-vocabulary fallback (I1, T4).
func (b *Builder) finish() {
	if !b.sawUnknown {
		b.store.Add1Gram(wordindex.Unknown, payload.MidGram{Prob: float32(payload.UnkDefault)})
	}
	b.store.Finalize()
	if b.idx.NeedsPostActions() {
		b.idx.PostActions()
	}
}

func (b *Builder) preallocate(counts []int) error {
	if len(counts) < b.n+1 {
		return fmt.Errorf("arpa: counts header incomplete for order %d", b.n)
	}
	b.idx.Reserve(counts[1])
	b.store.Preallocate(counts[1:])
	return nil
}

// handleDataLine parses one m-gram line and routes it into the word index
// or trie, depending on the level currently in progress. It uses the
// reader's own FirstTab/FirstSpace tokenizers (§4.6) rather than
// reimplementing field splitting, so both the mmap and buffered readers
// drive parsing identically.
func (b *Builder) handleDataLine(r filereader.Reader, raw []byte, level int, countingPass bool, rawUnigrams *[]unigramRaw) error {
	probField, rest, ok := r.FirstTab(raw)
	if !ok {
		return fmt.Errorf("missing tab after probability field")
	}
	prob, err := strconv.ParseFloat(strings.TrimSpace(string(probField)), 64)
	if err != nil {
		return fmt.Errorf("probability field %q is not a float", probField)
	}

	wordsField := rest
	var backField []byte
	hasBack := false
	if before, after, found := r.FirstTab(rest); found {
		wordsField = before
		backField = after
		hasBack = true
	}

	words := splitFields(r, wordsField)
	if len(words) != level {
		return fmt.Errorf("expected %d words, got %d", level, len(words))
	}

	var back float64
	if hasBack && (level == 1 || level != b.n) {
		back, err = strconv.ParseFloat(strings.TrimSpace(string(backField)), 64)
		if err != nil {
			return fmt.Errorf("back-off field %q is not a float", backField)
		}
	}

	if level == 1 {
		token := words[0]
		if token == wordindex.UnknownToken {
			b.sawUnknown = true
		}
		if countingPass {
			b.idx.CountWord(token, prob)
			*rawUnigrams = append(*rawUnigrams, unigramRaw{token: token, prob: prob, back: back})
			return nil
		}
		id := b.idx.RegisterWord(token)
		b.store.Add1Gram(id, payload.MidGram{
			Prob: float32(payload.Saturate(prob)),
			Back: float32(payload.Saturate(back)),
		})
		b.record(1, []wordindex.WordID{id}, prob, back, hasBack)
		return nil
	}

	ids := make([]wordindex.WordID, level)
	for i, w := range words {
		ids[i] = b.idx.GetWordID(w)
	}

	if level == b.n {
		b.store.AddNGram(ids, payload.TopGram{Prob: float32(payload.Saturate(prob))})
		b.record(level, ids, prob, 0, false)
		return nil
	}
	b.store.AddMGram(ids, payload.MidGram{
		Prob: float32(payload.Saturate(prob)),
		Back: float32(payload.Saturate(back)),
	})
	b.record(level, ids, prob, back, hasBack)
	return nil
}

// splitFields splits b into space-separated tokens via repeated
// FirstSpace calls, skipping empty tokens from runs of spaces.
func splitFields(r filereader.Reader, b []byte) []string {
	var out []string
	rest := b
	for {
		before, after, found := r.FirstSpace(rest)
		if !found {
			if len(rest) > 0 {
				out = append(out, string(rest))
			}
			return out
		}
		if len(before) > 0 {
			out = append(out, string(before))
		}
		rest = after
	}
}

// parseSectionMarker recognizes "\<n>-grams:" and reports n.
func parseSectionMarker(line string) (int, bool) {
	if len(line) < 4 || line[0] != '\\' {
		return 0, false
	}
	rest := line[1:]
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 || !strings.HasPrefix(rest[i:], "-grams:") {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:i])
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseCountLine parses "ngram <level>=<count>".
func parseCountLine(line string) (level, count int, err error) {
	fields := strings.Fields(line)
	if len(fields) != 2 || fields[0] != "ngram" {
		return 0, 0, fmt.Errorf("expected 'ngram <level>=<count>'")
	}
	parts := strings.SplitN(fields[1], "=", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected '<level>=<count>'")
	}
	level, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	count, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return level, count, nil
}
