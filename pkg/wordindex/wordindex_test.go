package wordindex

import "testing"

// R1: registering the same token twice must return the same id.
func TestBasicRegisterIdempotent(t *testing.T) {
	b := NewBasic()
	id1 := b.RegisterWord("the")
	id2 := b.RegisterWord("the")
	if id1 != id2 {
		t.Fatalf("RegisterWord not idempotent: %d != %d", id1, id2)
	}
	if id1 < minValidID {
		t.Fatalf("id %d below minValidID %d", id1, minValidID)
	}
}

func TestBasicContinuousIDs(t *testing.T) {
	b := NewBasic()
	if !b.IsContinuous() {
		t.Fatal("Basic must report continuous ids")
	}
	tokens := []string{"a", "b", "c"}
	ids := make([]WordID, len(tokens))
	for i, tok := range tokens {
		ids[i] = b.RegisterWord(tok)
	}
	for i, id := range ids {
		want := minValidID + WordID(i)
		if id != want {
			t.Errorf("token %q: got id %d, want %d", tokens[i], id, want)
		}
	}
}

func TestBasicUnknownOnMiss(t *testing.T) {
	b := NewBasic()
	b.RegisterWord("the")
	if got := b.GetWordID("nonexistent"); got != Unknown {
		t.Errorf("unseen token: got %d, want Unknown(%d)", got, Unknown)
	}
}

// Scenario 6: after FinalizeCounting, ids are assigned in descending
// probability order, so a high-probability word gets a lower id than a
// low-probability one, independent of registration order.
func TestCountingReassignsIDsByProbability(t *testing.T) {
	c := NewCounting()
	c.CountWord("rare", -2.0)
	c.CountWord("common", -0.1)
	c.FinalizeCounting()

	if c.NeedsCounting() {
		t.Fatal("still in counting mode after FinalizeCounting")
	}

	idCommon := c.RegisterWord("common")
	idRare := c.RegisterWord("rare")
	if !(idCommon < idRare) {
		t.Errorf("id(common)=%d should be < id(rare)=%d", idCommon, idRare)
	}
}

func TestCountingSkipsCountWordAfterFinalize(t *testing.T) {
	c := NewCounting()
	c.CountWord("a", -1.0)
	c.FinalizeCounting()
	c.CountWord("b", -1.0) // must be a no-op post-finalize
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (post-finalize CountWord must be ignored)", c.Len())
	}
}

func TestHashingDiscontinuousAndDeterministic(t *testing.T) {
	h := NewHashing()
	if h.IsContinuous() {
		t.Fatal("Hashing must report discontinuous ids")
	}
	id1 := h.RegisterWord("the")
	id2 := h.GetWordID("the")
	if id1 != id2 {
		t.Errorf("hash id not stable across calls: %d != %d", id1, id2)
	}
	if tok, ok := h.Token(id1); !ok || tok != "the" {
		t.Errorf("Token(%d) = (%q, %v), want (\"the\", true)", id1, tok, ok)
	}
}

func TestHashingNeverReturnsReservedIDs(t *testing.T) {
	// hashToken must never produce Undefined or Unknown for a real token,
	// regardless of what the underlying hash happens to compute.
	tokens := []string{"a", "the", "zzz", "", "x"}
	for _, tok := range tokens {
		id := hashToken(tok)
		if id == Undefined || id == Unknown {
			t.Errorf("hashToken(%q) = %d, collides with a reserved id", tok, id)
		}
	}
}

func TestOptimizingWrapsBasicAfterPostActions(t *testing.T) {
	o := NewOptimizing(NewBasic())
	ids := map[string]WordID{}
	for _, tok := range []string{"the", "cat", "sat", "on", "mat"} {
		ids[tok] = o.RegisterWord(tok)
	}
	if !o.NeedsPostActions() {
		t.Fatal("Optimizing must need PostActions")
	}
	o.PostActions()

	for tok, want := range ids {
		if got := o.GetWordID(tok); got != want {
			t.Errorf("GetWordID(%q) post-build = %d, want %d", tok, got, want)
		}
	}
	if got := o.GetWordID("unseen"); got != Unknown {
		t.Errorf("GetWordID(unseen) = %d, want Unknown", got)
	}
}

func TestOptimizingOverCounting(t *testing.T) {
	o := NewOptimizing(NewCounting())
	o.CountWord("rare", -2.0)
	o.CountWord("common", -0.1)
	o.FinalizeCounting()
	idCommon := o.RegisterWord("common")
	idRare := o.RegisterWord("rare")
	o.PostActions()

	if !(idCommon < idRare) {
		t.Fatalf("counting reassignment lost through Optimizing wrapper")
	}
	if got := o.GetWordID("common"); got != idCommon {
		t.Errorf("GetWordID(common) = %d, want %d", got, idCommon)
	}
}

func TestNewFactory(t *testing.T) {
	cases := []string{"basic", "counting", "optimizing_basic", "optimizing_counting", "hashing"}
	for _, kind := range cases {
		idx, err := New(kind)
		if err != nil {
			t.Errorf("New(%q) error: %v", kind, err)
			continue
		}
		if idx == nil {
			t.Errorf("New(%q) returned nil index", kind)
		}
	}
	if _, err := New("bogus"); err == nil {
		t.Error("New(\"bogus\") should error")
	}
}

func TestReport(t *testing.T) {
	b := NewBasic()
	b.RegisterWord("the")
	b.RegisterWord("cat")
	stats := Report(b)
	if stats.Words != 2 {
		t.Errorf("Words = %d, want 2", stats.Words)
	}
	if !stats.Continuous {
		t.Error("Continuous should be true for Basic")
	}
	if stats.String() == "" {
		t.Error("String() should not be empty")
	}
}
