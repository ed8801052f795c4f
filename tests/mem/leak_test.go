//go:build test

package mem

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/arpalm/arpalm/pkg/arpa"
	"github.com/arpalm/arpalm/pkg/query"
	"github.com/arpalm/arpalm/pkg/trie"
	"github.com/arpalm/arpalm/pkg/wordindex"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

// testModel is a small trigram ARPA fixture, large enough to exercise
// both the direct-hit and back-off paths the evaluator walks.
const testModel = "\\data\\\n" +
	"ngram 1=6\n" +
	"ngram 2=4\n" +
	"ngram 3=2\n" +
	"\n" +
	"\\1-grams:\n" +
	"-1.0\t<unk>\n" +
	"-0.40\tthe\t-0.30103\n" +
	"-0.60\tcat\t-0.20\n" +
	"-0.70\tsat\t-0.10\n" +
	"-0.80\tmat\t0.0\n" +
	"-0.90\ton\t-0.05\n" +
	"\n" +
	"\\2-grams:\n" +
	"-0.30\tthe cat\t-0.15\n" +
	"-0.35\tcat sat\t-0.12\n" +
	"-0.25\tsat on\t-0.08\n" +
	"-0.45\ton the\t-0.11\n" +
	"\n" +
	"\\3-grams:\n" +
	"-0.15\tthe cat sat\n" +
	"-0.22\tcat sat on\n" +
	"\\end\\\n"

var testWindows = [][]string{
	{"the"}, {"cat"}, {"the", "cat"}, {"cat", "sat"},
	{"the", "cat", "sat"}, {"cat", "sat", "on"}, {"sat", "on", "the"},
	{"a", "dog", "ran"}, {"the", "mat"}, {"on", "the", "mat"},
}

var longQueries = [][]string{
	{"the", "cat", "sat", "on", "the", "mat"},
	{"the", "cat", "sat", "on", "the", "mat", "again"},
	{"a", "dog", "sat", "on", "a", "mat"},
	{"the", "cat", "ran"},
}

// newEvaluator builds an Evaluator over the fixture model, exactly the
// way cmd/lmquery's loadModel does: via a temp file driven through
// arpa.Builder.LoadFromPath (mmap reader, advisory lock, full build).
func newEvaluator(t testing.TB) *query.Evaluator {
	t.Helper()
	dir := t.TempDir()
	path := dir + "/model.arpa"
	if err := writeFixture(path); err != nil {
		t.Fatalf("writing fixture model: %v", err)
	}

	idx := wordindex.NewBasic()
	store, err := trie.New("c2dm", 3, false)
	if err != nil {
		t.Fatalf("trie.New: %v", err)
	}
	b := arpa.NewBuilder(idx, store, 3)
	if err := b.LoadFromPath(path); err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	return query.New(idx, store, 3)
}

func writeFixture(path string) error {
	return os.WriteFile(path, []byte(testModel), 0o644)
}

func TestMemoryLeakBasic(t *testing.T) {
	iterations := []int{100, 500, 1000, 2500, 5000}

	for _, iterCount := range iterations {
		t.Run(fmt.Sprintf("iterations_%d", iterCount), func(t *testing.T) {
			runBasicMemoryTest(t, iterCount, testWindows)
		})
	}
}

func TestMemoryLeakConcurrent(t *testing.T) {
	configs := []struct {
		workers             int
		iterationsPerWorker int
	}{
		{workers: 1, iterationsPerWorker: 1000},
		{workers: 2, iterationsPerWorker: 500},
		{workers: 4, iterationsPerWorker: 250},
		{workers: 8, iterationsPerWorker: 125},
	}

	for _, config := range configs {
		t.Run(fmt.Sprintf("workers_%d_iter_%d", config.workers, config.iterationsPerWorker), func(t *testing.T) {
			runConcurrentMemoryTest(t, config.workers, config.iterationsPerWorker)
		})
	}
}

func TestMemoryStabilityLongRun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping long-running memory stability test in short mode")
	}

	cycles := 50
	opsPerCycle := 200

	runLongRunMemoryTest(t, cycles, opsPerCycle)
}

func runBasicMemoryTest(t *testing.T, iterations int, windows [][]string) {
	eval := newEvaluator(t)
	scratch := query.NewScratch(256)

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)
	baselineGoroutines := runtime.NumGoroutine()

	for i := 0; i < iterations; i++ {
		for _, w := range windows {
			ids := eval.ResolveLine(w)
			_ = eval.LogP(ids, scratch)
		}
	}

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)
	finalGoroutines := runtime.NumGoroutine()

	memDelta := int64(final.Alloc - baseline.Alloc)
	goroutineDelta := finalGoroutines - baselineGoroutines
	totalOps := iterations * len(windows)
	memPerOp := float64(memDelta) / float64(totalOps)

	t.Logf("iterations=%d ops=%d mem_delta=%d bytes mem_per_op=%.2f goroutine_delta=%d",
		iterations, totalOps, memDelta, memPerOp, goroutineDelta)

	if memPerOp > 1000 {
		t.Errorf("excessive memory usage per operation: %.2f bytes", memPerOp)
	}
	if goroutineDelta > 2 {
		t.Errorf("goroutine leak detected: %d goroutines leaked", goroutineDelta)
	}
}

func runConcurrentMemoryTest(t *testing.T, workers, iterationsPerWorker int) {
	dir := t.TempDir()
	profPath := dir + "/concurrent_memory.prof"
	memFile, err := os.Create(profPath)
	if err != nil {
		t.Fatalf("profile file creation failed: %v", err)
	}
	defer memFile.Close()

	eval := newEvaluator(t)

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)
	baselineGoroutines := runtime.NumGoroutine()

	var wg sync.WaitGroup
	var totalOps int64
	var mu sync.Mutex

	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scratch := query.NewScratch(256)
			ops := 0
			for iter := 0; iter < iterationsPerWorker; iter++ {
				for _, q := range longQueries {
					ids := eval.ResolveLine(q)
					sum, _ := eval.Cumulative(ids, 1, scratch)
					_ = sum
					ops++
				}
			}
			mu.Lock()
			totalOps += int64(ops)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)
	finalGoroutines := runtime.NumGoroutine()

	memDelta := int64(final.Alloc - baseline.Alloc)
	goroutineDelta := finalGoroutines - baselineGoroutines
	memPerOp := float64(memDelta) / float64(totalOps)

	t.Logf("workers=%d iter_per_worker=%d total_ops=%d mem_delta=%d bytes mem_per_op=%.2f goroutine_delta=%d",
		workers, iterationsPerWorker, totalOps, memDelta, memPerOp, goroutineDelta)

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		t.Errorf("heap profile write failed: %v", err)
	}

	if memPerOp > 1000 {
		t.Errorf("excessive memory usage per operation: %.2f bytes", memPerOp)
	}
	if goroutineDelta > 3 {
		t.Errorf("goroutine leak detected: %d goroutines leaked", goroutineDelta)
	}
}

func runLongRunMemoryTest(t *testing.T, cycles, opsPerCycle int) {
	dir := t.TempDir()
	profPath := dir + "/longrun_stability.prof"
	memFile, err := os.Create(profPath)
	if err != nil {
		t.Fatalf("profile file creation failed: %v", err)
	}
	defer memFile.Close()

	eval := newEvaluator(t)
	scratch := query.NewScratch(256)

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)
	baselineGoroutines := runtime.NumGoroutine()

	totalOps := 0
	maxMemDelta := int64(0)

	for cycle := 0; cycle < cycles; cycle++ {
		for op := 0; op < opsPerCycle; op++ {
			q := longQueries[op%len(longQueries)]
			ids := eval.ResolveLine(q)
			_, _ = eval.Cumulative(ids, 1, scratch)
			totalOps++
		}

		if cycle%10 == 0 {
			var m runtime.MemStats
			runtime.GC()
			runtime.ReadMemStats(&m)

			memDelta := int64(m.Alloc - baseline.Alloc)
			goroutineDelta := runtime.NumGoroutine() - baselineGoroutines
			memPerOp := float64(memDelta) / float64(totalOps)

			if memDelta > maxMemDelta {
				maxMemDelta = memDelta
			}

			t.Logf("cycle=%d ops=%d mem_delta=%d bytes mem_per_op=%.2f goroutine_delta=%d",
				cycle, totalOps, memDelta, memPerOp, goroutineDelta)
		}

		time.Sleep(5 * time.Millisecond)
	}

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)
	finalGoroutines := runtime.NumGoroutine()

	finalMemDelta := int64(final.Alloc - baseline.Alloc)
	finalGoroutineDelta := finalGoroutines - baselineGoroutines
	finalMemPerOp := float64(finalMemDelta) / float64(totalOps)

	t.Logf("final_summary: cycles=%d total_ops=%d mem_delta=%d bytes mem_per_op=%.2f goroutine_delta=%d max_mem_delta=%d",
		cycles, totalOps, finalMemDelta, finalMemPerOp, finalGoroutineDelta, maxMemDelta)

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		t.Errorf("heap profile write failed: %v", err)
	}

	if finalMemPerOp > 500 {
		t.Errorf("excessive memory usage per operation: %.2f bytes", finalMemPerOp)
	}
	if finalGoroutineDelta > 2 {
		t.Errorf("goroutine leak detected: %d goroutines leaked", finalGoroutineDelta)
	}
	if maxMemDelta > 10*1024*1024 {
		t.Errorf("excessive peak memory usage: %d bytes", maxMemDelta)
	}
}
