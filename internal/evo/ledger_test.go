package evo

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/pdturney/management-theory/internal/seed"
	"github.com/pdturney/management-theory/internal/sim"
)

func testEvaluator(t *testing.T, runner sim.Runner) *Evaluator {
	t.Helper()
	ev, err := NewEvaluator(runner, 6, 3, 3, 1)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return ev
}

func testPopulation(t *testing.T, rng *rand.Rand, n int) []*seed.Seed {
	t.Helper()
	seeds := make([]*seed.Seed, n)
	for i := range seeds {
		seeds[i] = mustRandomSeed(t, rng, 4, 4)
	}
	return seeds
}

func newTestLedger(t *testing.T, rng *rand.Rand, n, workers int) *Ledger {
	t.Helper()
	ev := testEvaluator(t, &fakeRunner{counts: sim.Counts{Red: 40, Blue: 20}})
	l, err := NewLedger(context.Background(), rng, ev, testPopulation(t, rng, n), workers)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	return l
}

func TestNewLedgerValidates(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ev := testEvaluator(t, &fakeRunner{})
	if _, err := NewLedger(context.Background(), rng, nil, testPopulation(t, rng, 3), 2); err == nil {
		t.Fatal("expected error for nil evaluator")
	}
	if _, err := NewLedger(context.Background(), rng, ev, testPopulation(t, rng, 1), 2); err == nil {
		t.Fatal("expected error for undersized population")
	}
}

func TestLedgerMatricesAreSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	l := newTestLedger(t, rng, 6, 3)
	for i := 0; i < 6; i++ {
		if l.history[i][i] != 0.5 {
			t.Fatalf("history[%d][%d] = %v, want 0.5", i, i, l.history[i][i])
		}
		if l.similarity[i][i] != 1.0 {
			t.Fatalf("similarity[%d][%d] = %v, want 1.0", i, i, l.similarity[i][i])
		}
		for j := 0; j < 6; j++ {
			if got := l.history[i][j] + l.history[j][i]; math.Abs(got-1.0) > 1e-12 {
				t.Fatalf("history[%d][%d]+history[%d][%d] = %v, want 1.0", i, j, j, i, got)
			}
			if l.similarity[i][j] != l.similarity[j][i] {
				t.Fatalf("similarity not symmetric at (%d,%d)", i, j)
			}
		}
	}
}

func TestLedgerAssignsAddresses(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	l := newTestLedger(t, rng, 4, 2)
	for i := 0; i < 4; i++ {
		s, err := l.Seed(i)
		if err != nil {
			t.Fatalf("Seed(%d): %v", i, err)
		}
		if s.Address != i {
			t.Fatalf("seed at %d has address %d", i, s.Address)
		}
	}
	if _, err := l.Seed(4); err == nil {
		t.Fatal("expected error for out-of-range address")
	}
}

func TestLedgerDeterministicAcrossWorkerCounts(t *testing.T) {
	build := func(workers int) *Ledger {
		rng := rand.New(rand.NewSource(42))
		ev, err := NewEvaluator(sim.Immigration{}, 6, 3, 3, 2)
		if err != nil {
			t.Fatalf("NewEvaluator: %v", err)
		}
		l, err := NewLedger(context.Background(), rng, ev, testPopulation(t, rng, 5), workers)
		if err != nil {
			t.Fatalf("NewLedger: %v", err)
		}
		return l
	}
	a := build(1)
	b := build(4)
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			if a.history[i][j] != b.history[i][j] {
				t.Fatalf("history[%d][%d] differs across worker counts: %v vs %v",
					i, j, a.history[i][j], b.history[i][j])
			}
		}
	}
}

func TestTopKAndWorst(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	l := newTestLedger(t, rng, 5, 2)
	// Force a known fitness ordering.
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			switch {
			case i == j:
				l.history[i][j] = 0.5
			case i < j:
				l.history[i][j] = 1.0
			default:
				l.history[i][j] = 0.0
			}
		}
	}
	top, err := l.TopK(3)
	if err != nil {
		t.Fatalf("TopK(3): %v", err)
	}
	want := []int{0, 1, 2}
	for i := range want {
		if top[i] != want[i] {
			t.Fatalf("TopK(3) = %v, want %v", top, want)
		}
	}
	if got := l.Worst(); got != 4 {
		t.Fatalf("Worst() = %d, want 4", got)
	}
	for _, k := range []int{0, -1, 5, 10} {
		if _, err := l.TopK(k); !errors.Is(err, ErrPrecondition) {
			t.Fatalf("TopK(%d) error = %v, want ErrPrecondition", k, err)
		}
	}
}

func TestTopKStableOnTies(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	l := newTestLedger(t, rng, 5, 1)
	for i := range l.history {
		for j := range l.history[i] {
			l.history[i][j] = 0.5
		}
	}
	top, err := l.TopK(4)
	if err != nil {
		t.Fatalf("TopK(4): %v", err)
	}
	for i, addr := range top {
		if addr != i {
			t.Fatalf("tied TopK = %v, want ascending addresses", top)
		}
	}
}

func TestRandomSampleDistinct(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	l := newTestLedger(t, rng, 8, 2)
	got, err := l.RandomSample(rng, 5)
	if err != nil {
		t.Fatalf("RandomSample(5): %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("sample size = %d, want 5", len(got))
	}
	seen := map[int]bool{}
	for _, addr := range got {
		if addr < 0 || addr >= 8 {
			t.Fatalf("address %d out of range", addr)
		}
		if seen[addr] {
			t.Fatalf("duplicate address %d in sample", addr)
		}
		seen[addr] = true
	}
	for _, n := range []int{0, 8, 20} {
		if _, err := l.RandomSample(rng, n); !errors.Is(err, ErrPrecondition) {
			t.Fatalf("RandomSample(%d) error = %v, want ErrPrecondition", n, err)
		}
	}
}

func TestSimilarToExcludesSelf(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	l := newTestLedger(t, rng, 5, 2)
	got, err := l.SimilarTo(2, 0.0, 1.0)
	if err != nil {
		t.Fatalf("SimilarTo: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("full band returned %d addresses, want 4", len(got))
	}
	for _, addr := range got {
		if addr == 2 {
			t.Fatal("SimilarTo included the query address")
		}
	}
	if _, err := l.SimilarTo(9, 0, 1); err == nil {
		t.Fatal("expected error for out-of-range address")
	}
}

func TestReplaceRecomputesRowAndColumn(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	ev, err := NewEvaluator(sim.Immigration{}, 6, 3, 3, 1)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	l, err := NewLedger(context.Background(), rng, ev, testPopulation(t, rng, 4), 2)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	child := mustRandomSeed(t, rng, 5, 5)
	if err := l.Replace(context.Background(), rng, 1, child); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got, err := l.Seed(1)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if got != child || got.Address != 1 {
		t.Fatalf("address 1 holds %+v, want the installed child with address 1", got)
	}
	if l.history[1][1] != 0.5 || l.similarity[1][1] != 1.0 {
		t.Fatal("self-pair entries not reset after replacement")
	}
	for i := 0; i < 4; i++ {
		if i == 1 {
			continue
		}
		if got := l.history[1][i] + l.history[i][1]; math.Abs(got-1.0) > 1e-12 {
			t.Fatalf("history row/column not symmetric at %d after replacement", i)
		}
		other, _ := l.Seed(i)
		if want := seed.Similarity(child, other); l.similarity[1][i] != want {
			t.Fatalf("similarity[1][%d] = %v, want %v", i, l.similarity[1][i], want)
		}
	}
}

func TestReplaceRejectsBadChild(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	l := newTestLedger(t, rng, 3, 1)
	if err := l.Replace(context.Background(), rng, 0, nil); err == nil {
		t.Fatal("expected error for nil child")
	}
	empty, err := seed.New(3, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Replace(context.Background(), rng, 0, empty); err == nil {
		t.Fatal("expected error for lifeless child")
	}
	child := mustRandomSeed(t, rng, 3, 3)
	if err := l.Replace(context.Background(), rng, 7, child); err == nil {
		t.Fatal("expected error for out-of-range address")
	}
}
