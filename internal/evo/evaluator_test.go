package evo

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/pdturney/management-theory/internal/seed"
	"github.com/pdturney/management-theory/internal/sim"
)

// fakeRunner returns fixed counts or a fixed error for every trial, and
// records the specs it was handed. Safe for concurrent use so it can sit
// behind the ledger's worker pool.
type fakeRunner struct {
	counts sim.Counts
	err    error

	mu    sync.Mutex
	specs []sim.TrialSpec
}

func (f *fakeRunner) RunTrial(_ context.Context, spec sim.TrialSpec) (sim.Counts, error) {
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	f.mu.Unlock()
	if f.err != nil {
		return sim.Counts{}, f.err
	}
	return f.counts, nil
}

func mustRandomSeed(t *testing.T, rng *rand.Rand, xspan, yspan int) *seed.Seed {
	t.Helper()
	s, err := seed.Random(rng, xspan, yspan, 0.8)
	if err != nil {
		t.Fatalf("Random: %v", err)
	}
	if s.NumLiving == 0 {
		s.Cells[0][0] = seed.Red
		s.RefreshLiveCount()
	}
	return s
}

func TestNewEvaluatorValidatesFactors(t *testing.T) {
	runner := &fakeRunner{}
	cases := []struct {
		name                   string
		width, height, time, n int
	}{
		{"width factor too small", 2, 3, 3, 1},
		{"height factor too small", 6, 1, 3, 1},
		{"time factor too small", 6, 3, 1, 1},
		{"zero trials", 6, 3, 3, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewEvaluator(runner, tc.width, tc.height, tc.time, tc.n); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
	if _, err := NewEvaluator(nil, 6, 3, 3, 1); err == nil {
		t.Fatal("expected error for nil runner, got nil")
	}
	if _, err := NewEvaluator(runner, 6, 3, 3, 2); err != nil {
		t.Fatalf("valid evaluator rejected: %v", err)
	}
}

func TestScorePairRejectsEmptySeeds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	ev, err := NewEvaluator(&fakeRunner{}, 6, 3, 3, 1)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	a := mustRandomSeed(t, rng, 4, 4)
	empty, err := seed.New(4, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := ev.ScorePair(context.Background(), rng, a, empty); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("error = %v, want ErrPrecondition", err)
	}
	if _, _, err := ev.ScorePair(context.Background(), rng, nil, a); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("error = %v, want ErrPrecondition", err)
	}
}

func TestScorePairGeometryScalesWithSeeds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	runner := &fakeRunner{counts: sim.Counts{Red: 100, Blue: 100}}
	ev, err := NewEvaluator(runner, 6, 3, 3, 4)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	a := mustRandomSeed(t, rng, 5, 3)
	b := mustRandomSeed(t, rng, 2, 4)

	if _, _, err := ev.ScorePair(context.Background(), rng, a, b); err != nil {
		t.Fatalf("ScorePair: %v", err)
	}
	if len(runner.specs) != 4 {
		t.Fatalf("ran %d trials, want 4", len(runner.specs))
	}
	for i, spec := range runner.specs {
		// Largest span across both rotated seeds is 5 regardless of rotation.
		if spec.Width != 30 || spec.Height != 15 {
			t.Fatalf("trial %d universe = %dx%d, want 30x15", i, spec.Width, spec.Height)
		}
		if spec.Steps != (30+15)*3 {
			t.Fatalf("trial %d steps = %d, want %d", i, spec.Steps, (30+15)*3)
		}
		if spec.PlaceA.X+spec.SeedA.XSpan > spec.Width/2 {
			t.Fatalf("trial %d left seed crosses midline", i)
		}
		if spec.PlaceB.X < spec.Width/2 {
			t.Fatalf("trial %d right seed starts at x=%d, want >= %d", i, spec.PlaceB.X, spec.Width/2)
		}
		if spec.SeedB.NumLiving > 0 {
			for x := 0; x < spec.SeedB.XSpan; x++ {
				for y := 0; y < spec.SeedB.YSpan; y++ {
					if spec.SeedB.Cells[x][y] == seed.Red {
						t.Fatalf("trial %d right seed still has red cells", i)
					}
				}
			}
		}
	}
}

func TestScorePairWinTieLoss(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	a := mustRandomSeed(t, rng, 3, 3)
	b := mustRandomSeed(t, rng, 3, 3)

	cases := []struct {
		name   string
		counts sim.Counts
		want   float64
	}{
		{"red grows more", sim.Counts{Red: 50, Blue: 0}, 1.0},
		{"blue grows more", sim.Counts{Red: 0, Blue: 50}, 0.0},
		{"both die back", sim.Counts{Red: 0, Blue: 0}, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := NewEvaluator(&fakeRunner{counts: tc.counts}, 6, 3, 3, 3)
			if err != nil {
				t.Fatalf("NewEvaluator: %v", err)
			}
			gotA, gotB, err := ev.ScorePair(context.Background(), rng, a, b)
			if err != nil {
				t.Fatalf("ScorePair: %v", err)
			}
			if gotA != tc.want {
				t.Fatalf("score = %v, want %v", gotA, tc.want)
			}
			if gotA+gotB != 1.0 {
				t.Fatalf("scores %v + %v do not sum to 1", gotA, gotB)
			}
		})
	}
}

func TestScorePairPropagatesRunnerError(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	boom := errors.New("simulator down")
	ev, err := NewEvaluator(&fakeRunner{err: boom}, 6, 3, 3, 2)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	a := mustRandomSeed(t, rng, 3, 3)
	b := mustRandomSeed(t, rng, 3, 3)
	if _, _, err := ev.ScorePair(context.Background(), rng, a, b); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped simulator error", err)
	}
}
