package seed

import (
	"math/rand"
	"testing"
)

func mustNew(t *testing.T, xspan, yspan int) *Seed {
	t.Helper()
	s, err := New(xspan, yspan)
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	return s
}

func TestNewRejectsNonPositiveSpans(t *testing.T) {
	for _, spans := range [][2]int{{0, 4}, {4, 0}, {-1, 3}, {3, -1}} {
		if _, err := New(spans[0], spans[1]); err == nil {
			t.Fatalf("expected error for spans %dx%d", spans[0], spans[1])
		}
	}
}

func TestRandomDensityBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	if _, err := Random(rng, 4, 4, -0.1); err == nil {
		t.Fatal("expected error for negative density")
	}
	if _, err := Random(rng, 4, 4, 1.1); err == nil {
		t.Fatal("expected error for density > 1")
	}

	full, err := Random(rng, 5, 5, 1.0)
	if err != nil {
		t.Fatalf("random seed: %v", err)
	}
	if full.NumLiving != 25 {
		t.Fatalf("expected all cells live, got %d", full.NumLiving)
	}
	empty, err := Random(rng, 5, 5, 0.0)
	if err != nil {
		t.Fatalf("random seed: %v", err)
	}
	if empty.NumLiving != 0 {
		t.Fatalf("expected no live cells, got %d", empty.NumLiving)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := mustNew(t, 3, 2)
	s.Cells[1][1] = Red
	s.RefreshLiveCount()

	c := s.Clone()
	c.Cells[0][0] = Red
	if s.Cells[0][0] != Dead {
		t.Fatal("mutating clone changed the original")
	}
	if c.NumLiving != s.NumLiving {
		t.Fatalf("clone live count mismatch: got %d want %d", c.NumLiving, s.NumLiving)
	}
}

func TestRotate90Dimensions(t *testing.T) {
	s := mustNew(t, 4, 2)
	s.Cells[0][0] = Red
	s.RefreshLiveCount()

	r := s.Rotate90()
	if r.XSpan != 2 || r.YSpan != 4 {
		t.Fatalf("expected 2x4, got %dx%d", r.XSpan, r.YSpan)
	}
	// (0,0) maps to (yspan-1, 0) under a clockwise quarter turn.
	if r.Cells[1][0] != Red {
		t.Fatal("rotated cell not where expected")
	}
	if r.NumLiving != s.NumLiving {
		t.Fatal("rotation changed the live count")
	}

	// four quarter turns are the identity
	back := r.Rotate90().Rotate90().Rotate90()
	if Similarity(s, back) != 1.0 {
		t.Fatal("four quarter turns did not restore the seed")
	}
}

func TestFlipsAreInvolutions(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	s, err := Random(rng, 5, 3, 0.5)
	if err != nil {
		t.Fatalf("random seed: %v", err)
	}
	if Similarity(s, s.FlipHorizontal().FlipHorizontal()) != 1.0 {
		t.Fatal("double horizontal flip did not restore the seed")
	}
	if Similarity(s, s.FlipVertical().FlipVertical()) != 1.0 {
		t.Fatal("double vertical flip did not restore the seed")
	}
}

func TestRandomRotatePreservesLiveCount(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	s, err := Random(rng, 6, 4, 0.4)
	if err != nil {
		t.Fatalf("random seed: %v", err)
	}
	for i := 0; i < 20; i++ {
		r := s.RandomRotate(rng)
		if r.CountLive() != s.NumLiving {
			t.Fatalf("rotation %d changed live count: got %d want %d", i, r.CountLive(), s.NumLiving)
		}
	}
}

func TestShufflePreservesDimensionsAndCount(t *testing.T) {
	rng := rand.New(rand.NewSource(19))
	s, err := Random(rng, 7, 5, 0.5)
	if err != nil {
		t.Fatalf("random seed: %v", err)
	}
	sh := s.Shuffle(rng)
	if sh.XSpan != s.XSpan || sh.YSpan != s.YSpan {
		t.Fatalf("shuffle changed dimensions: %dx%d", sh.XSpan, sh.YSpan)
	}
	if sh.CountLive() != s.NumLiving {
		t.Fatalf("shuffle changed live count: got %d want %d", sh.CountLive(), s.NumLiving)
	}
	if s.CountLive() != s.NumLiving {
		t.Fatal("shuffle mutated the original")
	}
}

func TestRecolor(t *testing.T) {
	s := mustNew(t, 2, 2)
	s.Cells[0][0] = Red
	s.Cells[1][1] = Red
	s.RefreshLiveCount()

	b := s.Recolor(Blue)
	if b.Cells[0][0] != Blue || b.Cells[1][1] != Blue {
		t.Fatal("live cells not recolored")
	}
	if b.Cells[0][1] != Dead {
		t.Fatal("dead cell changed state")
	}
	if s.Cells[0][0] != Red {
		t.Fatal("recolor mutated the original")
	}
	if b.NumLiving != s.NumLiving {
		t.Fatal("recolor changed the live count")
	}
}

func TestFlipBitsRateOne(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	s, err := Random(rng, 4, 4, 0.5)
	if err != nil {
		t.Fatalf("random seed: %v", err)
	}
	before := s.NumLiving
	s.FlipBits(rng, 1.0)
	if s.NumLiving != 16-before {
		t.Fatalf("flipping every bit should invert the count: got %d want %d", s.NumLiving, 16-before)
	}
	if s.NumLiving != s.CountLive() {
		t.Fatal("NumLiving stale after FlipBits")
	}
}

func TestMutateKeepsCountConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	s, err := Random(rng, 5, 5, 0.5)
	if err != nil {
		t.Fatalf("random seed: %v", err)
	}
	for i := 0; i < 50; i++ {
		m := s.Mutate(rng, 0.3, 0.5, 0.3, 0.4, 0.1)
		if m.NumLiving != m.CountLive() {
			t.Fatalf("mutation %d left NumLiving stale: %d != %d", i, m.NumLiving, m.CountLive())
		}
		if m.XSpan <= 0 || m.YSpan <= 0 {
			t.Fatalf("mutation %d produced degenerate spans %dx%d", i, m.XSpan, m.YSpan)
		}
		s = m
	}
}

func TestMutateGrowAndShrinkChangeSpans(t *testing.T) {
	rng := rand.New(rand.NewSource(41))
	s, err := Random(rng, 4, 4, 0.5)
	if err != nil {
		t.Fatalf("random seed: %v", err)
	}

	grown := s.Mutate(rng, 1.0, 0, 0, 0.5, 0)
	if grown.Area() != 20 {
		t.Fatalf("grow should add one row or column: area %d", grown.Area())
	}
	shrunk := s.Mutate(rng, 0, 0, 1.0, 0.5, 0)
	if shrunk.Area() != 12 {
		t.Fatalf("shrink should remove one row or column: area %d", shrunk.Area())
	}
}

func TestSimilarity(t *testing.T) {
	a := mustNew(t, 3, 3)
	b := mustNew(t, 3, 3)
	if got := Similarity(a, b); got != 1.0 {
		t.Fatalf("identical seeds: got %v want 1", got)
	}

	b.Cells[0][0] = Red
	want := 8.0 / 9.0
	if got := Similarity(a, b); got != want {
		t.Fatalf("one differing cell: got %v want %v", got, want)
	}
	if Similarity(a, b) != Similarity(b, a) {
		t.Fatal("similarity is not symmetric")
	}
}

func TestSimilarityZeroForMismatchedDimensions(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	small, err := Random(rng, 3, 3, 0.5)
	if err != nil {
		t.Fatalf("random seed: %v", err)
	}
	big, err := Random(rng, 5, 5, 0.5)
	if err != nil {
		t.Fatalf("random seed: %v", err)
	}
	if got := Similarity(small, big); got != 0.0 {
		t.Fatalf("3x3 vs 5x5: got %v want 0", got)
	}
	tall := mustNew(t, 3, 4)
	if got := Similarity(small, tall); got != 0.0 {
		t.Fatalf("3x3 vs 3x4: got %v want 0", got)
	}
}
