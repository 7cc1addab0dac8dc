package sim

import (
	"context"
	"testing"

	"github.com/pdturney/management-theory/internal/seed"
)

func seedFromRows(t *testing.T, rows []string) *seed.Seed {
	t.Helper()
	s, err := seed.New(len(rows[0]), len(rows))
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	for y, row := range rows {
		for x, ch := range row {
			s.Cells[x][y] = uint8(ch - '0')
		}
	}
	s.RefreshLiveCount()
	return s
}

func emptySeed(t *testing.T) *seed.Seed {
	t.Helper()
	s, err := seed.New(1, 1)
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	return s
}

func TestBlockIsStill(t *testing.T) {
	block := seedFromRows(t, []string{
		"11",
		"11",
	})
	engine := Immigration{}
	counts, err := engine.RunTrial(context.Background(), TrialSpec{
		SeedA:  block,
		SeedB:  emptySeed(t),
		PlaceA: Placement{X: 3, Y: 3},
		PlaceB: Placement{X: 0, Y: 0},
		Width:  10,
		Height: 10,
		Steps:  8,
	})
	if err != nil {
		t.Fatalf("run trial: %v", err)
	}
	if counts.Red != 4 || counts.Blue != 0 {
		t.Fatalf("block should persist unchanged: got %+v", counts)
	}
}

func TestBlinkerOscillates(t *testing.T) {
	blinker := seedFromRows(t, []string{
		"111",
	})
	engine := Immigration{}
	for _, steps := range []int{1, 2, 3, 4} {
		counts, err := engine.RunTrial(context.Background(), TrialSpec{
			SeedA:  blinker,
			SeedB:  emptySeed(t),
			PlaceA: Placement{X: 4, Y: 4},
			PlaceB: Placement{X: 0, Y: 0},
			Width:  12,
			Height: 12,
			Steps:  steps,
		})
		if err != nil {
			t.Fatalf("run trial (%d steps): %v", steps, err)
		}
		if counts.Red != 3 {
			t.Fatalf("blinker should keep 3 cells at step %d: got %+v", steps, counts)
		}
	}
}

func TestBirthTakesMajorityColor(t *testing.T) {
	// A vertical blinker colored red, red, blue. The end cells die, the
	// center survives, and the two newborn cells each have parents
	// {red, red, blue}, so both must be born red: after one step the
	// universe holds exactly three red cells and no blue ones.
	mixed := seedFromRows(t, []string{
		"1",
		"1",
		"2",
	})
	engine := Immigration{}
	counts, err := engine.RunTrial(context.Background(), TrialSpec{
		SeedA:  mixed,
		SeedB:  emptySeed(t),
		PlaceA: Placement{X: 5, Y: 5},
		PlaceB: Placement{X: 0, Y: 0},
		Width:  14,
		Height: 14,
		Steps:  1,
	})
	if err != nil {
		t.Fatalf("run trial: %v", err)
	}
	if counts.Red != 3 || counts.Blue != 0 {
		t.Fatalf("mixed blinker should turn all red after one step: got %+v", counts)
	}
}

func TestToroidalWraparound(t *testing.T) {
	// A blinker straddling the seam must behave exactly like one in the
	// interior.
	blinker := seedFromRows(t, []string{
		"111",
	})
	engine := Immigration{}
	counts, err := engine.RunTrial(context.Background(), TrialSpec{
		SeedA:  blinker,
		SeedB:  emptySeed(t),
		PlaceA: Placement{X: 9, Y: 5}, // wraps past x=10
		PlaceB: Placement{X: 0, Y: 0},
		Width:  10,
		Height: 10,
		Steps:  2,
	})
	if err != nil {
		t.Fatalf("run trial: %v", err)
	}
	if counts.Red != 3 {
		t.Fatalf("wrapped blinker should keep 3 cells: got %+v", counts)
	}
}

func TestRunTrialValidatesSpec(t *testing.T) {
	engine := Immigration{}
	s := seedFromRows(t, []string{"11"})

	cases := []struct {
		name string
		spec TrialSpec
	}{
		{"nil seed", TrialSpec{SeedA: s, Width: 4, Height: 4, Steps: 1}},
		{"zero width", TrialSpec{SeedA: s, SeedB: s, Width: 0, Height: 4, Steps: 1}},
		{"negative steps", TrialSpec{SeedA: s, SeedB: s, Width: 4, Height: 4, Steps: -1}},
		{"seed too wide", TrialSpec{SeedA: s, SeedB: s, Width: 1, Height: 4, Steps: 1}},
	}
	for _, tc := range cases {
		if _, err := engine.RunTrial(context.Background(), tc.spec); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestRunTrialHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := Immigration{}
	s := seedFromRows(t, []string{"111"})
	_, err := engine.RunTrial(ctx, TrialSpec{
		SeedA:  s,
		SeedB:  emptySeed(t),
		PlaceA: Placement{X: 2, Y: 2},
		Width:  8,
		Height: 8,
		Steps:  1000,
	})
	if err == nil {
		t.Fatal("expected context error")
	}
}
