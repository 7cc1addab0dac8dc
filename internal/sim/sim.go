// Package sim defines the contract between the evolutionary core and the
// cellular-automaton engine that settles competitive trials, plus a
// self-contained toroidal Immigration-game implementation of it. The core
// hands over seeds that are already rotated and colored; the engine is
// responsible only for stepping the universe and counting survivors.
package sim

import (
	"context"
	"fmt"

	"github.com/pdturney/management-theory/internal/seed"
)

// Placement is the top-left corner of a seed inside the trial universe.
type Placement struct {
	X int
	Y int
}

// TrialSpec describes one competitive trial between two pre-rotated,
// pre-colored seeds on a Width x Height toroid stepped Steps times.
type TrialSpec struct {
	SeedA  *seed.Seed
	SeedB  *seed.Seed
	PlaceA Placement
	PlaceB Placement
	Width  int
	Height int
	Steps  int
}

// Counts holds the post-run live-cell totals per color.
type Counts struct {
	Red  int
	Blue int
}

// Runner executes a single trial. Implementations must not retain or
// mutate the seeds in the spec.
type Runner interface {
	RunTrial(ctx context.Context, spec TrialSpec) (Counts, error)
}

func (s TrialSpec) validate() error {
	if s.SeedA == nil || s.SeedB == nil {
		return fmt.Errorf("trial requires two seeds")
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("trial universe must be positive: %dx%d", s.Width, s.Height)
	}
	if s.Steps < 0 {
		return fmt.Errorf("trial steps must be >= 0: %d", s.Steps)
	}
	if s.SeedA.XSpan > s.Width || s.SeedA.YSpan > s.Height {
		return fmt.Errorf("seed A %dx%d does not fit universe %dx%d", s.SeedA.XSpan, s.SeedA.YSpan, s.Width, s.Height)
	}
	if s.SeedB.XSpan > s.Width || s.SeedB.YSpan > s.Height {
		return fmt.Errorf("seed B %dx%d does not fit universe %dx%d", s.SeedB.XSpan, s.SeedB.YSpan, s.Width, s.Height)
	}
	return nil
}
