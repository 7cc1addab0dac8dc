package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/pdturney/management-theory/internal/seed"
	"github.com/pdturney/management-theory/internal/sim"
)

// ErrPrecondition marks a reproduction or evaluation request whose inputs
// violate a structural requirement. It signals a configuration or caller
// defect, not an infeasible draw, so callers abort instead of retrying.
var ErrPrecondition = errors.New("precondition violated")

// Evaluator scores pairs of seeds by running competitive trials on a
// simulator. The universe dimensions and step count scale with the seeds
// under test, so larger seeds fight on larger toroids for longer.
type Evaluator struct {
	Runner       sim.Runner
	WidthFactor  int
	HeightFactor int
	TimeFactor   int
	NumTrials    int
}

// NewEvaluator validates the trial geometry. The width factor must exceed
// two so both seeds fit side by side with a gap; the height and time
// factors must exceed one so trials have room and duration to resolve.
func NewEvaluator(runner sim.Runner, widthFactor, heightFactor, timeFactor, numTrials int) (*Evaluator, error) {
	if runner == nil {
		return nil, fmt.Errorf("evaluator: runner must not be nil")
	}
	if widthFactor <= 2 {
		return nil, fmt.Errorf("evaluator: width factor must be greater than 2, got %d", widthFactor)
	}
	if heightFactor <= 1 {
		return nil, fmt.Errorf("evaluator: height factor must be greater than 1, got %d", heightFactor)
	}
	if timeFactor <= 1 {
		return nil, fmt.Errorf("evaluator: time factor must be greater than 1, got %d", timeFactor)
	}
	if numTrials < 1 {
		return nil, fmt.Errorf("evaluator: number of trials must be at least 1, got %d", numTrials)
	}
	return &Evaluator{
		Runner:       runner,
		WidthFactor:  widthFactor,
		HeightFactor: heightFactor,
		TimeFactor:   timeFactor,
		NumTrials:    numTrials,
	}, nil
}

// ScorePair runs NumTrials trials of a against b and returns the mean
// score of each side: 1 per win, 0.5 per tie, 0 per loss, so the two
// scores sum to 1. A trial is won by the side whose population grew more
// over the trial, with growth floored at zero. Each trial randomly
// rotates fresh copies of both seeds and places a in the left half and b
// in the right half of a toroid sized from the larger rotated seed.
func (e *Evaluator) ScorePair(ctx context.Context, rng *rand.Rand, a, b *seed.Seed) (float64, float64, error) {
	if a == nil || b == nil {
		return 0, 0, fmt.Errorf("score pair: %w: nil seed", ErrPrecondition)
	}
	if a.NumLiving == 0 || b.NumLiving == 0 {
		return 0, 0, fmt.Errorf("score pair: %w: seed with no live cells", ErrPrecondition)
	}

	total := 0.0
	for trial := 0; trial < e.NumTrials; trial++ {
		sa := a.RandomRotate(rng)
		sb := b.RandomRotate(rng).Recolor(seed.Blue)

		span := sa.XSpan
		for _, v := range []int{sa.YSpan, sb.XSpan, sb.YSpan} {
			if v > span {
				span = v
			}
		}
		width := span * e.WidthFactor
		height := span * e.HeightFactor
		steps := (width + height) * e.TimeFactor

		// Left half for a, right half for b, each clear of the seam.
		half := width / 2
		px := rng.Intn(max(1, half-sa.XSpan))
		py := rng.Intn(max(1, height-sa.YSpan))
		qx := half + rng.Intn(max(1, half-sb.XSpan))
		qy := rng.Intn(max(1, height-sb.YSpan))

		preA := sa.NumLiving
		preB := sb.NumLiving
		counts, err := e.Runner.RunTrial(ctx, sim.TrialSpec{
			SeedA:  sa,
			SeedB:  sb,
			PlaceA: sim.Placement{X: px, Y: py},
			PlaceB: sim.Placement{X: qx, Y: qy},
			Width:  width,
			Height: height,
			Steps:  steps,
		})
		if err != nil {
			return 0, 0, fmt.Errorf("score pair trial %d: %w", trial, err)
		}
		if counts.Red < 0 || counts.Blue < 0 {
			return 0, 0, fmt.Errorf("score pair trial %d: negative counts red=%d blue=%d", trial, counts.Red, counts.Blue)
		}

		growthA := counts.Red - preA
		if growthA < 0 {
			growthA = 0
		}
		growthB := counts.Blue - preB
		if growthB < 0 {
			growthB = 0
		}
		switch {
		case growthA > growthB:
			total += 1.0
		case growthA == growthB:
			total += 0.5
		}
	}
	scoreA := total / float64(e.NumTrials)
	return scoreA, 1 - scoreA, nil
}
