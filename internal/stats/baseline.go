package stats

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/pdturney/management-theory/internal/evo"
	"github.com/pdturney/management-theory/internal/seed"
)

// ShuffleBaseline scores a seed against density-matched shuffles of
// itself. An evolved seed that carries real structure should beat its
// own shuffles; a score near 0.5 means the structure contributes
// nothing.
func ShuffleBaseline(ctx context.Context, rng *rand.Rand, eval *evo.Evaluator, s *seed.Seed, samples int) (float64, error) {
	if samples < 1 {
		return 0, fmt.Errorf("shuffle baseline: samples must be at least 1, got %d", samples)
	}
	if s == nil || s.NumLiving == 0 {
		return 0, fmt.Errorf("shuffle baseline: seed must have live cells")
	}
	total := 0.0
	for i := 0; i < samples; i++ {
		control := s.Shuffle(rng)
		score, _, err := eval.ScorePair(ctx, rng, s, control)
		if err != nil {
			return 0, fmt.Errorf("shuffle baseline sample %d: %w", i, err)
		}
		total += score
	}
	return total / float64(samples), nil
}
