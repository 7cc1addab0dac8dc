package sim

import (
	"context"

	"github.com/pdturney/management-theory/internal/seed"
)

// Immigration steps the two-color Immigration variant of the Game of Life
// on a toroidal universe. The life/death rule is plain B3/S23 over live
// cells of either color; a newborn cell takes the majority color of its
// three parents.
type Immigration struct{}

// ctxCheckInterval bounds how many generations run between context polls.
const ctxCheckInterval = 64

func (Immigration) RunTrial(ctx context.Context, spec TrialSpec) (Counts, error) {
	if err := spec.validate(); err != nil {
		return Counts{}, err
	}

	grid := newTorus(spec.Width, spec.Height)
	grid.paste(spec.SeedA, spec.PlaceA)
	grid.paste(spec.SeedB, spec.PlaceB)

	for step := 0; step < spec.Steps; step++ {
		if step%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Counts{}, err
			}
		}
		grid = grid.step()
	}
	return grid.counts(), nil
}

type torus struct {
	width  int
	height int
	cells  []uint8 // row-major: cells[y*width+x]
}

func newTorus(width, height int) *torus {
	return &torus{width: width, height: height, cells: make([]uint8, width*height)}
}

func (t *torus) at(x, y int) uint8 {
	return t.cells[y*t.width+x]
}

func (t *torus) set(x, y int, state uint8) {
	t.cells[y*t.width+x] = state
}

func (t *torus) paste(s *seed.Seed, p Placement) {
	for x := 0; x < s.XSpan; x++ {
		for y := 0; y < s.YSpan; y++ {
			state := s.Cells[x][y]
			if state == seed.Dead {
				continue
			}
			t.set(mod(p.X+x, t.width), mod(p.Y+y, t.height), state)
		}
	}
}

func (t *torus) step() *torus {
	next := newTorus(t.width, t.height)
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			live, red := 0, 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					state := t.at(mod(x+dx, t.width), mod(y+dy, t.height))
					if state != 0 {
						live++
						if state == 1 {
							red++
						}
					}
				}
			}
			current := t.at(x, y)
			switch {
			case current != 0 && (live == 2 || live == 3):
				next.set(x, y, current)
			case current == 0 && live == 3:
				// birth: majority color of the three parents
				if red >= 2 {
					next.set(x, y, 1)
				} else {
					next.set(x, y, 2)
				}
			}
		}
	}
	return next
}

func (t *torus) counts() Counts {
	var c Counts
	for _, state := range t.cells {
		switch state {
		case 1:
			c.Red++
		case 2:
			c.Blue++
		}
	}
	return c
}

func mod(v, m int) int {
	v %= m
	if v < 0 {
		v += m
	}
	return v
}
