// Package seed implements the two-dimensional grid genome that the
// evolutionary core breeds. A seed is a rectangular grid of cells; state 0
// is dead, states 1 and 2 are the two live colors used in competitive
// trials. All geometric transforms return new seeds so that ledger
// bookkeeping can rely on pre/post snapshots.
package seed

import (
	"fmt"
	"math/rand"
)

// Cell states.
const (
	Dead uint8 = 0
	Red  uint8 = 1
	Blue uint8 = 2
)

// Seed is a variable-size grid genome. Cells is indexed [x][y]. NumLiving
// caches the count of non-zero cells and must be refreshed after any
// structural change before the seed re-enters a population. Address is the
// seed's index in the population array and is meaningless otherwise.
type Seed struct {
	XSpan     int
	YSpan     int
	Cells     [][]uint8
	NumLiving int
	Address   int
}

// New returns an all-dead seed of the given dimensions.
func New(xspan, yspan int) (*Seed, error) {
	if xspan <= 0 || yspan <= 0 {
		return nil, fmt.Errorf("seed spans must be > 0: got %dx%d", xspan, yspan)
	}
	return alloc(xspan, yspan), nil
}

// Random returns a seed with each cell set to Red with probability density.
func Random(rng *rand.Rand, xspan, yspan int, density float64) (*Seed, error) {
	s, err := New(xspan, yspan)
	if err != nil {
		return nil, err
	}
	if density < 0 || density > 1 {
		return nil, fmt.Errorf("seed density must be in [0,1]: got %v", density)
	}
	for x := 0; x < xspan; x++ {
		for y := 0; y < yspan; y++ {
			if rng.Float64() < density {
				s.Cells[x][y] = Red
			}
		}
	}
	s.RefreshLiveCount()
	return s, nil
}

func alloc(xspan, yspan int) *Seed {
	cells := make([][]uint8, xspan)
	for x := range cells {
		cells[x] = make([]uint8, yspan)
	}
	return &Seed{XSpan: xspan, YSpan: yspan, Cells: cells, Address: -1}
}

// Clone returns an independent deep copy.
func (s *Seed) Clone() *Seed {
	out := alloc(s.XSpan, s.YSpan)
	for x := 0; x < s.XSpan; x++ {
		copy(out.Cells[x], s.Cells[x])
	}
	out.NumLiving = s.NumLiving
	out.Address = s.Address
	return out
}

// Area is the number of cells in the grid.
func (s *Seed) Area() int {
	return s.XSpan * s.YSpan
}

// CountLive recounts the non-zero cells without touching NumLiving.
func (s *Seed) CountLive() int {
	n := 0
	for x := 0; x < s.XSpan; x++ {
		for y := 0; y < s.YSpan; y++ {
			if s.Cells[x][y] != Dead {
				n++
			}
		}
	}
	return n
}

// RefreshLiveCount recounts and stores NumLiving.
func (s *Seed) RefreshLiveCount() {
	s.NumLiving = s.CountLive()
}

// Rotate90 returns the seed rotated a quarter turn clockwise.
func (s *Seed) Rotate90() *Seed {
	out := alloc(s.YSpan, s.XSpan)
	for x := 0; x < s.XSpan; x++ {
		for y := 0; y < s.YSpan; y++ {
			out.Cells[s.YSpan-1-y][x] = s.Cells[x][y]
		}
	}
	out.NumLiving = s.NumLiving
	return out
}

// FlipHorizontal returns the seed mirrored across the vertical axis.
func (s *Seed) FlipHorizontal() *Seed {
	out := alloc(s.XSpan, s.YSpan)
	for x := 0; x < s.XSpan; x++ {
		for y := 0; y < s.YSpan; y++ {
			out.Cells[s.XSpan-1-x][y] = s.Cells[x][y]
		}
	}
	out.NumLiving = s.NumLiving
	return out
}

// FlipVertical returns the seed mirrored across the horizontal axis.
func (s *Seed) FlipVertical() *Seed {
	out := alloc(s.XSpan, s.YSpan)
	for x := 0; x < s.XSpan; x++ {
		for y := 0; y < s.YSpan; y++ {
			out.Cells[x][s.YSpan-1-y] = s.Cells[x][y]
		}
	}
	out.NumLiving = s.NumLiving
	return out
}

// RandomRotate returns an independently rotated and flipped copy. Each call
// draws fresh randomness; repeated calls do not reuse a draw.
func (s *Seed) RandomRotate(rng *rand.Rand) *Seed {
	out := s.Clone()
	turns := rng.Intn(4)
	for i := 0; i < turns; i++ {
		out = out.Rotate90()
	}
	if rng.Intn(2) == 1 {
		out = out.FlipHorizontal()
	}
	return out
}

// Shuffle returns a copy with the same dimensions and cell multiset but the
// cell positions randomly permuted. Used as a density-matched control.
func (s *Seed) Shuffle(rng *rand.Rand) *Seed {
	out := s.Clone()
	n := out.Area()
	flat := make([]uint8, 0, n)
	for x := 0; x < out.XSpan; x++ {
		flat = append(flat, out.Cells[x]...)
	}
	rng.Shuffle(n, func(i, j int) {
		flat[i], flat[j] = flat[j], flat[i]
	})
	for x := 0; x < out.XSpan; x++ {
		copy(out.Cells[x], flat[x*out.YSpan:(x+1)*out.YSpan])
	}
	return out
}

// Recolor returns a copy with every live cell set to state. Dead cells are
// unchanged.
func (s *Seed) Recolor(state uint8) *Seed {
	out := s.Clone()
	for x := 0; x < out.XSpan; x++ {
		for y := 0; y < out.YSpan; y++ {
			if out.Cells[x][y] != Dead {
				out.Cells[x][y] = state
			}
		}
	}
	return out
}

// FlipBits toggles each cell with probability rate (live becomes dead, dead
// becomes Red) and refreshes the live count.
func (s *Seed) FlipBits(rng *rand.Rand, rate float64) {
	for x := 0; x < s.XSpan; x++ {
		for y := 0; y < s.YSpan; y++ {
			if rng.Float64() >= rate {
				continue
			}
			if s.Cells[x][y] == Dead {
				s.Cells[x][y] = Red
			} else {
				s.Cells[x][y] = Dead
			}
		}
	}
	s.RefreshLiveCount()
}

// Mutate applies the variable-size mutation: with probability probGrow the
// seed gains a random row or column at a random edge (new cells live at
// density), with probability probShrink it loses a random row or column,
// and with probability probFlip its bits are flipped at rate. The three
// draws are independent. Returns the mutated seed; the receiver is not
// modified.
func (s *Seed) Mutate(rng *rand.Rand, probGrow, probFlip, probShrink, density, rate float64) *Seed {
	out := s.Clone()
	if rng.Float64() < probGrow {
		out = out.grow(rng, density)
	}
	if rng.Float64() < probShrink {
		out = out.shrink(rng)
	}
	if rng.Float64() < probFlip {
		out.FlipBits(rng, rate)
	}
	out.RefreshLiveCount()
	return out
}

func (s *Seed) grow(rng *rand.Rand, density float64) *Seed {
	if rng.Intn(2) == 0 {
		// new column at a random edge
		out := alloc(s.XSpan+1, s.YSpan)
		at := rng.Intn(2) * s.XSpan
		for x := 0; x < s.XSpan; x++ {
			dst := x
			if x >= at {
				dst = x + 1
			}
			copy(out.Cells[dst], s.Cells[x])
		}
		for y := 0; y < s.YSpan; y++ {
			if rng.Float64() < density {
				out.Cells[at][y] = Red
			}
		}
		out.RefreshLiveCount()
		return out
	}
	// new row at a random edge
	out := alloc(s.XSpan, s.YSpan+1)
	at := rng.Intn(2) * s.YSpan
	for x := 0; x < s.XSpan; x++ {
		for y := 0; y < s.YSpan; y++ {
			dst := y
			if y >= at {
				dst = y + 1
			}
			out.Cells[x][dst] = s.Cells[x][y]
		}
		if rng.Float64() < density {
			out.Cells[x][at] = Red
		}
	}
	out.RefreshLiveCount()
	return out
}

func (s *Seed) shrink(rng *rand.Rand) *Seed {
	if rng.Intn(2) == 0 && s.XSpan > 1 {
		at := rng.Intn(s.XSpan)
		out := alloc(s.XSpan-1, s.YSpan)
		for x := 0; x < s.XSpan; x++ {
			if x == at {
				continue
			}
			dst := x
			if x > at {
				dst = x - 1
			}
			copy(out.Cells[dst], s.Cells[x])
		}
		out.RefreshLiveCount()
		return out
	}
	if s.YSpan <= 1 {
		return s
	}
	at := rng.Intn(s.YSpan)
	out := alloc(s.XSpan, s.YSpan-1)
	for x := 0; x < s.XSpan; x++ {
		for y := 0; y < s.YSpan; y++ {
			if y == at {
				continue
			}
			dst := y
			if y > at {
				dst = y - 1
			}
			out.Cells[x][dst] = s.Cells[x][y]
		}
	}
	out.RefreshLiveCount()
	return out
}

// Similarity is the fraction of cell positions where a and b hold identical
// states. Seeds of different dimensions have similarity 0.
func Similarity(a, b *Seed) float64 {
	if a.XSpan != b.XSpan || a.YSpan != b.YSpan {
		return 0
	}
	agree := 0
	for x := 0; x < a.XSpan; x++ {
		for y := 0; y < a.YSpan; y++ {
			if a.Cells[x][y] == b.Cells[x][y] {
				agree++
			}
		}
	}
	return float64(agree) / float64(a.Area())
}
