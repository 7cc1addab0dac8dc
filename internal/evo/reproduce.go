package evo

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/pdturney/management-theory/internal/seed"
)

// Operator names a reproduction operator.
type Operator string

const (
	OpUniform   Operator = "uniform_asexual"
	OpVariable  Operator = "variable_asexual"
	OpSexual    Operator = "sexual"
	OpFission   Operator = "fission"
	OpFusion    Operator = "fusion"
	OpSymbiotic Operator = "symbiotic"
)

// Config holds the reproduction parameters. All fields are read-only to
// the dispatcher once constructed.
type Config struct {
	TournamentSize     int
	MutationRate       float64
	ProbGrow           float64
	ProbFlip           float64
	ProbShrink         float64
	SeedDensity        float64
	MinSXSpan          int
	MaxSeedArea        int
	MinSimilarity      float64
	MaxSimilarity      float64
	ProbFission        float64
	ProbFusion         float64
	ImmediateSymbiosis bool
	FusionTest         bool
}

func (c Config) validate() error {
	if c.TournamentSize < 1 {
		return fmt.Errorf("tournament size must be at least 1, got %d", c.TournamentSize)
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"mutation rate", c.MutationRate},
		{"prob grow", c.ProbGrow},
		{"prob flip", c.ProbFlip},
		{"prob shrink", c.ProbShrink},
		{"seed density", c.SeedDensity},
		{"min similarity", c.MinSimilarity},
		{"max similarity", c.MaxSimilarity},
		{"prob fission", c.ProbFission},
		{"prob fusion", c.ProbFusion},
	} {
		if p.v < 0 || p.v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", p.name, p.v)
		}
	}
	if c.MinSimilarity > c.MaxSimilarity {
		return fmt.Errorf("min similarity %v exceeds max similarity %v", c.MinSimilarity, c.MaxSimilarity)
	}
	if c.ProbFission+c.ProbFusion > 1 {
		return fmt.Errorf("prob fission + prob fusion must not exceed 1, got %v", c.ProbFission+c.ProbFusion)
	}
	if c.MinSXSpan < 1 {
		return fmt.Errorf("min seed xspan must be at least 1, got %d", c.MinSXSpan)
	}
	if c.MaxSeedArea < 1 {
		return fmt.Errorf("max seed area must be at least 1, got %d", c.MaxSeedArea)
	}
	return nil
}

// Transition records one step of the dispatch path: symbiotic routing or
// a fallback from an infeasible operator.
type Transition struct {
	From   Operator
	To     Operator
	Reason string
}

// FusionParts carries the pieces of a successful fusion for archival.
type FusionParts struct {
	Left  *seed.Seed
	Right *seed.Seed
	Whole *seed.Seed
}

// Report describes one completed reproduction event.
type Report struct {
	Requested        Operator
	Applied          Operator
	Path             []Transition
	CandidateAddress int
	ReplacedAddress  int
	CandidateFitness float64
	ChildFitness     float64
	PopulationBest   float64
	PopulationMean   float64
	PopulationWorst  float64
	Fusion           *FusionParts
}

// String renders the report as a single log-friendly line.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "op=%s", r.Applied)
	if r.Requested != r.Applied {
		fmt.Fprintf(&b, " requested=%s", r.Requested)
	}
	for _, t := range r.Path {
		fmt.Fprintf(&b, " %s->%s(%s)", t.From, t.To, t.Reason)
	}
	fmt.Fprintf(&b, " candidate=%d replaced=%d candidate_fitness=%.4f child_fitness=%.4f best=%.4f mean=%.4f worst=%.4f",
		r.CandidateAddress, r.ReplacedAddress, r.CandidateFitness, r.ChildFitness,
		r.PopulationBest, r.PopulationMean, r.PopulationWorst)
	if r.Fusion != nil {
		fmt.Fprintf(&b, " fusion=%dx%d+%dx%d",
			r.Fusion.Left.XSpan, r.Fusion.Left.YSpan, r.Fusion.Right.XSpan, r.Fusion.Right.YSpan)
	}
	return b.String()
}

// attempt is the outcome of one operator try: either a child, or a
// fallback target with the reason the operator was infeasible.
type attempt struct {
	child  *seed.Seed
	fusion *FusionParts
	next   Operator
	reason string
}

// Dispatcher selects parents and applies reproduction operators against a
// ledger. Infeasible operators fall back along a fixed chain that always
// terminates at uniform asexual, which cannot fail.
type Dispatcher struct {
	ledger *Ledger
	eval   *Evaluator
	cfg    Config
}

// NewDispatcher validates the configuration and binds the dispatcher to a
// ledger and evaluator.
func NewDispatcher(ledger *Ledger, eval *Evaluator, cfg Config) (*Dispatcher, error) {
	if ledger == nil {
		return nil, fmt.Errorf("dispatcher: ledger must not be nil")
	}
	if eval == nil {
		return nil, fmt.Errorf("dispatcher: evaluator must not be nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}
	if cfg.TournamentSize >= ledger.Size() {
		return nil, fmt.Errorf("dispatcher: tournament size %d must be below population size %d: %w",
			cfg.TournamentSize, ledger.Size(), ErrPrecondition)
	}
	return &Dispatcher{ledger: ledger, eval: eval, cfg: cfg}, nil
}

// SelectCandidate runs one fitness tournament: a random sample of
// TournamentSize addresses, best fitness wins.
func (d *Dispatcher) SelectCandidate(rng *rand.Rand) (int, error) {
	sample, err := d.ledger.RandomSample(rng, d.cfg.TournamentSize)
	if err != nil {
		return 0, err
	}
	best := sample[0]
	bestFit, _ := d.ledger.Fitness(best)
	for _, addr := range sample[1:] {
		if f, _ := d.ledger.Fitness(addr); f > bestFit {
			best = addr
			bestFit = f
		}
	}
	return best, nil
}

// Reproduce runs one reproduction event: tournament-select a candidate,
// apply the requested operator (following fallbacks as needed), and
// replace the current worst member with the child.
func (d *Dispatcher) Reproduce(ctx context.Context, rng *rand.Rand, op Operator) (*Report, error) {
	report := &Report{Requested: op}

	candAddr, err := d.SelectCandidate(rng)
	if err != nil {
		return nil, fmt.Errorf("reproduce: %w", err)
	}
	cand, err := d.ledger.Seed(candAddr)
	if err != nil {
		return nil, fmt.Errorf("reproduce: %w", err)
	}
	candFit, err := d.ledger.Fitness(candAddr)
	if err != nil {
		return nil, fmt.Errorf("reproduce: %w", err)
	}
	report.CandidateAddress = candAddr
	report.CandidateFitness = candFit

	current := op
	if current == OpSymbiotic {
		draw := rng.Float64()
		switch {
		case draw < d.cfg.ProbFission:
			current = OpFission
		case draw < d.cfg.ProbFission+d.cfg.ProbFusion:
			current = OpFusion
		default:
			current = OpSexual
		}
		report.Path = append(report.Path, Transition{From: OpSymbiotic, To: current, Reason: "probability draw"})
	}

	var child *seed.Seed
	for child == nil {
		var out attempt
		var err error
		switch current {
		case OpUniform:
			out = d.uniformAsexual(rng, cand)
		case OpVariable:
			out = d.variableAsexual(rng, cand)
		case OpSexual:
			out, err = d.sexual(rng, cand)
		case OpFission:
			out = d.fission(rng, cand)
		case OpFusion:
			out, err = d.fusion(ctx, rng, cand)
		default:
			return nil, fmt.Errorf("reproduce: %w: unknown operator %q", ErrPrecondition, current)
		}
		if err != nil {
			return nil, fmt.Errorf("reproduce: %s: %w", current, err)
		}
		if out.child == nil {
			report.Path = append(report.Path, Transition{From: current, To: out.next, Reason: out.reason})
			current = out.next
			continue
		}
		child = out.child
		report.Fusion = out.fusion
	}
	report.Applied = current

	worst := d.ledger.Worst()
	if err := d.ledger.Replace(ctx, rng, worst, child); err != nil {
		return nil, fmt.Errorf("reproduce: %s: %w", current, err)
	}
	report.ReplacedAddress = worst

	fits := d.ledger.Fitnesses()
	report.ChildFitness = fits[worst]
	best, sum, low := fits[0], 0.0, fits[0]
	for _, f := range fits {
		if f > best {
			best = f
		}
		if f < low {
			low = f
		}
		sum += f
	}
	report.PopulationBest = best
	report.PopulationMean = sum / float64(len(fits))
	report.PopulationWorst = low
	return report, nil
}

// uniformAsexual flips bits at the mutation rate without changing the
// seed's dimensions. A flip pass can kill every cell; the parent persists
// unchanged in that case, so the operator never fails.
func (d *Dispatcher) uniformAsexual(rng *rand.Rand, cand *seed.Seed) attempt {
	child := cand.Clone()
	child.FlipBits(rng, d.cfg.MutationRate)
	if child.NumLiving == 0 {
		child = cand.Clone()
	}
	return attempt{child: child}
}

// variableAsexual applies the size-changing mutation. An oversized or
// lifeless child falls back to uniform.
func (d *Dispatcher) variableAsexual(rng *rand.Rand, cand *seed.Seed) attempt {
	child := cand.Mutate(rng, d.cfg.ProbGrow, d.cfg.ProbFlip, d.cfg.ProbShrink,
		d.cfg.SeedDensity, d.cfg.MutationRate)
	if child.Area() > d.cfg.MaxSeedArea {
		return attempt{next: OpUniform, reason: "child exceeds max seed area"}
	}
	if child.NumLiving == 0 {
		return attempt{next: OpUniform, reason: "child has no live cells"}
	}
	return attempt{child: child}
}

// sexual crosses the candidate with a tournament-selected mate from the
// similarity band. No mate falls back to variable; an oversized or
// lifeless child falls back to uniform.
func (d *Dispatcher) sexual(rng *rand.Rand, cand *seed.Seed) (attempt, error) {
	pool, err := d.ledger.SimilarTo(cand.Address, d.cfg.MinSimilarity, d.cfg.MaxSimilarity)
	if err != nil {
		return attempt{}, err
	}
	if len(pool) == 0 {
		return attempt{next: OpVariable, reason: "no mate in similarity band"}, nil
	}
	mateAddr := d.tournamentFrom(rng, pool)
	mate, err := d.ledger.Seed(mateAddr)
	if err != nil {
		return attempt{}, err
	}
	child, err := Crossover(rng, cand, mate)
	if err != nil {
		return attempt{}, err
	}
	child = child.Mutate(rng, d.cfg.ProbGrow, d.cfg.ProbFlip, d.cfg.ProbShrink,
		d.cfg.SeedDensity, d.cfg.MutationRate)
	if child.Area() > d.cfg.MaxSeedArea {
		return attempt{next: OpUniform, reason: "child exceeds max seed area"}, nil
	}
	if child.NumLiving == 0 {
		return attempt{next: OpUniform, reason: "child has no live cells"}, nil
	}
	return attempt{child: child}, nil
}

// fission splits the candidate at its emptiest column and keeps one
// qualifying fragment. The cut column itself is dropped from both
// fragments, so a seed built by fusion splits back into its original
// parts at the dead gap column. Too narrow, or no fragment at least
// MinSXSpan wide with live cells, falls back to sexual.
func (d *Dispatcher) fission(rng *rand.Rand, cand *seed.Seed) attempt {
	if cand.XSpan < 2 {
		return attempt{next: OpSexual, reason: "seed too narrow to split"}
	}
	cut := 0
	cutSum := columnLive(cand, 0)
	for x := 1; x < cand.XSpan; x++ {
		if s := columnLive(cand, x); s < cutSum {
			cut = x
			cutSum = s
		}
	}
	var left, right *seed.Seed
	if cut > 0 {
		left = sliceColumns(cand, 0, cut)
	}
	if cut+1 < cand.XSpan {
		right = sliceColumns(cand, cut+1, cand.XSpan)
	}
	leftOK := left != nil && left.XSpan >= d.cfg.MinSXSpan && left.NumLiving > 0
	rightOK := right != nil && right.XSpan >= d.cfg.MinSXSpan && right.NumLiving > 0
	switch {
	case leftOK && rightOK:
		if rng.Intn(2) == 0 {
			return attempt{child: left}
		}
		return attempt{child: right}
	case leftOK:
		return attempt{child: left}
	case rightOK:
		return attempt{child: right}
	default:
		return attempt{next: OpSexual, reason: "no qualifying fragment"}
	}
}

// fusion joins the candidate with a second tournament-selected parent,
// both independently rotated, side by side with one dead gap column. An
// oversized whole, or a whole that fails the symbiosis test, falls back
// to sexual.
func (d *Dispatcher) fusion(ctx context.Context, rng *rand.Rand, cand *seed.Seed) (attempt, error) {
	mateAddr, err := d.SelectCandidate(rng)
	if err != nil {
		return attempt{}, err
	}
	mate, err := d.ledger.Seed(mateAddr)
	if err != nil {
		return attempt{}, err
	}
	if d.cfg.FusionTest {
		// Control condition: fuse with a density-matched shuffle of the
		// mate instead of the mate itself.
		mate = mate.Shuffle(rng)
	}
	left := cand.RandomRotate(rng)
	right := mate.RandomRotate(rng)
	whole, err := Fuse(left, right)
	if err != nil {
		return attempt{}, err
	}
	if whole.Area() > d.cfg.MaxSeedArea {
		return attempt{next: OpSexual, reason: "fused seed exceeds max seed area"}, nil
	}
	if whole.NumLiving == 0 {
		return attempt{next: OpSexual, reason: "fused seed has no live cells"}, nil
	}
	if d.cfg.ImmediateSymbiosis {
		vsLeft, _, err := d.eval.ScorePair(ctx, rng, whole, left)
		if err != nil {
			return attempt{}, err
		}
		vsRight, _, err := d.eval.ScorePair(ctx, rng, whole, right)
		if err != nil {
			return attempt{}, err
		}
		if vsLeft <= 0.5 || vsRight <= 0.5 {
			return attempt{next: OpSexual, reason: "fused seed failed symbiosis test"}, nil
		}
	}
	return attempt{
		child:  whole,
		fusion: &FusionParts{Left: left, Right: right, Whole: whole},
	}, nil
}

// tournamentFrom runs a fitness tournament over a restricted candidate
// pool.
func (d *Dispatcher) tournamentFrom(rng *rand.Rand, pool []int) int {
	k := d.cfg.TournamentSize
	if k > len(pool) {
		k = len(pool)
	}
	perm := rng.Perm(len(pool))
	best := pool[perm[0]]
	bestFit, _ := d.ledger.Fitness(best)
	for _, pi := range perm[1:k] {
		addr := pool[pi]
		if f, _ := d.ledger.Fitness(addr); f > bestFit {
			best = addr
			bestFit = f
		}
	}
	return best
}

// Crossover performs one-point crossover on a random axis. Parents must
// share dimensions; the similarity band guarantees that unless the band
// is configured down to zero, which is a configuration defect.
func Crossover(rng *rand.Rand, a, b *seed.Seed) (*seed.Seed, error) {
	if a.XSpan != b.XSpan || a.YSpan != b.YSpan {
		return nil, fmt.Errorf("crossover: %w: parent dimensions %dx%d vs %dx%d",
			ErrPrecondition, a.XSpan, a.YSpan, b.XSpan, b.YSpan)
	}
	child := a.Clone()
	onX := a.XSpan >= 2 && (a.YSpan < 2 || rng.Intn(2) == 0)
	switch {
	case onX:
		cut := 1 + rng.Intn(a.XSpan-1)
		for x := cut; x < a.XSpan; x++ {
			copy(child.Cells[x], b.Cells[x])
		}
	case a.YSpan >= 2:
		cut := 1 + rng.Intn(a.YSpan-1)
		for x := 0; x < a.XSpan; x++ {
			for y := cut; y < a.YSpan; y++ {
				child.Cells[x][y] = b.Cells[x][y]
			}
		}
	}
	child.RefreshLiveCount()
	return child, nil
}

// Fuse places left and right side by side with a single dead column
// between them, aligned to the top edge.
func Fuse(left, right *seed.Seed) (*seed.Seed, error) {
	h := left.YSpan
	if right.YSpan > h {
		h = right.YSpan
	}
	whole, err := seed.New(left.XSpan+right.XSpan+1, h)
	if err != nil {
		return nil, fmt.Errorf("fuse: %w", err)
	}
	for x := 0; x < left.XSpan; x++ {
		copy(whole.Cells[x], left.Cells[x])
	}
	off := left.XSpan + 1
	for x := 0; x < right.XSpan; x++ {
		copy(whole.Cells[off+x], right.Cells[x])
	}
	whole.RefreshLiveCount()
	return whole, nil
}

func columnLive(s *seed.Seed, x int) int {
	n := 0
	for y := 0; y < s.YSpan; y++ {
		if s.Cells[x][y] != seed.Dead {
			n++
		}
	}
	return n
}

func sliceColumns(s *seed.Seed, from, to int) *seed.Seed {
	out, _ := seed.New(to-from, s.YSpan)
	for x := from; x < to; x++ {
		copy(out.Cells[x-from], s.Cells[x])
	}
	out.RefreshLiveCount()
	return out
}
