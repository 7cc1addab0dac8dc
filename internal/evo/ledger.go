package evo

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/pdturney/management-theory/internal/seed"
)

// Ledger is the population bookkeeping for an evolutionary run: the seed
// array, the symmetric history matrix of head-to-head scores, and the
// symmetric similarity matrix. Every replacement recomputes the replaced
// seed's full row and column in both matrices, so the matrices always
// describe the current population.
//
// All methods are safe for concurrent use. Replace serializes under a
// write lock; reads share a read lock.
type Ledger struct {
	mu         sync.RWMutex
	seeds      []*seed.Seed
	history    [][]float64
	similarity [][]float64
	eval       *Evaluator
	workers    int
}

// scoreJob is one pairwise bout to run. Each job carries its own rng
// seed so results do not depend on worker scheduling.
type scoreJob struct {
	row, col int
	rngSeed  int64
}

type scoreResult struct {
	row, col           int
	rowScore, colScore float64
	err                error
}

// NewLedger evaluates every pair in the initial population and builds
// both matrices. Seed addresses are assigned from array position.
func NewLedger(ctx context.Context, rng *rand.Rand, eval *Evaluator, seeds []*seed.Seed, workers int) (*Ledger, error) {
	if eval == nil {
		return nil, fmt.Errorf("ledger: evaluator must not be nil")
	}
	if len(seeds) < 2 {
		return nil, fmt.Errorf("ledger: population needs at least 2 seeds, got %d", len(seeds))
	}
	if workers < 1 {
		workers = 1
	}
	n := len(seeds)
	l := &Ledger{
		seeds:      make([]*seed.Seed, n),
		history:    newMatrix(n),
		similarity: newMatrix(n),
		eval:       eval,
		workers:    workers,
	}
	for i, s := range seeds {
		if s == nil {
			return nil, fmt.Errorf("ledger: seed %d is nil", i)
		}
		l.seeds[i] = s
		s.Address = i
	}
	jobs := make([]scoreJob, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		l.history[i][i] = 0.5
		l.similarity[i][i] = 1.0
		for j := i + 1; j < n; j++ {
			jobs = append(jobs, scoreJob{row: i, col: j, rngSeed: rng.Int63()})
			sim := seed.Similarity(l.seeds[i], l.seeds[j])
			l.similarity[i][j] = sim
			l.similarity[j][i] = sim
		}
	}
	if err := l.runBouts(ctx, jobs); err != nil {
		return nil, fmt.Errorf("ledger: initial evaluation: %w", err)
	}
	return l, nil
}

// runBouts scores each job's pair and writes the result symmetrically
// into the history matrix. Caller must hold the write lock or have
// exclusive access.
func (l *Ledger) runBouts(ctx context.Context, jobs []scoreJob) error {
	if len(jobs) == 0 {
		return nil
	}
	workers := l.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	jobCh := make(chan scoreJob, len(jobs))
	resCh := make(chan scoreResult, len(jobs))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				rng := rand.New(rand.NewSource(job.rngSeed))
				rowScore, colScore, err := l.eval.ScorePair(ctx, rng, l.seeds[job.row], l.seeds[job.col])
				resCh <- scoreResult{row: job.row, col: job.col, rowScore: rowScore, colScore: colScore, err: err}
			}
		}()
	}
	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()
	close(resCh)

	var firstErr error
	for res := range resCh {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		l.history[res.row][res.col] = res.rowScore
		l.history[res.col][res.row] = res.colScore
	}
	return firstErr
}

// Size reports the population size.
func (l *Ledger) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.seeds)
}

// Seed returns the seed at the given address.
func (l *Ledger) Seed(addr int) (*seed.Seed, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if addr < 0 || addr >= len(l.seeds) {
		return nil, fmt.Errorf("ledger: address %d out of range [0,%d)", addr, len(l.seeds))
	}
	return l.seeds[addr], nil
}

// Fitness reports the mean of a seed's history row, including the
// self-pair entry.
func (l *Ledger) Fitness(addr int) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if addr < 0 || addr >= len(l.seeds) {
		return 0, fmt.Errorf("ledger: address %d out of range [0,%d)", addr, len(l.seeds))
	}
	return l.fitnessLocked(addr), nil
}

func (l *Ledger) fitnessLocked(addr int) float64 {
	total := 0.0
	for _, v := range l.history[addr] {
		total += v
	}
	return total / float64(len(l.history[addr]))
}

// Fitnesses returns the fitness of every seed by address.
func (l *Ledger) Fitnesses() []float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]float64, len(l.seeds))
	for i := range l.seeds {
		out[i] = l.fitnessLocked(i)
	}
	return out
}

// TopK returns the addresses of the k fittest seeds in descending
// fitness order. Ties keep ascending address order. k must lie in
// (0, population size); anything else signals a caller defect.
func (l *Ledger) TopK(k int) ([]int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if k <= 0 || k >= len(l.seeds) {
		return nil, fmt.Errorf("top-k size %d outside (0,%d): %w", k, len(l.seeds), ErrPrecondition)
	}
	addrs := make([]int, len(l.seeds))
	fit := make([]float64, len(l.seeds))
	for i := range l.seeds {
		addrs[i] = i
		fit[i] = l.fitnessLocked(i)
	}
	sort.SliceStable(addrs, func(a, b int) bool {
		return fit[addrs[a]] > fit[addrs[b]]
	})
	return addrs[:k], nil
}

// RandomSample returns n distinct addresses drawn without replacement.
// n must lie in (0, population size).
func (l *Ledger) RandomSample(rng *rand.Rand, n int) ([]int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n >= len(l.seeds) {
		return nil, fmt.Errorf("sample size %d outside (0,%d): %w", n, len(l.seeds), ErrPrecondition)
	}
	return rng.Perm(len(l.seeds))[:n], nil
}

// Worst returns the address of the least fit seed. Ties resolve to the
// lowest address.
func (l *Ledger) Worst() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	worst := 0
	worstFit := l.fitnessLocked(0)
	for i := 1; i < len(l.seeds); i++ {
		if f := l.fitnessLocked(i); f < worstFit {
			worst = i
			worstFit = f
		}
	}
	return worst
}

// SimilarTo returns the addresses whose similarity to addr lies within
// [minSim, maxSim], excluding addr itself.
func (l *Ledger) SimilarTo(addr int, minSim, maxSim float64) ([]int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if addr < 0 || addr >= len(l.seeds) {
		return nil, fmt.Errorf("ledger: address %d out of range [0,%d)", addr, len(l.seeds))
	}
	var out []int
	for i := range l.seeds {
		if i == addr {
			continue
		}
		if s := l.similarity[addr][i]; s >= minSim && s <= maxSim {
			out = append(out, i)
		}
	}
	return out, nil
}

// Replace installs child at the given address and recomputes the
// replaced row and column of both matrices: new bouts against every
// other seed, fresh similarities, and the fixed self-pair entries.
func (l *Ledger) Replace(ctx context.Context, rng *rand.Rand, addr int, child *seed.Seed) error {
	if child == nil {
		return fmt.Errorf("ledger: %w: child is nil", ErrPrecondition)
	}
	if child.NumLiving == 0 {
		return fmt.Errorf("ledger: %w: child has no live cells", ErrPrecondition)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if addr < 0 || addr >= len(l.seeds) {
		return fmt.Errorf("ledger: address %d out of range [0,%d)", addr, len(l.seeds))
	}
	child.Address = addr
	l.seeds[addr] = child
	l.history[addr][addr] = 0.5
	l.similarity[addr][addr] = 1.0
	jobs := make([]scoreJob, 0, len(l.seeds)-1)
	for i := range l.seeds {
		if i == addr {
			continue
		}
		sim := seed.Similarity(child, l.seeds[i])
		l.similarity[addr][i] = sim
		l.similarity[i][addr] = sim
		jobs = append(jobs, scoreJob{row: addr, col: i, rngSeed: rng.Int63()})
	}
	if err := l.runBouts(ctx, jobs); err != nil {
		return fmt.Errorf("ledger: replace at %d: %w", addr, err)
	}
	return nil
}

func newMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}
