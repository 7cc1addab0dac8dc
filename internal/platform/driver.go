// Package platform wires the simulator, ledger, dispatcher, and store
// into a complete evolutionary run.
package platform

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdturney/management-theory/internal/evo"
	"github.com/pdturney/management-theory/internal/model"
	"github.com/pdturney/management-theory/internal/seed"
	"github.com/pdturney/management-theory/internal/sim"
	"github.com/pdturney/management-theory/internal/storage"
)

// RunConfig collects every knob of one evolutionary run.
type RunConfig struct {
	PopSize         int
	EliteSize       int
	SXSpan          int
	SYSpan          int
	SeedDensity     float64
	NumBirths       int
	ArchiveInterval int
	Workers         int
	Seed            int64

	WidthFactor  int
	HeightFactor int
	TimeFactor   int
	NumTrials    int

	Reproduction evo.Config
}

func (c RunConfig) validate() error {
	if c.PopSize < 2 {
		return fmt.Errorf("population size must be at least 2, got %d", c.PopSize)
	}
	if c.EliteSize < 1 || c.EliteSize >= c.PopSize {
		return fmt.Errorf("elite size must be in [1,%d), got %d", c.PopSize, c.EliteSize)
	}
	if c.SXSpan < 1 || c.SYSpan < 1 {
		return fmt.Errorf("initial seed spans must be positive, got %dx%d", c.SXSpan, c.SYSpan)
	}
	if c.NumBirths < 1 {
		return fmt.Errorf("number of births must be at least 1, got %d", c.NumBirths)
	}
	if c.ArchiveInterval < 1 {
		return fmt.Errorf("archive interval must be at least 1, got %d", c.ArchiveInterval)
	}
	return nil
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID        string
	Births       int
	Fusions      int
	BestFitness  float64
	MeanFitness  float64
	WorstFitness float64
	Elite        []model.SeedRecord
}

// Driver owns an evolutionary run end to end: population setup, the
// birth loop, archival, and diagnostics.
type Driver struct {
	Runner sim.Runner
	Store  storage.Store
	Logger zerolog.Logger
}

// Run executes one run. A simulator failure aborts with a wrapped error;
// there is no automatic retry.
func (d *Driver) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	if d.Runner == nil || d.Store == nil {
		return nil, fmt.Errorf("driver: runner and store must be set")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}

	runID := uuid.NewString()
	rng := rand.New(rand.NewSource(cfg.Seed))
	logger := d.Logger.With().Str("run_id", runID).Logger()

	ev, err := evo.NewEvaluator(d.Runner, cfg.WidthFactor, cfg.HeightFactor, cfg.TimeFactor, cfg.NumTrials)
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}

	seeds, err := d.initialPopulation(rng, cfg)
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	logger.Info().
		Int("pop_size", cfg.PopSize).
		Int("xspan", cfg.SXSpan).
		Int("yspan", cfg.SYSpan).
		Msg("building initial matrices")

	ledger, err := evo.NewLedger(ctx, rng, ev, seeds, cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	dispatcher, err := evo.NewDispatcher(ledger, ev, cfg.Reproduction)
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}

	diagnostics := model.RunDiagnostics{
		VersionedRecord: storage.Stamp(),
		RunID:           runID,
	}
	fusions := 0
	var lastReport *evo.Report
	for birth := 0; birth < cfg.NumBirths; birth++ {
		report, err := dispatcher.Reproduce(ctx, rng, evo.OpSymbiotic)
		if err != nil {
			return nil, fmt.Errorf("driver: birth %d: %w", birth, err)
		}
		lastReport = report
		logger.Info().
			Int("birth", birth).
			Str("report", report.String()).
			Msg("birth")

		if report.Fusion != nil {
			fusions++
			event := model.FusionEvent{
				VersionedRecord: storage.Stamp(),
				RunID:           runID,
				BirthIndex:      birth,
				Left:            model.RecordSeed(report.Fusion.Left),
				Right:           model.RecordSeed(report.Fusion.Right),
				Whole:           model.RecordSeed(report.Fusion.Whole),
			}
			if err := d.Store.AppendFusionEvent(ctx, event); err != nil {
				return nil, fmt.Errorf("driver: birth %d: append fusion event: %w", birth, err)
			}
		}

		diagnostics.Births = append(diagnostics.Births, model.BirthDiagnostics{
			Birth:           birth,
			Operator:        string(report.Applied),
			BestFitness:     report.PopulationBest,
			MeanFitness:     report.PopulationMean,
			WorstFitness:    report.PopulationWorst,
			ChildFitness:    report.ChildFitness,
			ReplacedAddress: report.ReplacedAddress,
		})

		if (birth+1)%cfg.ArchiveInterval == 0 {
			if err := d.archiveElite(ctx, ledger, runID, birth+1, cfg.EliteSize); err != nil {
				return nil, fmt.Errorf("driver: birth %d: %w", birth, err)
			}
		}
	}

	if cfg.NumBirths%cfg.ArchiveInterval != 0 {
		if err := d.archiveElite(ctx, ledger, runID, cfg.NumBirths, cfg.EliteSize); err != nil {
			return nil, fmt.Errorf("driver: %w", err)
		}
	}
	if err := d.Store.SaveRunDiagnostics(ctx, diagnostics); err != nil {
		return nil, fmt.Errorf("driver: save diagnostics: %w", err)
	}

	result := &RunResult{
		RunID:   runID,
		Births:  cfg.NumBirths,
		Fusions: fusions,
	}
	if lastReport != nil {
		result.BestFitness = lastReport.PopulationBest
		result.MeanFitness = lastReport.PopulationMean
		result.WorstFitness = lastReport.PopulationWorst
	}
	top, err := ledger.TopK(cfg.EliteSize)
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	for _, addr := range top {
		s, err := ledger.Seed(addr)
		if err != nil {
			return nil, fmt.Errorf("driver: %w", err)
		}
		result.Elite = append(result.Elite, model.RecordSeed(s))
	}
	logger.Info().
		Int("births", result.Births).
		Int("fusions", result.Fusions).
		Float64("best_fitness", result.BestFitness).
		Msg("run complete")
	return result, nil
}

// initialPopulation draws random seeds, redrawing the rare all-dead
// result so every member can fight.
func (d *Driver) initialPopulation(rng *rand.Rand, cfg RunConfig) ([]*seed.Seed, error) {
	seeds := make([]*seed.Seed, cfg.PopSize)
	for i := range seeds {
		for attempt := 0; ; attempt++ {
			s, err := seed.Random(rng, cfg.SXSpan, cfg.SYSpan, cfg.SeedDensity)
			if err != nil {
				return nil, err
			}
			if s.NumLiving > 0 {
				seeds[i] = s
				break
			}
			if attempt >= 100 {
				return nil, fmt.Errorf("seed density %v yields no live cells", cfg.SeedDensity)
			}
		}
	}
	return seeds, nil
}

func (d *Driver) archiveElite(ctx context.Context, ledger *evo.Ledger, runID string, generation, eliteSize int) error {
	snapshot := model.EliteSnapshot{
		VersionedRecord: storage.Stamp(),
		RunID:           runID,
		Generation:      generation,
	}
	top, err := ledger.TopK(eliteSize)
	if err != nil {
		return err
	}
	for _, addr := range top {
		s, err := ledger.Seed(addr)
		if err != nil {
			return err
		}
		snapshot.Seeds = append(snapshot.Seeds, model.RecordSeed(s))
	}
	if err := d.Store.SaveEliteSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("archive elite at %d: %w", generation, err)
	}
	return nil
}
