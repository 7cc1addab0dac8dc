// Package models is the public client for running and inspecting
// evolutionary experiments.
package models

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdturney/management-theory/internal/evo"
	"github.com/pdturney/management-theory/internal/model"
	"github.com/pdturney/management-theory/internal/platform"
	"github.com/pdturney/management-theory/internal/sim"
	"github.com/pdturney/management-theory/internal/stats"
	"github.com/pdturney/management-theory/internal/storage"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultDBPath       = "models.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	Logger       zerolog.Logger
}

type Client struct {
	store        storage.Store
	artifactsDir string
	logger       zerolog.Logger
}

// RunRequest mirrors the configuration surface of one run. Every field
// is passed through as given, so explicit zeros (a zero mutation rate, a
// zero fusion probability) are honored; start from DefaultRunRequest and
// mutate it rather than building a request from scratch.
type RunRequest struct {
	PopSize         int
	EliteSize       int
	TournamentSize  int
	MutationRate    float64
	ProbGrow        float64
	ProbFlip        float64
	ProbShrink      float64
	SeedDensity     float64
	SXSpan          int
	SYSpan          int
	MinSXSpan       int
	MaxSeedArea     int
	MinSimilarity   float64
	MaxSimilarity   float64
	ProbFission     float64
	ProbFusion      float64
	WidthFactor     int
	HeightFactor    int
	TimeFactor      int
	NumTrials       int
	NumBirths       int
	ArchiveInterval int
	Immediate       bool
	FusionTest      bool
	Seed            int64
	Workers         int
}

// RunSummary is the outcome of a completed run.
type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Births       int
	Fusions      int
	BestFitness  float64
	MeanFitness  float64
	Elapsed      time.Duration
}

type EliteRequest struct {
	RunID      string
	Generation int
	Latest     bool
}

// BaselineRequest scores a run's best elite seed under the same trial
// geometry the run evolved it with; the factor fields must match the
// run's configuration. Zero factors and samples take the
// DefaultRunRequest values, which are never valid at zero.
type BaselineRequest struct {
	RunID        string
	Samples      int
	Seed         int64
	WidthFactor  int
	HeightFactor int
	TimeFactor   int
	NumTrials    int
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		logger:       opts.Logger,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Run executes one evolutionary run on the in-process engine, persists
// its artifacts, and returns a summary.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	driver := &platform.Driver{
		Runner: sim.Immigration{},
		Store:  c.store,
		Logger: c.logger,
	}
	cfg := platform.RunConfig{
		PopSize:         req.PopSize,
		EliteSize:       req.EliteSize,
		SXSpan:          req.SXSpan,
		SYSpan:          req.SYSpan,
		SeedDensity:     req.SeedDensity,
		NumBirths:       req.NumBirths,
		ArchiveInterval: req.ArchiveInterval,
		Workers:         req.Workers,
		Seed:            req.Seed,
		WidthFactor:     req.WidthFactor,
		HeightFactor:    req.HeightFactor,
		TimeFactor:      req.TimeFactor,
		NumTrials:       req.NumTrials,
		Reproduction: evo.Config{
			TournamentSize:     req.TournamentSize,
			MutationRate:       req.MutationRate,
			ProbGrow:           req.ProbGrow,
			ProbFlip:           req.ProbFlip,
			ProbShrink:         req.ProbShrink,
			SeedDensity:        req.SeedDensity,
			MinSXSpan:          req.MinSXSpan,
			MaxSeedArea:        req.MaxSeedArea,
			MinSimilarity:      req.MinSimilarity,
			MaxSimilarity:      req.MaxSimilarity,
			ProbFission:        req.ProbFission,
			ProbFusion:         req.ProbFusion,
			ImmediateSymbiosis: req.Immediate,
			FusionTest:         req.FusionTest,
		},
	}

	start := time.Now()
	result, err := driver.Run(ctx, cfg)
	if err != nil {
		return RunSummary{}, err
	}
	elapsed := time.Since(start)

	diagnostics, ok, err := c.store.GetRunDiagnostics(ctx, result.RunID)
	if err != nil {
		return RunSummary{}, fmt.Errorf("load diagnostics: %w", err)
	}
	if !ok {
		return RunSummary{}, fmt.Errorf("run %s left no diagnostics", result.RunID)
	}
	rows := stats.GrowthTable(diagnostics)
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Entry: stats.RunIndexEntry{
			RunID:       result.RunID,
			Births:      result.Births,
			Fusions:     result.Fusions,
			BestFitness: result.BestFitness,
			CreatedUTC:  start.UTC().Format(time.RFC3339),
		},
		Rows:    rows,
		Summary: stats.Summarize(rows),
	})
	if err != nil {
		return RunSummary{}, fmt.Errorf("write artifacts: %w", err)
	}

	return RunSummary{
		RunID:        result.RunID,
		ArtifactsDir: runDir,
		Births:       result.Births,
		Fusions:      result.Fusions,
		BestFitness:  result.BestFitness,
		MeanFitness:  result.MeanFitness,
		Elapsed:      elapsed,
	}, nil
}

// Runs lists the runs known to the store.
func (c *Client) Runs(ctx context.Context) ([]model.RunInfo, error) {
	return c.store.ListRuns(ctx)
}

// Elite fetches one archived elite snapshot, either by generation or the
// latest for the run.
func (c *Client) Elite(ctx context.Context, req EliteRequest) (model.EliteSnapshot, error) {
	if req.RunID == "" {
		return model.EliteSnapshot{}, fmt.Errorf("run id is required")
	}
	if req.Latest {
		snapshots, err := c.store.ListEliteSnapshots(ctx, req.RunID)
		if err != nil {
			return model.EliteSnapshot{}, err
		}
		if len(snapshots) == 0 {
			return model.EliteSnapshot{}, fmt.Errorf("run %s has no elite snapshots", req.RunID)
		}
		return snapshots[len(snapshots)-1], nil
	}
	snapshot, ok, err := c.store.GetEliteSnapshot(ctx, req.RunID, req.Generation)
	if err != nil {
		return model.EliteSnapshot{}, err
	}
	if !ok {
		return model.EliteSnapshot{}, fmt.Errorf("run %s has no snapshot at generation %d", req.RunID, req.Generation)
	}
	return snapshot, nil
}

// Fusions lists the fusion events of a run in birth order.
func (c *Client) Fusions(ctx context.Context, runID string) ([]model.FusionEvent, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	return c.store.ListFusionEvents(ctx, runID)
}

// Diagnostics fetches the per-birth diagnostics of a run.
func (c *Client) Diagnostics(ctx context.Context, runID string) (model.RunDiagnostics, error) {
	if runID == "" {
		return model.RunDiagnostics{}, fmt.Errorf("run id is required")
	}
	diagnostics, ok, err := c.store.GetRunDiagnostics(ctx, runID)
	if err != nil {
		return model.RunDiagnostics{}, err
	}
	if !ok {
		return model.RunDiagnostics{}, fmt.Errorf("run %s has no diagnostics", runID)
	}
	return diagnostics, nil
}

// GrowthTable rebuilds the growth table of a run from its diagnostics.
func (c *Client) GrowthTable(ctx context.Context, runID string) ([]stats.GrowthRow, error) {
	diagnostics, err := c.Diagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	return stats.GrowthTable(diagnostics), nil
}

// Baseline scores the best seed of a run's latest elite snapshot against
// shuffled copies of itself.
func (c *Client) Baseline(ctx context.Context, req BaselineRequest) (float64, error) {
	if req.Samples < 1 {
		req.Samples = 20
	}
	defaults := DefaultRunRequest()
	if req.WidthFactor == 0 {
		req.WidthFactor = defaults.WidthFactor
	}
	if req.HeightFactor == 0 {
		req.HeightFactor = defaults.HeightFactor
	}
	if req.TimeFactor == 0 {
		req.TimeFactor = defaults.TimeFactor
	}
	if req.NumTrials == 0 {
		req.NumTrials = defaults.NumTrials
	}
	snapshot, err := c.Elite(ctx, EliteRequest{RunID: req.RunID, Latest: true})
	if err != nil {
		return 0, err
	}
	if len(snapshot.Seeds) == 0 {
		return 0, fmt.Errorf("run %s archived an empty elite", req.RunID)
	}
	best, err := snapshot.Seeds[0].Seed()
	if err != nil {
		return 0, fmt.Errorf("decode elite seed: %w", err)
	}
	ev, err := evo.NewEvaluator(sim.Immigration{}, req.WidthFactor, req.HeightFactor, req.TimeFactor, req.NumTrials)
	if err != nil {
		return 0, err
	}
	rng := rand.New(rand.NewSource(req.Seed))
	return stats.ShuffleBaseline(ctx, rng, ev, best, req.Samples)
}

// DefaultRunRequest returns the standard run configuration with a
// time-based rng seed. Callers adjust fields from here; Run never
// rewrites what it is handed.
func DefaultRunRequest() RunRequest {
	return RunRequest{
		PopSize:         100,
		EliteSize:       10,
		TournamentSize:  2,
		MutationRate:    0.01,
		ProbGrow:        0.2,
		ProbFlip:        0.6,
		ProbShrink:      0.2,
		SeedDensity:     0.375,
		SXSpan:          5,
		SYSpan:          5,
		MinSXSpan:       2,
		MaxSeedArea:     170,
		MinSimilarity:   0.8,
		MaxSimilarity:   0.99,
		ProbFission:     0.01,
		ProbFusion:      0.005,
		WidthFactor:     6,
		HeightFactor:    3,
		TimeFactor:      6,
		NumTrials:       2,
		NumBirths:       100,
		ArchiveInterval: 50,
		Workers:         4,
		Seed:            time.Now().UnixNano(),
	}
}
