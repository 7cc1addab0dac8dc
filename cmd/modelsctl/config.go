package main

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pdturney/management-theory/pkg/models"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// FileConfig is the YAML configuration surface. Values in a config file
// overlay the embedded defaults; command-line flags overlay both.
type FileConfig struct {
	PopSize            int     `yaml:"pop_size"`
	EliteSize          int     `yaml:"elite_size"`
	TournamentSize     int     `yaml:"tournament_size"`
	MutationRate       float64 `yaml:"mutation_rate"`
	ProbGrow           float64 `yaml:"prob_grow"`
	ProbFlip           float64 `yaml:"prob_flip"`
	ProbShrink         float64 `yaml:"prob_shrink"`
	SeedDensity        float64 `yaml:"seed_density"`
	SXSpan             int     `yaml:"s_xspan"`
	SYSpan             int     `yaml:"s_yspan"`
	MinSXSpan          int     `yaml:"min_s_xspan"`
	MaxSeedArea        int     `yaml:"max_seed_area"`
	MinSimilarity      float64 `yaml:"min_similarity"`
	MaxSimilarity      float64 `yaml:"max_similarity"`
	ProbFission        float64 `yaml:"prob_fission"`
	ProbFusion         float64 `yaml:"prob_fusion"`
	WidthFactor        int     `yaml:"width_factor"`
	HeightFactor       int     `yaml:"height_factor"`
	TimeFactor         int     `yaml:"time_factor"`
	NumTrials          int     `yaml:"num_trials"`
	NumBirths          int     `yaml:"num_births"`
	ArchiveInterval    int     `yaml:"archive_interval"`
	ImmediateSymbiosis bool    `yaml:"immediate_symbiosis"`
	FusionTest         bool    `yaml:"fusion_test"`
	Seed               int64   `yaml:"seed"`
	Workers            int     `yaml:"workers"`
	Store              string  `yaml:"store"`
	DBPath             string  `yaml:"db_path"`
	ArtifactsDir       string  `yaml:"artifacts_dir"`
	LogLevel           string  `yaml:"log_level"`
}

// loadConfig reads the embedded defaults, then overlays the file at path
// if one is given. Keys absent from the file keep their defaults.
func loadConfig(path string) (*FileConfig, error) {
	cfg := &FileConfig{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *FileConfig) runRequest() models.RunRequest {
	return models.RunRequest{
		PopSize:         c.PopSize,
		EliteSize:       c.EliteSize,
		TournamentSize:  c.TournamentSize,
		MutationRate:    c.MutationRate,
		ProbGrow:        c.ProbGrow,
		ProbFlip:        c.ProbFlip,
		ProbShrink:      c.ProbShrink,
		SeedDensity:     c.SeedDensity,
		SXSpan:          c.SXSpan,
		SYSpan:          c.SYSpan,
		MinSXSpan:       c.MinSXSpan,
		MaxSeedArea:     c.MaxSeedArea,
		MinSimilarity:   c.MinSimilarity,
		MaxSimilarity:   c.MaxSimilarity,
		ProbFission:     c.ProbFission,
		ProbFusion:      c.ProbFusion,
		WidthFactor:     c.WidthFactor,
		HeightFactor:    c.HeightFactor,
		TimeFactor:      c.TimeFactor,
		NumTrials:       c.NumTrials,
		NumBirths:       c.NumBirths,
		ArchiveInterval: c.ArchiveInterval,
		Immediate:       c.ImmediateSymbiosis,
		FusionTest:      c.FusionTest,
		Seed:            c.Seed,
		Workers:         c.Workers,
	}
}
