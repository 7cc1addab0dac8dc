// Package model holds the versioned record types persisted by the storage
// layer: archived elite seeds, fusion events, and per-run diagnostics.
package model

import (
	"fmt"
	"strings"

	"github.com/pdturney/management-theory/internal/seed"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// SeedRecord is the archival form of a seed. Rows holds one string per
// grid row (y index), each character the decimal cell state, so records
// stay legible in stored payloads.
type SeedRecord struct {
	XSpan     int      `json:"xspan"`
	YSpan     int      `json:"yspan"`
	Rows      []string `json:"rows"`
	NumLiving int      `json:"num_living"`
}

// EliteSnapshot archives the top seeds of a population at one point in a
// run, keyed by run identifier and birth index.
type EliteSnapshot struct {
	VersionedRecord
	RunID      string       `json:"run_id"`
	Generation int          `json:"generation"`
	Seeds      []SeedRecord `json:"seeds"`
}

// FusionEvent records one successful fusion: the two rotated parts, the
// fused whole, and the index of the birth that produced it. Events are
// appended sequentially to a per-run log.
type FusionEvent struct {
	VersionedRecord
	RunID      string     `json:"run_id"`
	BirthIndex int        `json:"birth_index"`
	Left       SeedRecord `json:"left"`
	Right      SeedRecord `json:"right"`
	Whole      SeedRecord `json:"whole"`
}

// BirthDiagnostics summarizes population fitness after one reproduction
// event.
type BirthDiagnostics struct {
	Birth           int     `json:"birth"`
	Operator        string  `json:"operator"`
	BestFitness     float64 `json:"best_fitness"`
	MeanFitness     float64 `json:"mean_fitness"`
	WorstFitness    float64 `json:"worst_fitness"`
	ChildFitness    float64 `json:"child_fitness"`
	ReplacedAddress int     `json:"replaced_address"`
}

// RunDiagnostics is the per-run diagnostics log.
type RunDiagnostics struct {
	VersionedRecord
	RunID  string             `json:"run_id"`
	Births []BirthDiagnostics `json:"births"`
}

// RunInfo identifies a run present in the store.
type RunInfo struct {
	RunID     string `json:"run_id"`
	Snapshots int    `json:"snapshots"`
	Fusions   int    `json:"fusions"`
	LastGen   int    `json:"last_generation"`
	Diagnosed bool   `json:"diagnosed"`
}

// RecordSeed converts a live seed into its archival form.
func RecordSeed(s *seed.Seed) SeedRecord {
	rows := make([]string, s.YSpan)
	var b strings.Builder
	for y := 0; y < s.YSpan; y++ {
		b.Reset()
		for x := 0; x < s.XSpan; x++ {
			b.WriteByte('0' + s.Cells[x][y])
		}
		rows[y] = b.String()
	}
	return SeedRecord{
		XSpan:     s.XSpan,
		YSpan:     s.YSpan,
		Rows:      rows,
		NumLiving: s.NumLiving,
	}
}

// Seed reconstructs a live seed from its archival form.
func (r SeedRecord) Seed() (*seed.Seed, error) {
	s, err := seed.New(r.XSpan, r.YSpan)
	if err != nil {
		return nil, err
	}
	if len(r.Rows) != r.YSpan {
		return nil, fmt.Errorf("seed record has %d rows, want %d", len(r.Rows), r.YSpan)
	}
	for y, row := range r.Rows {
		if len(row) != r.XSpan {
			return nil, fmt.Errorf("seed record row %d has %d cells, want %d", y, len(row), r.XSpan)
		}
		for x := 0; x < r.XSpan; x++ {
			state := row[x] - '0'
			if state > 2 {
				return nil, fmt.Errorf("seed record row %d has invalid state %q", y, row[x])
			}
			s.Cells[x][y] = state
		}
	}
	s.RefreshLiveCount()
	if r.NumLiving != s.NumLiving {
		return nil, fmt.Errorf("seed record live count %d does not match cells (%d)", r.NumLiving, s.NumLiving)
	}
	return s, nil
}
