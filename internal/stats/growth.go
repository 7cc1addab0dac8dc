// Package stats builds the reporting artifacts of a run: growth tables,
// shuffle baselines, and the run index in the artifacts directory.
package stats

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"

	"github.com/pdturney/management-theory/internal/model"
)

// GrowthRow is one line of the growth table: population fitness figures
// after a single birth.
type GrowthRow struct {
	Birth        int     `csv:"birth"`
	Operator     string  `csv:"operator"`
	BestFitness  float64 `csv:"best_fitness"`
	MeanFitness  float64 `csv:"mean_fitness"`
	WorstFitness float64 `csv:"worst_fitness"`
	ChildFitness float64 `csv:"child_fitness"`
}

// GrowthSummary aggregates a growth table.
type GrowthSummary struct {
	Births        int            `json:"births"`
	FinalBest     float64        `json:"final_best"`
	MeanBest      float64        `json:"mean_best"`
	StdBest       float64        `json:"std_best"`
	MeanChild     float64        `json:"mean_child"`
	OperatorTally map[string]int `json:"operator_tally"`
}

// GrowthTable converts run diagnostics into table rows.
func GrowthTable(d model.RunDiagnostics) []GrowthRow {
	rows := make([]GrowthRow, len(d.Births))
	for i, b := range d.Births {
		rows[i] = GrowthRow{
			Birth:        b.Birth,
			Operator:     b.Operator,
			BestFitness:  b.BestFitness,
			MeanFitness:  b.MeanFitness,
			WorstFitness: b.WorstFitness,
			ChildFitness: b.ChildFitness,
		}
	}
	return rows
}

// Summarize reduces a growth table to its headline figures.
func Summarize(rows []GrowthRow) GrowthSummary {
	summary := GrowthSummary{
		Births:        len(rows),
		OperatorTally: make(map[string]int),
	}
	if len(rows) == 0 {
		return summary
	}
	best := make([]float64, len(rows))
	child := make([]float64, len(rows))
	for i, row := range rows {
		best[i] = row.BestFitness
		child[i] = row.ChildFitness
		summary.OperatorTally[row.Operator]++
	}
	summary.FinalBest = best[len(best)-1]
	summary.MeanBest = stat.Mean(best, nil)
	summary.StdBest = stat.StdDev(best, nil)
	summary.MeanChild = stat.Mean(child, nil)
	return summary
}

// WriteGrowthTable writes the table as CSV.
func WriteGrowthTable(path string, rows []GrowthRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write growth table: %w", err)
	}
	defer f.Close()
	if err := gocsv.Marshal(rows, f); err != nil {
		return fmt.Errorf("write growth table: %w", err)
	}
	return nil
}

// ReadGrowthTable reads a table written by WriteGrowthTable.
func ReadGrowthTable(path string) ([]GrowthRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read growth table: %w", err)
	}
	defer f.Close()
	var rows []GrowthRow
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, fmt.Errorf("read growth table: %w", err)
	}
	return rows, nil
}
