package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const runIndexFile = "run_index.json"

// RunIndexEntry is one line of the artifacts-directory index.
type RunIndexEntry struct {
	RunID       string  `json:"run_id"`
	Births      int     `json:"births"`
	Fusions     int     `json:"fusions"`
	BestFitness float64 `json:"best_fitness"`
	CreatedUTC  string  `json:"created_utc"`
}

// RunArtifacts bundles the files written for one run.
type RunArtifacts struct {
	Entry   RunIndexEntry
	Rows    []GrowthRow
	Summary GrowthSummary
}

// WriteRunArtifacts writes the growth table and summary into a per-run
// directory and returns its path.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Entry.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}
	runDir := filepath.Join(baseDir, artifacts.Entry.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	if err := WriteGrowthTable(filepath.Join(runDir, "growth_table.csv"), artifacts.Rows); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "summary.json"), artifacts.Summary); err != nil {
		return "", err
	}
	if err := AppendRunIndex(baseDir, artifacts.Entry); err != nil {
		return "", err
	}
	return runDir, nil
}

// AppendRunIndex adds or replaces the entry for a run in the index.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}
	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}
	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex reads the index; a missing file is an empty index.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}
	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
