package storage

import (
	"context"

	"github.com/pdturney/management-theory/internal/model"
)

// Store defines persistence operations for run artifacts: elite
// snapshots, the per-run fusion log, and run diagnostics.
type Store interface {
	Init(ctx context.Context) error
	SaveEliteSnapshot(ctx context.Context, snapshot model.EliteSnapshot) error
	GetEliteSnapshot(ctx context.Context, runID string, generation int) (model.EliteSnapshot, bool, error)
	ListEliteSnapshots(ctx context.Context, runID string) ([]model.EliteSnapshot, error)
	AppendFusionEvent(ctx context.Context, event model.FusionEvent) error
	ListFusionEvents(ctx context.Context, runID string) ([]model.FusionEvent, error)
	SaveRunDiagnostics(ctx context.Context, diagnostics model.RunDiagnostics) error
	GetRunDiagnostics(ctx context.Context, runID string) (model.RunDiagnostics, bool, error)
	ListRuns(ctx context.Context) ([]model.RunInfo, error)
}
