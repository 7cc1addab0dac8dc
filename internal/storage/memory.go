package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/pdturney/management-theory/internal/model"
)

type snapshotKey struct {
	runID      string
	generation int
}

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	snapshots   map[snapshotKey]model.EliteSnapshot
	fusions     map[string][]model.FusionEvent
	diagnostics map[string]model.RunDiagnostics
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.snapshots = make(map[snapshotKey]model.EliteSnapshot)
	s.fusions = make(map[string][]model.FusionEvent)
	s.diagnostics = make(map[string]model.RunDiagnostics)
	return nil
}

func (s *MemoryStore) SaveEliteSnapshot(_ context.Context, snapshot model.EliteSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.snapshots[snapshotKey{snapshot.RunID, snapshot.Generation}] = snapshot
	return nil
}

func (s *MemoryStore) GetEliteSnapshot(_ context.Context, runID string, generation int) (model.EliteSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[snapshotKey{runID, generation}]
	return snapshot, ok, nil
}

func (s *MemoryStore) ListEliteSnapshots(_ context.Context, runID string) ([]model.EliteSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.EliteSnapshot
	for key, snapshot := range s.snapshots {
		if key.runID == runID {
			out = append(out, snapshot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Generation < out[j].Generation })
	return out, nil
}

func (s *MemoryStore) AppendFusionEvent(_ context.Context, event model.FusionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.fusions[event.RunID] = append(s.fusions[event.RunID], event)
	return nil
}

func (s *MemoryStore) ListFusionEvents(_ context.Context, runID string) ([]model.FusionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.fusions[runID]
	copied := make([]model.FusionEvent, len(events))
	copy(copied, events)
	return copied, nil
}

func (s *MemoryStore) SaveRunDiagnostics(_ context.Context, diagnostics model.RunDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.diagnostics[diagnostics.RunID] = diagnostics
	return nil
}

func (s *MemoryStore) GetRunDiagnostics(_ context.Context, runID string) (model.RunDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	return diagnostics, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byRun := make(map[string]*model.RunInfo)
	lookup := func(runID string) *model.RunInfo {
		info, ok := byRun[runID]
		if !ok {
			info = &model.RunInfo{RunID: runID, LastGen: -1}
			byRun[runID] = info
		}
		return info
	}
	for key := range s.snapshots {
		info := lookup(key.runID)
		info.Snapshots++
		if key.generation > info.LastGen {
			info.LastGen = key.generation
		}
	}
	for runID, events := range s.fusions {
		lookup(runID).Fusions = len(events)
	}
	for runID := range s.diagnostics {
		lookup(runID).Diagnosed = true
	}
	out := make([]model.RunInfo, 0, len(byRun))
	for _, info := range byRun {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out, nil
}
