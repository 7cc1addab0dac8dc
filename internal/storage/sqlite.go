//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pdturney/management-theory/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveEliteSnapshot(ctx context.Context, snapshot model.EliteSnapshot) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeEliteSnapshot(snapshot)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO elite_snapshots (run_id, generation, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, generation) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, snapshot.RunID, snapshot.Generation, snapshot.SchemaVersion, snapshot.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetEliteSnapshot(ctx context.Context, runID string, generation int) (model.EliteSnapshot, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.EliteSnapshot{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx,
		`SELECT payload FROM elite_snapshots WHERE run_id = ? AND generation = ?`,
		runID, generation).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.EliteSnapshot{}, false, nil
		}
		return model.EliteSnapshot{}, false, err
	}

	snapshot, err := DecodeEliteSnapshot(payload)
	if err != nil {
		return model.EliteSnapshot{}, false, fmt.Errorf("decode elite snapshot %s/%d: %w", runID, generation, err)
	}
	return snapshot, true, nil
}

func (s *SQLiteStore) ListEliteSnapshots(ctx context.Context, runID string) ([]model.EliteSnapshot, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT payload FROM elite_snapshots WHERE run_id = ? ORDER BY generation`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EliteSnapshot
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		snapshot, err := DecodeEliteSnapshot(payload)
		if err != nil {
			return nil, fmt.Errorf("decode elite snapshot %s: %w", runID, err)
		}
		out = append(out, snapshot)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendFusionEvent(ctx context.Context, event model.FusionEvent) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeFusionEvent(event)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO fusion_events (run_id, birth_index, payload)
		VALUES (?, ?, ?)
	`, event.RunID, event.BirthIndex, payload)
	return err
}

func (s *SQLiteStore) ListFusionEvents(ctx context.Context, runID string) ([]model.FusionEvent, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT payload FROM fusion_events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FusionEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		event, err := DecodeFusionEvent(payload)
		if err != nil {
			return nil, fmt.Errorf("decode fusion event %s: %w", runID, err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveRunDiagnostics(ctx context.Context, diagnostics model.RunDiagnostics) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeRunDiagnostics(diagnostics)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO run_diagnostics (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload
	`, diagnostics.RunID, payload)
	return err
}

func (s *SQLiteStore) GetRunDiagnostics(ctx context.Context, runID string) (model.RunDiagnostics, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunDiagnostics{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx,
		`SELECT payload FROM run_diagnostics WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunDiagnostics{}, false, nil
		}
		return model.RunDiagnostics{}, false, err
	}

	diagnostics, err := DecodeRunDiagnostics(payload)
	if err != nil {
		return model.RunDiagnostics{}, false, fmt.Errorf("decode run diagnostics %s: %w", runID, err)
	}
	return diagnostics, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.RunInfo, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	byRun := make(map[string]*model.RunInfo)
	lookup := func(runID string) *model.RunInfo {
		info, ok := byRun[runID]
		if !ok {
			info = &model.RunInfo{RunID: runID, LastGen: -1}
			byRun[runID] = info
		}
		return info
	}

	rows, err := db.QueryContext(ctx,
		`SELECT run_id, COUNT(*), MAX(generation) FROM elite_snapshots GROUP BY run_id`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var runID string
		var count, lastGen int
		if err := rows.Scan(&runID, &count, &lastGen); err != nil {
			rows.Close()
			return nil, err
		}
		info := lookup(runID)
		info.Snapshots = count
		info.LastGen = lastGen
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = db.QueryContext(ctx,
		`SELECT run_id, COUNT(*) FROM fusion_events GROUP BY run_id`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var runID string
		var count int
		if err := rows.Scan(&runID, &count); err != nil {
			rows.Close()
			return nil, err
		}
		lookup(runID).Fusions = count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = db.QueryContext(ctx, `SELECT run_id FROM run_diagnostics`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var runID string
		if err := rows.Scan(&runID); err != nil {
			return nil, err
		}
		lookup(runID).Diagnosed = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.RunInfo, 0, len(byRun))
	for _, info := range byRun {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS elite_snapshots (
			run_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, generation)
		);
		CREATE TABLE IF NOT EXISTS fusion_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			birth_index INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS run_diagnostics (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
	`)
	return err
}
