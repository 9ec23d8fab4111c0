package db

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ArushRam/SlopeUnitDataPipeline/internal/timeutil"
)

// Run and region statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusPartial   = "partial" // finished with at least one failed region
	StatusOK        = "ok"
	StatusFailed    = "failed"
)

// BatchRun is one invocation of a pipeline stage over a batch of regions.
type BatchRun struct {
	RunID            string `json:"run_id"`
	Stage            string `json:"stage"`
	InputDir         string `json:"input_dir"`
	OutputDir        string `json:"output_dir"`
	ParamsJSON       string `json:"params_json"`
	Status           string `json:"status"`
	RegionsTotal     int    `json:"regions_total"`
	RegionsSucceeded int    `json:"regions_succeeded"`
	RegionsFailed    int    `json:"regions_failed"`
	StartedAtNs      int64  `json:"started_at_ns"`
	FinishedAtNs     *int64 `json:"finished_at_ns,omitempty"`
}

// RegionResult is the outcome of one region within a run.
type RegionResult struct {
	RunID        string `json:"run_id"`
	Region       string `json:"region"`
	Status       string `json:"status"`
	Stage        string `json:"stage,omitempty"` // failing stage
	UnitsTotal   int    `json:"units_total"`
	UnitsKept    int    `json:"units_kept"`
	ColumnCount  int    `json:"column_count"`
	ArtifactPath string `json:"artifact_path,omitempty"`
	Error        string `json:"error,omitempty"`
	DurationNs   int64  `json:"duration_ns"`
	RecordedAtNs int64  `json:"recorded_at_ns"`
}

// LedgerStore records batch runs and their per-region results.
type LedgerStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewLedgerStore creates a LedgerStore on a migrated database.
func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db.DB, clock: timeutil.RealClock{}}
}

// WithClock replaces the clock used for timestamps.
func (s *LedgerStore) WithClock(c timeutil.Clock) *LedgerStore {
	s.clock = c
	return s
}

// StartRun inserts a running batch. If run.RunID is empty a new UUID is
// generated; the id is written back into run.
func (s *LedgerStore) StartRun(run *BatchRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAtNs == 0 {
		run.StartedAtNs = s.clock.Now().UnixNano()
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	if run.ParamsJSON == "" {
		run.ParamsJSON = "{}"
	}

	_, err := s.db.Exec(`
		INSERT INTO batch_runs (
			run_id, stage, input_dir, output_dir, params_json, status,
			regions_total, started_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Stage, run.InputDir, run.OutputDir, run.ParamsJSON, run.Status,
		run.RegionsTotal, run.StartedAtNs,
	)
	if err != nil {
		return fmt.Errorf("insert batch run: %w", err)
	}
	return nil
}

// RecordRegion stores the outcome of one region. Recording the same region
// twice for a run replaces the earlier row.
func (s *LedgerStore) RecordRegion(r *RegionResult) error {
	if r.RunID == "" {
		return fmt.Errorf("record region %s: empty run id", r.Region)
	}
	if r.RecordedAtNs == 0 {
		r.RecordedAtNs = s.clock.Now().UnixNano()
	}

	_, err := s.db.Exec(`
		INSERT INTO region_results (
			run_id, region, status, stage, units_total, units_kept, column_count,
			artifact_path, error, duration_ns, recorded_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, region) DO UPDATE SET
			status = excluded.status,
			stage = excluded.stage,
			units_total = excluded.units_total,
			units_kept = excluded.units_kept,
			column_count = excluded.column_count,
			artifact_path = excluded.artifact_path,
			error = excluded.error,
			duration_ns = excluded.duration_ns,
			recorded_at_ns = excluded.recorded_at_ns`,
		r.RunID, r.Region, r.Status, r.Stage, r.UnitsTotal, r.UnitsKept, r.ColumnCount,
		nullString(r.ArtifactPath), nullString(r.Error), r.DurationNs, r.RecordedAtNs,
	)
	if err != nil {
		return fmt.Errorf("record region %s: %w", r.Region, err)
	}
	return nil
}

// FinishRun closes a run, deriving its totals from the recorded regions.
func (s *LedgerStore) FinishRun(runID string) (*BatchRun, error) {
	var total, failed int
	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM region_results WHERE run_id = ?`, StatusFailed, runID,
	).Scan(&total, &failed)
	if err != nil {
		return nil, fmt.Errorf("count regions: %w", err)
	}

	status := StatusCompleted
	if failed > 0 {
		status = StatusPartial
	}
	if total > 0 && failed == total {
		status = StatusFailed
	}

	res, err := s.db.Exec(`
		UPDATE batch_runs
		SET status = ?, regions_total = ?, regions_succeeded = ?, regions_failed = ?, finished_at_ns = ?
		WHERE run_id = ?`,
		status, total, total-failed, failed, s.clock.Now().UnixNano(), runID,
	)
	if err != nil {
		return nil, fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return s.GetRun(runID)
}

const runColumns = `run_id, stage, input_dir, output_dir, params_json, status,
	regions_total, regions_succeeded, regions_failed, started_at_ns, finished_at_ns`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*BatchRun, error) {
	var run BatchRun
	var finished sql.NullInt64
	if err := row.Scan(
		&run.RunID, &run.Stage, &run.InputDir, &run.OutputDir, &run.ParamsJSON, &run.Status,
		&run.RegionsTotal, &run.RegionsSucceeded, &run.RegionsFailed, &run.StartedAtNs, &finished,
	); err != nil {
		return nil, err
	}
	if finished.Valid {
		v := finished.Int64
		run.FinishedAtNs = &v
	}
	return &run, nil
}

// GetRun retrieves a run by ID.
func (s *LedgerStore) GetRun(runID string) (*BatchRun, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM batch_runs WHERE run_id = ?`, runID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means 100.
func (s *LedgerStore) ListRuns(limit int) ([]*BatchRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM batch_runs ORDER BY started_at_ns DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*BatchRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RegionResults returns the recorded regions of a run ordered by name.
func (s *LedgerStore) RegionResults(runID string) ([]*RegionResult, error) {
	rows, err := s.db.Query(`
		SELECT run_id, region, status, stage, units_total, units_kept, column_count,
		       artifact_path, error, duration_ns, recorded_at_ns
		FROM region_results WHERE run_id = ? ORDER BY region`, runID)
	if err != nil {
		return nil, fmt.Errorf("list region results: %w", err)
	}
	defer rows.Close()

	var out []*RegionResult
	for rows.Next() {
		var r RegionResult
		var artifact, errText sql.NullString
		if err := rows.Scan(
			&r.RunID, &r.Region, &r.Status, &r.Stage, &r.UnitsTotal, &r.UnitsKept, &r.ColumnCount,
			&artifact, &errText, &r.DurationNs, &r.RecordedAtNs,
		); err != nil {
			return nil, fmt.Errorf("scan region result: %w", err)
		}
		r.ArtifactPath = artifact.String
		r.Error = errText.String
		out = append(out, &r)
	}
	return out, rows.Err()
}

// LastSuccess returns the most recent successful result for a region, or
// nil if it never succeeded.
func (s *LedgerStore) LastSuccess(region string) (*RegionResult, error) {
	var r RegionResult
	var artifact sql.NullString
	err := s.db.QueryRow(`
		SELECT run_id, region, units_total, units_kept, column_count, artifact_path, duration_ns, recorded_at_ns
		FROM region_results
		WHERE region = ? AND status = ?
		ORDER BY recorded_at_ns DESC LIMIT 1`, region, StatusOK,
	).Scan(&r.RunID, &r.Region, &r.UnitsTotal, &r.UnitsKept, &r.ColumnCount, &artifact, &r.DurationNs, &r.RecordedAtNs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last success: %w", err)
	}
	r.Status = StatusOK
	r.ArtifactPath = artifact.String
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
