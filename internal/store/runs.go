package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunStatus is the final state of a run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusInterrupted RunStatus = "interrupted"
	RunStatusFailed      RunStatus = "failed"
)

// Run is one row of the runs table.
type Run struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	Browsers         int
	Navigator        string
	Config           string
	PageLoads        int64
	PageLoadFailures int64
	DNSQueries       int64
	DNSFailures      int64
	Status           RunStatus
}

// RunSummary holds the totals written when a run ends.
type RunSummary struct {
	FinishedAt       time.Time
	PageLoads        int64
	PageLoadFailures int64
	DNSQueries       int64
	DNSFailures      int64
	Status           RunStatus
}

// BeginRun inserts a run in the running state.
func (db *DB) BeginRun(ctx context.Context, run Run) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, browsers, navigator, config, status) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.Browsers, run.Navigator, run.Config, RunStatusRunning)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun records the run's totals and final status.
func (db *DB) FinishRun(ctx context.Context, id string, summary RunSummary) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, page_loads = ?, page_load_failures = ?, dns_queries = ?, dns_failures = ?, status = ? WHERE id = ?`,
		summary.FinishedAt.UTC(), summary.PageLoads, summary.PageLoadFailures, summary.DNSQueries, summary.DNSFailures, summary.Status, id)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// GetRun loads a run by ID.
func (db *DB) GetRun(ctx context.Context, id string) (Run, error) {
	var (
		run      Run
		finished sql.NullTime
		config   sql.NullString
		status   string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, browsers, navigator, config, page_loads, page_load_failures, dns_queries, dns_failures, status FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &run.StartedAt, &finished, &run.Browsers, &run.Navigator, &config,
			&run.PageLoads, &run.PageLoadFailures, &run.DNSQueries, &run.DNSFailures, &status)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	run.FinishedAt = finished.Time
	run.Config = config.String
	run.Status = RunStatus(status)
	return run, nil
}

// EventCounts returns the number of stored events per kind for a run.
func (db *DB) EventCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT kind, COUNT(*) FROM events WHERE run_id = ? GROUP BY kind`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}
