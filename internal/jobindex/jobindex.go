// Package jobindex keeps a SQLite-backed secondary index of background
// job history, the way internal/repository/sqlite keeps a queryable copy
// of state a JSON-file store alone can't search. internal/jobs remains
// the source of truth (one JSON file per job under the jobs dir); this
// index exists only so `teamctl jobs list` style lookups don't have to
// re-scan and re-parse every job file on disk.
package jobindex

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id TEXT PRIMARY KEY,
	team_name TEXT NOT NULL,
	status TEXT NOT NULL,
	pid INTEGER NOT NULL DEFAULT 0,
	cwd TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL DEFAULT '',
	result TEXT NOT NULL DEFAULT '',
	stderr TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_jobs_team ON jobs(team_name);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

// Index wraps a SQLite database recording one row per job.
type Index struct {
	db *sql.DB
}

// Open creates (or reuses) the database at path, creating parent
// directories and the schema as needed.
func Open(path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("jobindex mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("jobindex open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("jobindex schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database.
func (x *Index) Close() error {
	return x.db.Close()
}

// Row is one indexed job record.
type Row struct {
	JobID      string
	TeamName   string
	Status     string
	PID        int
	Cwd        string
	StartedAt  time.Time
	FinishedAt *time.Time
	Result     string
	Stderr     string
}

// Upsert inserts or replaces the row for r.JobID.
func (x *Index) Upsert(r Row) error {
	finished := ""
	if r.FinishedAt != nil {
		finished = r.FinishedAt.Format(time.RFC3339Nano)
	}
	_, err := x.db.Exec(`
		INSERT INTO jobs (job_id, team_name, status, pid, cwd, started_at, finished_at, result, stderr)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			status = excluded.status,
			pid = excluded.pid,
			finished_at = excluded.finished_at,
			result = excluded.result,
			stderr = excluded.stderr`,
		r.JobID, r.TeamName, r.Status, r.PID, r.Cwd,
		r.StartedAt.Format(time.RFC3339Nano), finished, r.Result, r.Stderr)
	if err != nil {
		return fmt.Errorf("jobindex upsert %s: %w", r.JobID, err)
	}
	return nil
}

// ListByTeam returns every indexed job for teamName, most recently
// started first.
func (x *Index) ListByTeam(teamName string) ([]Row, error) {
	rows, err := x.db.Query(`
		SELECT job_id, team_name, status, pid, cwd, started_at, finished_at, result, stderr
		FROM jobs WHERE team_name = ? ORDER BY started_at DESC`, teamName)
	if err != nil {
		return nil, fmt.Errorf("jobindex list: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// ListRunning returns every indexed job whose status is "running".
func (x *Index) ListRunning() ([]Row, error) {
	rows, err := x.db.Query(`
		SELECT job_id, team_name, status, pid, cwd, started_at, finished_at, result, stderr
		FROM jobs WHERE status = 'running' ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("jobindex list running: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		var r Row
		var started, finished string
		if err := rows.Scan(&r.JobID, &r.TeamName, &r.Status, &r.PID, &r.Cwd, &started, &finished, &r.Result, &r.Stderr); err != nil {
			return nil, fmt.Errorf("jobindex scan: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished != "" {
			if t, err := time.Parse(time.RFC3339Nano, finished); err == nil {
				r.FinishedAt = &t
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
