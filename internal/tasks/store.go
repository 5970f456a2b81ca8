package tasks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store persists task records to tasks/<id>.json under a team's state
// root. The teacher's internal/tasks.Store (pre-adaptation) wrapped
// SQLite with an upsert-on-conflict write; this store keeps the same
// "read, mutate, write whole record back" shape but against the
// filesystem, because spec §3 makes the task JSON file itself the
// canonical, directly-inspectable record — there is no derived index to
// keep in sync for the core scheduler (see internal/jobindex for where a
// SQLite-backed secondary index does get used, for job history).
type Store struct {
	cwd, teamName string
}

// NewStore returns a Store rooted at the team's state tree under cwd.
func NewStore(cwd, teamName string) *Store {
	return &Store{cwd: cwd, teamName: teamName}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.cwd, ".omc", "state", "team", s.teamName, "tasks", id+".json")
}

// Read returns the record for id, or nil if it doesn't exist or fails to
// parse. Callers must tolerate a nil result.
func (s *Store) Read(id string) *Record {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil
	}
	return &rec
}

// Write creates the parent directory if needed and writes rec as
// two-space-indented JSON.
func (s *Store) Write(rec *Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path(rec.ID)), 0o755); err != nil {
		return fmt.Errorf("create tasks dir: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", rec.ID, err)
	}
	if err := os.WriteFile(s.path(rec.ID), data, 0o644); err != nil {
		return fmt.Errorf("write task %s: %w", rec.ID, err)
	}
	return nil
}

// Create writes a brand-new pending record for id.
func (s *Store) Create(id, subject, description string, now time.Time) error {
	return s.Write(NewRecord(id, subject, description, now))
}

// ClaimPending performs the pending -> in_progress transition (spec
// §4.6): it reads the current record, and only flips status, owner, and
// assignedAt when the current status is pending. It returns whether the
// transition happened; this bool is the sole arbiter of "I claimed this
// task" (spec invariant 1, testable property 2). This is a
// check-then-write with no file lock: the scheduler is the only writer in
// practice (spec §5), so the TOCTOU race is accepted by design, not
// overlooked.
func (s *Store) ClaimPending(id, owner string, now time.Time) (bool, error) {
	rec := s.Read(id)
	if rec == nil {
		return false, fmt.Errorf("task %s not found", id)
	}
	if rec.Status != StatusPending {
		return false, nil
	}
	rec.Status = StatusInProgress
	owned := owner
	rec.Owner = &owned
	rec.AssignedAt = &now
	if err := s.Write(rec); err != nil {
		return false, err
	}
	return true, nil
}

// ResetToPending reverts a task back to pending with no owner, used when
// the scheduler fails to notify a freshly spawned worker (spec §4.7
// WorkerNotifyFailed handling).
func (s *Store) ResetToPending(id string) error {
	rec := s.Read(id)
	if rec == nil {
		return fmt.Errorf("task %s not found", id)
	}
	rec.Status = StatusPending
	rec.Owner = nil
	rec.AssignedAt = nil
	return s.Write(rec)
}

// CompleteFromSentinel applies a done.json payload to the task record:
// sets status, summary, result, and completedAt/failedAt, preserving
// every other field. Re-processing after the sentinel has been deleted is
// a no-op from the store's point of view — the caller (watchdog) is
// responsible for not calling this twice for the same sentinel.
func (s *Store) CompleteFromSentinel(id string, status Status, summary, result string, at time.Time) error {
	rec := s.Read(id)
	if rec == nil {
		return fmt.Errorf("task %s not found", id)
	}
	rec.Status = status
	rec.Summary = summary
	rec.Result = result
	switch status {
	case StatusCompleted:
		rec.CompletedAt = &at
		rec.FailedAt = nil
	case StatusFailed:
		rec.FailedAt = &at
		rec.CompletedAt = nil
	}
	return s.Write(rec)
}

// FailDeadPane marks a task failed with a synthetic summary naming the
// worker whose pane died before writing done.json.
func (s *Store) FailDeadPane(id, workerName string, at time.Time) error {
	rec := s.Read(id)
	if rec == nil {
		return fmt.Errorf("task %s not found", id)
	}
	rec.Status = StatusFailed
	rec.Summary = fmt.Sprintf("Worker pane died before done.json was written (worker: %s)", workerName)
	rec.FailedAt = &at
	return s.Write(rec)
}

// List returns every task record found for ids, skipping ids that fail to
// read (Read already tolerates that by returning nil, so callers get a
// shorter slice rather than an error for a single corrupt file).
func (s *Store) List(ids []string) []*Record {
	recs := make([]*Record, 0, len(ids))
	for _, id := range ids {
		if rec := s.Read(id); rec != nil {
			recs = append(recs, rec)
		}
	}
	return recs
}
