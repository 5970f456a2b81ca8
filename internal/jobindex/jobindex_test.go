package jobindex

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "jobs.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestUpsertAndListByTeam(t *testing.T) {
	idx := openTestIndex(t)
	now := time.Now()

	if err := idx.Upsert(Row{JobID: "omc-1", TeamName: "demo", Status: "running", PID: 123, StartedAt: now}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	rows, err := idx.ListByTeam("demo")
	if err != nil {
		t.Fatalf("ListByTeam: %v", err)
	}
	if len(rows) != 1 || rows[0].JobID != "omc-1" {
		t.Errorf("rows = %+v", rows)
	}
	if rows[0].FinishedAt != nil {
		t.Error("expected nil FinishedAt")
	}
}

func TestUpsertUpdatesExistingRow(t *testing.T) {
	idx := openTestIndex(t)
	now := time.Now()

	idx.Upsert(Row{JobID: "omc-1", TeamName: "demo", Status: "running", PID: 123, StartedAt: now})

	finished := now.Add(time.Minute)
	if err := idx.Upsert(Row{JobID: "omc-1", TeamName: "demo", Status: "done", PID: 123, StartedAt: now, FinishedAt: &finished, Result: "ok"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	rows, _ := idx.ListByTeam("demo")
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row after update, got %d", len(rows))
	}
	if rows[0].Status != "done" || rows[0].FinishedAt == nil {
		t.Errorf("row not updated: %+v", rows[0])
	}
}

func TestListRunningFiltersByStatus(t *testing.T) {
	idx := openTestIndex(t)
	now := time.Now()

	idx.Upsert(Row{JobID: "omc-1", TeamName: "demo", Status: "running", StartedAt: now})
	idx.Upsert(Row{JobID: "omc-2", TeamName: "demo", Status: "done", StartedAt: now})

	rows, err := idx.ListRunning()
	if err != nil {
		t.Fatalf("ListRunning: %v", err)
	}
	if len(rows) != 1 || rows[0].JobID != "omc-1" {
		t.Errorf("rows = %+v", rows)
	}
}
