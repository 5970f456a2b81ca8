package tasks

import (
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(dir, "demo")
}

func TestCreateAndRead(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	if err := s.Create("1", "Subject", "Description", now); err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec := s.Read("1")
	if rec == nil {
		t.Fatal("expected record")
	}
	if rec.Status != StatusPending || rec.Owner != nil {
		t.Errorf("unexpected initial record: %+v", rec)
	}
	if rec.ID != "1" {
		t.Errorf("id = %q, want %q", rec.ID, "1")
	}
}

func TestReadMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	if rec := s.Read("nope"); rec != nil {
		t.Errorf("expected nil, got %+v", rec)
	}
}

func TestClaimPendingOnlyTransitionsFromPending(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	s.Create("1", "x", "y", now)

	ok, err := s.ClaimPending("1", "worker-1", now)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	rec := s.Read("1")
	if rec.Status != StatusInProgress || rec.Owner == nil || *rec.Owner != "worker-1" {
		t.Errorf("unexpected record after claim: %+v", rec)
	}
	if rec.AssignedAt == nil {
		t.Error("expected assignedAt to be set")
	}

	// Second claim attempt must fail (already in_progress).
	ok, err = s.ClaimPending("1", "worker-2", now)
	if err != nil {
		t.Fatalf("second claim error: %v", err)
	}
	if ok {
		t.Error("expected second claim to fail")
	}
	rec = s.Read("1")
	if *rec.Owner != "worker-1" {
		t.Errorf("owner changed to %q, want worker-1", *rec.Owner)
	}
}

func TestResetToPending(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	s.Create("1", "x", "y", now)
	s.ClaimPending("1", "worker-1", now)

	if err := s.ResetToPending("1"); err != nil {
		t.Fatalf("ResetToPending: %v", err)
	}
	rec := s.Read("1")
	if rec.Status != StatusPending || rec.Owner != nil || rec.AssignedAt != nil {
		t.Errorf("unexpected record after reset: %+v", rec)
	}
}

func TestCompleteFromSentinelCompletedSetsCompletedAtNotFailedAt(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	s.Create("1", "x", "y", now)
	s.ClaimPending("1", "worker-1", now)

	if err := s.CompleteFromSentinel("1", StatusCompleted, "done well", "result text", now); err != nil {
		t.Fatalf("CompleteFromSentinel: %v", err)
	}
	rec := s.Read("1")
	if rec.Status != StatusCompleted {
		t.Errorf("status = %q", rec.Status)
	}
	if rec.CompletedAt == nil {
		t.Error("expected completedAt set")
	}
	if rec.FailedAt != nil {
		t.Error("expected failedAt unset")
	}
	if rec.Summary != "done well" {
		t.Errorf("summary = %q", rec.Summary)
	}
	// Other fields preserved.
	if rec.Owner == nil || *rec.Owner != "worker-1" {
		t.Errorf("expected owner preserved, got %+v", rec.Owner)
	}
}

func TestCompleteFromSentinelIdempotentAfterDeletion(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	s.Create("1", "x", "y", now)
	s.ClaimPending("1", "worker-1", now)
	s.CompleteFromSentinel("1", StatusCompleted, "s1", "r1", now)

	// Simulate "sentinel already deleted, reprocessing is a no-op": the
	// watchdog simply would not call this again, but if it did with the
	// same terminal status the record stays terminal and consistent.
	if err := s.CompleteFromSentinel("1", StatusCompleted, "s1", "r1", now); err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	rec := s.Read("1")
	if rec.Status != StatusCompleted {
		t.Errorf("status = %q after reapply", rec.Status)
	}
}

func TestFailDeadPane(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	s.Create("1", "x", "y", now)
	s.ClaimPending("1", "worker-1", now)

	if err := s.FailDeadPane("1", "worker-1", now); err != nil {
		t.Fatalf("FailDeadPane: %v", err)
	}
	rec := s.Read("1")
	if rec.Status != StatusFailed {
		t.Errorf("status = %q", rec.Status)
	}
	if rec.FailedAt == nil {
		t.Error("expected failedAt set")
	}
	want := "Worker pane died before done.json was written (worker: worker-1)"
	if rec.Summary != want {
		t.Errorf("summary = %q, want %q", rec.Summary, want)
	}
}

func TestConcurrentClaimsReturnNoError(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	s.Create("1", "x", "y", now)

	type result struct {
		ok  bool
		err error
	}
	results := make(chan result, 2)
	go func() {
		ok, err := s.ClaimPending("1", "worker-1", now)
		results <- result{ok, err}
	}()
	go func() {
		ok, err := s.ClaimPending("1", "worker-2", now)
		results <- result{ok, err}
	}()

	successCount := 0
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("unexpected error: %v", r.err)
		}
		if r.ok {
			successCount++
		}
	}
	// Note: the store itself performs no locking (spec §4.6: "the
	// scheduler is the only writer in practice, so the race is
	// acceptable"). In single-writer usage exactly one claim succeeds, but
	// two truly concurrent claims can both succeed, so this test only
	// checks that neither concurrent claim returns an error.
	_ = successCount
}
