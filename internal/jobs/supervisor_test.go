package jobs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/omc/teamctl/internal/jobindex"
)

func echoFactory(jsonLine string) CommandFactory {
	return func(ctx context.Context, requestJSON []byte) (*exec.Cmd, error) {
		script := "cat >/dev/null; echo '" + jsonLine + "'"
		cmd := exec.CommandContext(ctx, "sh", "-c", script)
		return cmd, nil
	}
}

func TestStartAndWaitCompletes(t *testing.T) {
	dir := t.TempDir()
	sup, err := New(Config{
		JobsDir: dir,
		Factory: echoFactory(`{"status":"completed","teamName":"demo","workerCount":1}`),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := StartRequest{
		TeamName:   "demo",
		AgentTypes: []string{"codex"},
		Tasks:      []Task{{Subject: "s", Description: "d"}},
		Cwd:        dir,
	}
	started, err := sup.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !jobIDPattern.MatchString(started.JobID) {
		t.Fatalf("job id %q does not match pattern", started.JobID)
	}
	if started.PID == 0 {
		t.Fatal("expected nonzero pid")
	}

	waited, err := sup.Wait(context.Background(), started.JobID, WaitOptions{TimeoutMs: 5000})
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if waited.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", waited.Status)
	}
	if waited.TimedOut {
		t.Fatal("did not expect a timeout")
	}

	status, err := sup.Status(started.JobID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status != StatusCompleted {
		t.Fatalf("Status() = %s, want completed", status.Status)
	}
}

func TestStartFallsBackToExitCodeOnMalformedOutput(t *testing.T) {
	dir := t.TempDir()
	sup, err := New(Config{JobsDir: dir, Factory: echoFactory(`not json`)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := StartRequest{TeamName: "demo", AgentTypes: []string{"codex"}, Tasks: []Task{{Subject: "s"}}, Cwd: dir}
	started, err := sup.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waited, err := sup.Wait(context.Background(), started.JobID, WaitOptions{TimeoutMs: 5000})
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	// "echo" exits 0 regardless of payload, so the exit-code fallback says completed.
	if waited.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed (exit-code fallback)", waited.Status)
	}
}

func TestStatusRejectsMalformedJobID(t *testing.T) {
	dir := t.TempDir()
	sup, err := New(Config{JobsDir: dir, Factory: echoFactory(`{}`)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := sup.Status("not-a-valid-id!!"); err == nil {
		t.Fatal("expected an error for a malformed job id")
	}
}

func TestStartRejectsEmptyTasks(t *testing.T) {
	dir := t.TempDir()
	sup, err := New(Config{JobsDir: dir, Factory: echoFactory(`{}`)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := StartRequest{TeamName: "demo", AgentTypes: []string{"codex"}, Cwd: dir}
	if _, err := sup.Start(context.Background(), req); err == nil {
		t.Fatal("expected an error for an empty task list")
	}
}

func TestStartRejectsBlankTaskSubject(t *testing.T) {
	dir := t.TempDir()
	sup, err := New(Config{JobsDir: dir, Factory: echoFactory(`{}`)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := StartRequest{
		TeamName:   "demo",
		AgentTypes: []string{"codex"},
		Tasks:      []Task{{Subject: "   ", Description: "fill in later"}},
		Cwd:        dir,
	}
	if _, err := sup.Start(context.Background(), req); err == nil {
		t.Fatal("expected an error for a whitespace-only task subject")
	}
}

func TestWaitReportsOrphanPidAsFailedWithError(t *testing.T) {
	dir := t.TempDir()
	sup, err := New(Config{JobsDir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	deadPID := deadPIDForTest(t)
	jobID := "omc-orphan1"
	sup.jobs[jobID] = &entry{rec: Record{
		JobID:     jobID,
		Status:    StatusRunning,
		StartedAt: time.Now(),
		PID:       deadPID,
		TeamName:  "demo",
		Cwd:       dir,
	}}
	if err := writeJSONAtomic(recordPath(dir, jobID), sup.jobs[jobID].rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	waited, err := sup.Wait(context.Background(), jobID, WaitOptions{TimeoutMs: 5000})
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if waited.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", waited.Status)
	}
	if waited.Error == "" {
		t.Fatal("expected WaitResult.Error to be populated for an orphaned pid")
	}
}

func deadPIDForTest(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	return cmd.Process.Pid
}

func TestNewSweepsOrphanedRunningJobsFromIndex(t *testing.T) {
	dir := t.TempDir()
	idx, err := jobindex.Open(filepath.Join(dir, "jobs.sqlite"))
	if err != nil {
		t.Fatalf("jobindex.Open: %v", err)
	}
	defer idx.Close()

	deadPID := deadPIDForTest(t)
	jobID := "omc-orphan2"
	rec := Record{JobID: jobID, Status: StatusRunning, StartedAt: time.Now(), PID: deadPID, TeamName: "demo", Cwd: dir}
	if err := writeJSONAtomic(recordPath(dir, jobID), rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	if err := idx.Upsert(jobindex.Row{JobID: jobID, TeamName: "demo", Status: "running", PID: deadPID, StartedAt: rec.StartedAt}); err != nil {
		t.Fatalf("seed index row: %v", err)
	}

	if _, err := New(Config{JobsDir: dir, Index: idx}); err != nil {
		t.Fatalf("New: %v", err)
	}

	var got Record
	if err := readJSON(recordPath(dir, jobID), &got); err != nil {
		t.Fatalf("read swept record: %v", err)
	}
	if got.Status != StatusFailed {
		t.Fatalf("status = %s, want failed after orphan sweep", got.Status)
	}
}

func TestProcessAliveDetectsExitedProcess(t *testing.T) {
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	pid := cmd.Process.Pid
	if processAlive(pid) {
		t.Errorf("expected exited pid %d to be reported dead", pid)
	}
	if !processAlive(os.Getpid()) {
		t.Error("expected the current test process to be reported alive")
	}
}

func TestNextPollDelayBackoffCapsAt2000ms(t *testing.T) {
	delay := initialPollDelay
	seen := []time.Duration{delay}
	for i := 0; i < 10; i++ {
		delay = nextPollDelay(delay)
		seen = append(seen, delay)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("poll delay decreased: %v -> %v", seen[i-1], seen[i])
		}
		if seen[i] > maxPollDelay {
			t.Fatalf("poll delay %v exceeds cap %v", seen[i], maxPollDelay)
		}
	}
	if seen[len(seen)-1] != maxPollDelay {
		t.Fatalf("expected backoff to settle at the 2s cap, got %v", seen[len(seen)-1])
	}
}
