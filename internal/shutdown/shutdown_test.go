package shutdown

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/omc/teamctl/internal/teamstate"
)

type fakeKiller struct {
	killedPanes []string
	killedSession string
	leaderKillAttempted bool
}

func (f *fakeKiller) KillPane(ctx context.Context, paneID, leaderPaneID string) error {
	if paneID == leaderPaneID {
		f.leaderKillAttempted = true
		return nil
	}
	f.killedPanes = append(f.killedPanes, paneID)
	return nil
}

func (f *fakeKiller) KillSession(ctx context.Context, sessionName string) error {
	f.killedSession = sessionName
	return nil
}

func TestShutdownAckTimeout(t *testing.T) {
	cwd := t.TempDir()
	teamName := "demo"

	if err := teamstate.WriteConfig(cwd, teamstate.TeamConfig{TeamName: teamName, WorkerCount: 3}); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	// Only 2 of 3 workers ack.
	for _, name := range []string{"worker-1", "worker-2"} {
		path := teamstate.WorkerShutdownAckPath(cwd, teamName, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	killer := &fakeKiller{}
	start := time.Now()
	res, err := Shutdown(context.Background(), killer, teamName, "session:0", cwd, 200*time.Millisecond,
		[]string{"%1", "%2", "%3"}, "%0")
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !res.TimedOut {
		t.Error("expected TimedOut=true with only 2/3 acks present")
	}
	if len(res.MissingWorkers) != 1 || res.MissingWorkers[0] != "worker-3" {
		t.Errorf("MissingWorkers = %v, want [worker-3]", res.MissingWorkers)
	}
	if elapsed < 200*time.Millisecond {
		t.Errorf("returned before timeout elapsed: %v", elapsed)
	}
	if len(killer.killedPanes) != 3 {
		t.Errorf("killedPanes = %v, want 3 panes killed", killer.killedPanes)
	}
	if killer.leaderKillAttempted {
		t.Error("leader pane should never be passed to KillPane as target")
	}
	if _, err := os.Stat(teamstate.Root(cwd, teamName)); !os.IsNotExist(err) {
		t.Error("expected team state tree to be removed after shutdown")
	}
}

func TestShutdownNonSplitPaneKillsSession(t *testing.T) {
	cwd := t.TempDir()
	teamName := "demo2"
	if err := teamstate.WriteConfig(cwd, teamstate.TeamConfig{TeamName: teamName, WorkerCount: 0}); err != nil {
		t.Fatal(err)
	}

	killer := &fakeKiller{}
	res, err := Shutdown(context.Background(), killer, teamName, "demo2-session", cwd, 50*time.Millisecond, nil, "")
	if err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !res.SessionKilled || killer.killedSession != "demo2-session" {
		t.Errorf("expected whole session kill, got %+v", killer)
	}
	if len(killer.killedPanes) != 0 {
		t.Errorf("expected no individual pane kills, got %v", killer.killedPanes)
	}
}
