// Package shutdown implements the shutdown coordinator (spec §4.10): it
// writes the team-level shutdown sentinel, waits (bounded) for worker
// acknowledgements, force-kills whatever panes remain, and best-effort
// removes the team's state tree.
package shutdown

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/omc/teamctl/internal/teamstate"
)

// DefaultTimeout is the bound spec §4.10 names for shutdownTeam's own
// ack-wait step.
const DefaultTimeout = 30 * time.Second

const ackPollInterval = 500 * time.Millisecond

// Request is the on-disk shape of shutdown.json (spec §3).
type Request struct {
	RequestedAt time.Time `json:"requestedAt"`
	TeamName    string    `json:"teamName"`
}

// PaneKiller is the subset of the multiplexer adapter the coordinator
// needs: kill one pane (leader-guarded) or the whole session.
type PaneKiller interface {
	KillPane(ctx context.Context, paneID, leaderPaneID string) error
	KillSession(ctx context.Context, sessionName string) error
}

// Result reports what the coordinator actually did, for callers (the
// supervisor's cleanup op, the scheduler runtime CLI's signal handler)
// that want to log or return a summary.
type Result struct {
	AckedWorkers   []string
	MissingWorkers []string
	TimedOut       bool
	PanesKilled    int
	SessionKilled  bool
}

// Shutdown writes the shutdown sentinel, waits up to timeout for every
// worker's shutdown-ack.json, kills panes, and removes the team state
// tree. workerPaneIDs is the scheduler's current list of worker panes
// (its order is not used here); leaderPaneID is never passed to
// KillPane's target by name (spec invariant 7) — the loop skips it and
// PaneKiller.KillPane guards it again. Whether sessionName denotes a
// split-pane session ("session:window", contains ":") or a whole session
// to kill outright is decided from sessionName alone.
func Shutdown(ctx context.Context, killer PaneKiller, teamName, sessionName, cwd string, timeout time.Duration, workerPaneIDs []string, leaderPaneID string) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if err := writeSentinel(cwd, teamName); err != nil {
		return Result{}, fmt.Errorf("write shutdown sentinel: %w", err)
	}

	cfg, err := teamstate.ReadConfig(cwd, teamName)
	expectedWorkers := cfg.WorkerCount
	if err != nil || expectedWorkers <= 0 {
		expectedWorkers = len(workerPaneIDs)
	}

	acked, missing := waitForAcks(cwd, teamName, expectedWorkers, timeout)

	res := Result{AckedWorkers: acked, MissingWorkers: missing, TimedOut: len(missing) > 0}

	splitPaneMode := strings.Contains(sessionName, ":")
	if splitPaneMode {
		for _, paneID := range workerPaneIDs {
			if paneID == "" || paneID == leaderPaneID {
				continue
			}
			if err := killer.KillPane(ctx, paneID, leaderPaneID); err != nil {
				log.Printf("[shutdown] kill pane %s: %v", paneID, err)
				continue
			}
			res.PanesKilled++
		}
	} else {
		if err := killer.KillSession(ctx, sessionName); err != nil {
			log.Printf("[shutdown] kill session %s: %v", sessionName, err)
		} else {
			res.SessionKilled = true
		}
	}

	if err := os.RemoveAll(teamstate.Root(cwd, teamName)); err != nil {
		log.Printf("[shutdown] remove state tree for %s: %v", teamName, err)
	}

	return res, nil
}

func writeSentinel(cwd, teamName string) error {
	path := teamstate.ShutdownPath(cwd, teamName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(Request{RequestedAt: time.Now(), TeamName: teamName})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// waitForAcks polls every worker-<n>/shutdown-ack.json for 1..expected
// until all are present or timeout elapses, sleeping ackPollInterval
// between sweeps.
func waitForAcks(cwd, teamName string, expected int, timeout time.Duration) (acked, missing []string) {
	deadline := time.Now().Add(timeout)
	names := make([]string, expected)
	for i := 0; i < expected; i++ {
		names[i] = teamstate.WorkerName(i)
	}

	for {
		acked = acked[:0]
		missing = missing[:0]
		for _, name := range names {
			if _, err := os.Stat(teamstate.WorkerShutdownAckPath(cwd, teamName, name)); err == nil {
				acked = append(acked, name)
			} else {
				missing = append(missing, name)
			}
		}
		if len(missing) == 0 || time.Now().After(deadline) {
			return acked, missing
		}
		time.Sleep(ackPollInterval)
	}
}
