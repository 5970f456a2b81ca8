package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/omc/teamctl/internal/shutdown"
	"github.com/omc/teamctl/internal/teamstate"
)

const defaultGraceMs = 10000

// PaneKiller is the subset of the multiplexer adapter Cleanup needs: kill
// one worker pane, leader-guarded (spec invariant 7).
type PaneKiller interface {
	KillPane(ctx context.Context, paneID, leaderPaneID string) error
}

// Cleanup loads jobID's panes file, writes a shutdown sentinel under the
// team root, waits up to graceMs for worker acknowledgements, then
// force-kills every worker pane (never the leader) — spec §4.8 cleanup.
func (s *Supervisor) Cleanup(ctx context.Context, jobID string, graceMs int) (string, error) {
	if !jobIDPattern.MatchString(jobID) {
		return "", &InvalidJobIDError{JobID: jobID}
	}
	if s.killer == nil {
		return "", fmt.Errorf("cleanup requires a configured PaneKiller")
	}
	rec, err := s.record(jobID)
	if err != nil {
		return "", err
	}

	var pf PanesFile
	if err := readJSON(panesPath(s.jobsDir, jobID), &pf); err != nil {
		return fmt.Sprintf("job %s: no panes file found, nothing to clean up", jobID), nil
	}

	grace := graceMs
	if grace <= 0 {
		grace = defaultGraceMs
	}

	if err := writeShutdownSentinel(rec.Cwd, rec.TeamName); err != nil {
		return "", fmt.Errorf("write shutdown sentinel: %w", err)
	}

	workerPanes := make([]string, 0, len(pf.PaneIDs))
	for _, p := range pf.PaneIDs {
		if p != "" && p != pf.LeaderPaneID {
			workerPanes = append(workerPanes, p)
		}
	}

	acked, missing := waitForShutdownAcks(rec.Cwd, rec.TeamName, len(workerPanes), time.Duration(grace)*time.Millisecond)

	killed := 0
	for _, paneID := range workerPanes {
		if err := s.killer.KillPane(ctx, paneID, pf.LeaderPaneID); err != nil {
			continue
		}
		killed++
	}

	now := time.Now()
	if _, err := s.updateRecord(jobID, func(r *Record) {
		r.CleanedUpAt = &now
	}); err != nil {
		return "", err
	}

	return fmt.Sprintf("job %s cleaned up: %d/%d workers acked, %d panes killed", jobID, len(acked), len(acked)+len(missing), killed), nil
}

func writeShutdownSentinel(cwd, teamName string) error {
	path := teamstate.ShutdownPath(cwd, teamName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(shutdown.Request{RequestedAt: time.Now(), TeamName: teamName})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// waitForShutdownAcks polls worker-1..worker-N's shutdown-ack.json until
// all are present or timeout elapses. Worker count here is derived from
// the panes file (spec §4.8 cleanup operates independent of whether the
// team config is still readable), not the team's persisted config.
func waitForShutdownAcks(cwd, teamName string, expected int, timeout time.Duration) (acked, missing []string) {
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
		time.Sleep(500 * time.Millisecond)
	}
}
