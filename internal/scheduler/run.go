package scheduler

import (
	"context"
	"time"
)

// TaskResult summarizes one task's terminal outcome, for the scheduler
// runtime CLI's final stdout line (spec §6).
type TaskResult struct {
	TaskID  string `json:"taskId"`
	Status  string `json:"status"`
	Summary string `json:"summary"`
}

// Outcome is what Run returns once every task reaches a terminal status
// or the context is cancelled (shutdown).
type Outcome struct {
	Status      string       `json:"status"` // "completed" or "failed"
	TeamName    string       `json:"teamName"`
	TaskResults []TaskResult `json:"taskResults"`
	Duration    float64      `json:"duration"` // seconds
	WorkerCount int          `json:"workerCount"`
}

// Run drives the watchdog at the configured poll interval (spec §5: a
// periodic timer driving the watchdog at 1 Hz by default) until every
// task reaches a terminal status or ctx is cancelled. It runs an
// immediate tick before entering the ticker loop, the same shape as the
// teacher's Captain.Run.
func (s *Scheduler) Run(ctx context.Context) Outcome {
	start := time.Now()

	s.Tick(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	defer s.watcher.Close()

	dirty := s.watcher.Dirty()

loop:
	for {
		if s.allTerminal() {
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			s.Tick(ctx)
		case _, ok := <-dirty:
			if !ok {
				dirty = nil
				continue
			}
			// A sentinel changed; run the tick now instead of waiting
			// out the rest of PollInterval. The tick re-reads every
			// active worker's state itself, so which name arrived on
			// the channel doesn't matter.
			s.Tick(ctx)
		}
	}

	return s.buildOutcome(start)
}

func (s *Scheduler) buildOutcome(start time.Time) Outcome {
	results := make([]TaskResult, 0, len(s.taskIDs))
	for _, id := range s.taskIDs {
		rec := s.store.Read(id)
		if rec == nil {
			continue
		}
		results = append(results, TaskResult{TaskID: rec.ID, Status: string(rec.Status), Summary: rec.Summary})
	}

	// "completed" describes the scheduler run itself reaching every
	// task's terminal status, not that every task succeeded: a team
	// where some tasks ended failed is still "completed" per spec §7
	// ("the team is still considered completed if every task reaches a
	// terminal status, even if some failed"). "failed" here means the
	// run was cut short (ctx cancelled / shutdown) before that happened.
	status := "failed"
	if s.allTerminal() {
		status = "completed"
	}

	return Outcome{
		Status:      status,
		TeamName:    s.cfg.TeamName,
		TaskResults: results,
		Duration:    time.Since(start).Seconds(),
		WorkerCount: len(s.cfg.Tasks),
	}
}

// WorkerPaneIDs returns the current set of worker pane ids, in creation
// order, and the leader pane id — the shape the job supervisor's panes
// file needs (spec §3 PanesFile).
func (s *Scheduler) WorkerPaneIDs() (paneIDs []string, leaderPaneID string) {
	s.workersMu.Lock()
	paneIDs = append([]string{}, s.panes...)
	s.workersMu.Unlock()
	return paneIDs, s.leaderPaneID()
}

// SessionName returns "session:window" once Start has resolved the tmux
// context.
func (s *Scheduler) SessionName() string {
	if s.sess == nil {
		return ""
	}
	return s.sess.SessionName
}
