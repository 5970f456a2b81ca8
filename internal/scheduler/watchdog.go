package scheduler

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/omc/teamctl/internal/events"
	"github.com/omc/teamctl/internal/monitor"
	"github.com/omc/teamctl/internal/tasks"
	"github.com/omc/teamctl/internal/teamstate"
)

// Tick runs one reconciliation pass (spec §4.7 "Watchdog tick"): for
// every active worker it checks the completion sentinel before pane
// liveness (spec §5 ordering guarantee — this prevents a slow completion
// write from being mistaken for a dead pane), then dispatches the next
// pending task into any slot that just freed up, and finally publishes an
// events.EventSnapshot on the configured Bus. It is single-flight: a
// tick already in progress causes a new call to return immediately
// without doing anything, matching the teacher's runCycle being driven
// by a ticker that can't itself overlap, plus an explicit guard for
// callers (tests, a manual "poke") that might invoke Tick concurrently.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	if s.tickRunning {
		s.mu.Unlock()
		return
	}
	s.tickRunning = true
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[watchdog] tick error: %v", r)
		}
		s.mu.Lock()
		s.tickRunning = false
		s.mu.Unlock()
	}()

	s.reconcile(ctx)
	s.notifyStalledWorkers()

	if s.allTerminal() {
		s.notifyFinishedOnce()
	}

	s.publishEvent(events.EventSnapshot, s.cfg.TeamName, nil)
}

// reconcile is the per-worker sentinel/liveness sweep.
func (s *Scheduler) reconcile(ctx context.Context) {
	for workerName, aw := range s.activeSnapshot() {
		donePath := teamstate.WorkerDonePath(s.cfg.Cwd, s.cfg.TeamName, workerName)
		if sentinel, ok := readDoneSentinel(donePath); ok {
			s.applySentinel(ctx, workerName, aw, sentinel, donePath)
			continue
		}

		dead, err := s.tmux.IsPaneDead(ctx, aw.paneID)
		if err != nil || !dead {
			continue
		}
		s.applyDeadPane(ctx, workerName, aw)
	}
}

func (s *Scheduler) applySentinel(ctx context.Context, workerName string, aw activeWorker, sentinel *doneSentinel, donePath string) {
	taskID := sentinel.TaskID
	if taskID == "" {
		taskID = aw.taskID // spec §7 SentinelMalformed fallback
	}
	status := sentinel.Status
	if status != tasks.StatusCompleted && status != tasks.StatusFailed {
		status = tasks.StatusFailed
	}

	now := time.Now()
	if err := s.store.CompleteFromSentinel(taskID, status, sentinel.Summary, "", now); err != nil {
		log.Printf("[watchdog] apply sentinel for task %s: %v", taskID, err)
	}
	_ = os.Remove(donePath)
	_ = s.tmux.KillPane(ctx, aw.paneID, s.leaderPaneID())
	s.removeActive(workerName)
	s.removePane(aw.paneID)
	s.publishPanes()
	s.publishEvent(events.EventTaskChanged, taskID, map[string]interface{}{
		"workerName": workerName, "status": string(status),
	})

	s.redispatchIfPending(ctx, workerName)
}

func (s *Scheduler) applyDeadPane(ctx context.Context, workerName string, aw activeWorker) {
	if err := s.store.FailDeadPane(aw.taskID, workerName, time.Now()); err != nil {
		log.Printf("[watchdog] mark dead-pane failure for task %s: %v", aw.taskID, err)
	}
	_ = s.tmux.KillPane(ctx, aw.paneID, s.leaderPaneID()) // idempotent
	s.removeActive(workerName)
	s.removePane(aw.paneID)
	s.publishPanes()
	s.publishEvent(events.EventWorkerChanged, workerName, map[string]interface{}{
		"alive": false, "taskId": aw.taskID,
	})

	s.redispatchIfPending(ctx, workerName)
}

// redispatchIfPending claims the next pending task (by id order) and
// spawns workerName for it, reusing the slot, unless every task is
// already terminal.
func (s *Scheduler) redispatchIfPending(ctx context.Context, workerName string) {
	if s.allTerminal() {
		return
	}
	idx := s.nextPendingTaskIndex()
	if idx < 0 {
		return
	}
	if err := s.spawnWorkerForTask(ctx, workerName, idx); err != nil {
		log.Printf("[watchdog] redispatch %s: %v", workerName, err)
	}
}

// allTerminal reports whether every task has reached completed or failed.
func (s *Scheduler) allTerminal() bool {
	for _, id := range s.taskIDs {
		rec := s.store.Read(id)
		if rec == nil || !rec.Status.IsTerminal() {
			return false
		}
	}
	return true
}

func (s *Scheduler) leaderPaneID() string {
	if s.sess == nil {
		return ""
	}
	return s.sess.LeaderPaneID
}

func (s *Scheduler) publishEvent(t events.EventType, target string, payload map[string]interface{}) {
	if s.cfg.Bus == nil {
		return
	}
	s.cfg.Bus.Publish(events.NewEvent(t, "scheduler", target, events.PriorityNormal, payload))
}

func (s *Scheduler) notifyStalledWorkers() {
	if s.cfg.Notifier == nil {
		return
	}
	for workerName, aw := range s.activeSnapshot() {
		_ = aw
		if s.isHeartbeatStale(workerName) && !s.alreadyNotifiedStalled(workerName) {
			_ = s.cfg.Notifier.NotifyWorkerStalled(s.cfg.TeamName, workerName)
			s.markNotifiedStalled(workerName)
		}
	}
}

func (s *Scheduler) isHeartbeatStale(workerName string) bool {
	data, err := os.ReadFile(teamstate.WorkerHeartbeatPath(s.cfg.Cwd, s.cfg.TeamName, workerName))
	if err != nil {
		return false
	}
	var hb monitor.Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return false
	}
	return time.Since(hb.UpdatedAt) > monitor.StaleAfter
}

func (s *Scheduler) notifyFinishedOnce() {
	if s.cfg.Notifier == nil || s.finishedNotified {
		return
	}
	s.finishedNotified = true
	completed, failed := 0, 0
	for _, id := range s.taskIDs {
		if rec := s.store.Read(id); rec != nil {
			switch rec.Status {
			case tasks.StatusCompleted:
				completed++
			case tasks.StatusFailed:
				failed++
			}
		}
	}
	_ = s.cfg.Notifier.NotifyTeamFinished(s.cfg.TeamName, completed, failed)
}

func (s *Scheduler) alreadyNotifiedStalled(workerName string) bool {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	if s.stalledNotified == nil {
		return false
	}
	return s.stalledNotified[workerName]
}

func (s *Scheduler) markNotifiedStalled(workerName string) {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	if s.stalledNotified == nil {
		s.stalledNotified = make(map[string]bool)
	}
	s.stalledNotified[workerName] = true
}

// PostToMailbox appends a message to the recipient worker's mailbox log
// (spec's supplemented mailbox fan-out in SPEC_FULL.md); a no-op when the
// scheduler wasn't configured with a mailbox store.
func (s *Scheduler) PostToMailbox(from, to, body string) error {
	if s.cfg.Mailbox == nil {
		return nil
	}
	return s.cfg.Mailbox.Send(from, to, body, time.Now())
}
