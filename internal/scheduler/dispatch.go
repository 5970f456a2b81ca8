package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/omc/teamctl/internal/agentcontract"
	"github.com/omc/teamctl/internal/bootstrap"
	"github.com/omc/teamctl/internal/tasks"
	"github.com/omc/teamctl/internal/teamstate"
)

// WorkerNotifyFailedError is raised when the scheduler cannot get the
// initial task instruction into a freshly spawned worker's pane (spec §7
// WorkerNotifyFailed): the task has already been reset to pending and the
// pane already killed by the time this is returned.
type WorkerNotifyFailedError struct {
	WorkerName string
	Phase      string // "trust-confirm" or "initial-inbox"
}

func (e *WorkerNotifyFailedError) Error() string {
	return fmt.Sprintf("worker_notify_failed:%s:%s", e.WorkerName, e.Phase)
}

// nextPendingTaskIndex returns the index (into s.taskIDs) of the
// lowest-id pending task, or -1 if none remain.
func (s *Scheduler) nextPendingTaskIndex() int {
	for i, id := range s.taskIDs {
		rec := s.store.Read(id)
		if rec != nil && rec.Status == tasks.StatusPending {
			return i
		}
	}
	return -1
}

// spawnWorkerForTask is the critical section described in spec §4.7: it
// claims taskIdx's task, creates a pane, writes the inbox, spawns the
// agent, and — for interactive families — hands it the initial
// instruction via the pane-input submitter.
func (s *Scheduler) spawnWorkerForTask(ctx context.Context, workerName string, taskIdx int) error {
	taskID := s.taskIDs[taskIdx]

	claimed, err := s.store.ClaimPending(taskID, workerName, time.Now())
	if err != nil {
		return fmt.Errorf("claim task %s: %w", taskID, err)
	}
	if !claimed {
		return nil
	}

	vertical := s.paneCount() > 0
	fromPane := s.lastPane()
	if fromPane == "" {
		fromPane = s.sess.LeaderPaneID
	}
	paneID, err := s.tmux.SplitPane(ctx, fromPane, vertical, s.cfg.Cwd)
	if err != nil {
		_ = s.store.ResetToPending(taskID)
		return fmt.Errorf("split pane for %s: %w", workerName, err)
	}

	workerIdx := workerIndexFromName(workerName)
	agentType := agentcontract.ForIndex(s.cfg.AgentTypes, workerIdx)

	inboxPath := teamstate.WorkerInboxPath(s.cfg.Cwd, s.cfg.TeamName, workerName)
	task := s.cfg.Tasks[taskIdx]
	inboxDoc := bootstrap.RenderInbox(bootstrap.InboxParams{
		TaskID:           taskID,
		WorkerName:       workerName,
		Subject:          task.Subject,
		Description:      task.Description,
		DoneSentinelPath: teamstate.WorkerDonePath(s.cfg.Cwd, s.cfg.TeamName, workerName),
	})
	if err := writeFile(inboxPath, inboxDoc); err != nil {
		_ = s.store.ResetToPending(taskID)
		_ = s.tmux.KillPane(ctx, paneID, s.sess.LeaderPaneID)
		return fmt.Errorf("write inbox for %s: %w", workerName, err)
	}

	argv, err := agentcontract.BuildArgv(agentType, s.cfg.DefaultModel, s.cfg.ExtraFlags)
	if err != nil {
		_ = s.store.ResetToPending(taskID)
		_ = s.tmux.KillPane(ctx, paneID, s.sess.LeaderPaneID)
		return fmt.Errorf("build argv for %s: %w", workerName, err)
	}
	contract, err := agentcontract.Get(agentType)
	if err != nil {
		_ = s.store.ResetToPending(taskID)
		_ = s.tmux.KillPane(ctx, paneID, s.sess.LeaderPaneID)
		return err
	}
	if contract.PromptMode.Supported {
		argv = append(argv, contract.PromptArgs(bootstrap.InitialInboxMessage(inboxPath))...)
	}

	spec := launchSpec(argv, agentcontract.Env(s.cfg.TeamName, workerName, agentType))
	if err := s.tmux.SpawnWorkerInPane(ctx, paneID, spec); err != nil {
		_ = s.store.ResetToPending(taskID)
		_ = s.tmux.KillPane(ctx, paneID, s.sess.LeaderPaneID)
		return fmt.Errorf("spawn %s into pane: %w", workerName, err)
	}

	s.recordActive(workerName, paneID, taskID)
	s.appendPane(paneID)
	s.publishPanes()
	s.watcher.AddWorker(workerName)

	if err := s.tmux.ApplyMainVerticalLayout(ctx, s.sess); err != nil {
		// Non-fatal: a layout glitch doesn't invalidate a worker that's
		// already spawned.
	}

	if contract.NeedsPaneNotify() {
		time.Sleep(s.cfg.SpawnDelay)

		if contract.NeedsTrustConfirm() {
			if !s.sub.NotifyPaneWithRetry(ctx, paneID, "1") {
				s.abandonDispatch(ctx, workerName, taskID, paneID)
				return &WorkerNotifyFailedError{WorkerName: workerName, Phase: "trust-confirm"}
			}
			time.Sleep(800 * time.Millisecond)
		}

		message := bootstrap.InitialInboxMessage(inboxPath)
		if !s.sub.NotifyPaneWithRetry(ctx, paneID, message) {
			s.abandonDispatch(ctx, workerName, taskID, paneID)
			return &WorkerNotifyFailedError{WorkerName: workerName, Phase: "initial-inbox"}
		}
	}

	return nil
}

// abandonDispatch implements the WorkerNotifyFailed recovery: reset the
// task to pending, kill the pane, and drop the worker from the active
// set so the next tick can try again (spec §4.7 failure semantics).
func (s *Scheduler) abandonDispatch(ctx context.Context, workerName, taskID, paneID string) {
	_ = s.store.ResetToPending(taskID)
	_ = s.tmux.KillPane(ctx, paneID, s.sess.LeaderPaneID)
	s.removeActive(workerName)
	s.removePane(paneID)
	s.publishPanes()
}

func workerIndexFromName(workerName string) int {
	var idx int
	if _, err := fmt.Sscanf(workerName, "worker-%d", &idx); err != nil {
		return 0
	}
	return idx - 1
}
