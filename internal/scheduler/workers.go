package scheduler

import (
	"github.com/omc/teamctl/internal/tmux"
)

// recordActive registers workerName as holding taskID in paneID (spec §3
// "Active worker").
func (s *Scheduler) recordActive(workerName, paneID, taskID string) {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	s.workers[workerName] = &activeWorker{paneID: paneID, taskID: taskID}
}

// removeActive drops workerName from the active set.
func (s *Scheduler) removeActive(workerName string) {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	delete(s.workers, workerName)
}

// activeSnapshot returns an unordered copy of the active worker map, safe
// to range over without holding the lock.
func (s *Scheduler) activeSnapshot() map[string]activeWorker {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	out := make(map[string]activeWorker, len(s.workers))
	for name, w := range s.workers {
		out[name] = *w
	}
	return out
}

// paneCount reports how many worker panes are currently tracked. s.panes
// holds the live worker panes in creation order (removePane drops killed
// ones), so lastPane is "the last existing pane" per spec §4.7 and the
// job supervisor's panes file reflects dispatch order (spec §5).
func (s *Scheduler) paneCount() int {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	return len(s.paneOrderLocked())
}

func (s *Scheduler) paneOrderLocked() []string {
	return s.panes
}

func (s *Scheduler) lastPane() string {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	if len(s.panes) == 0 {
		return ""
	}
	return s.panes[len(s.panes)-1]
}

func (s *Scheduler) appendPane(paneID string) {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	s.panes = append(s.panes, paneID)
}

// removePane drops paneID from the tracked set, so both lastPane (the
// next split target) and the publish list (publishPanes) only see panes
// that have not been killed.
func (s *Scheduler) removePane(paneID string) {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	for i, p := range s.panes {
		if p == paneID {
			s.panes = append(s.panes[:i], s.panes[i+1:]...)
			return
		}
	}
}

// publishPanes invokes the registered OnPanesChanged callback, if any,
// with the current pane set.
func (s *Scheduler) publishPanes() {
	if s.panesChanged == nil {
		return
	}
	s.workersMu.Lock()
	panes := append([]string{}, s.panes...)
	s.workersMu.Unlock()
	leader := ""
	if s.sess != nil {
		leader = s.sess.LeaderPaneID
	}
	s.panesChanged(panes, leader)
}

func launchSpec(argv []string, env map[string]string) tmux.LaunchSpec {
	return tmux.LaunchSpec{Argv: argv, Env: env}
}
