// Package monitor produces a point-in-time view of team state (spec
// §4.9): task counts by status, per-worker liveness/staleness, and a
// derived phase classification, for supervisor status/wait calls and the
// optional httpapi websocket surface to consume.
package monitor

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/omc/teamctl/internal/tasks"
	"github.com/omc/teamctl/internal/teamstate"
)

// StaleAfter is the heartbeat age spec §3/§4.9 treats as stale.
const StaleAfter = 60 * time.Second

// Phase is the team's coarse lifecycle phase (spec §4.9).
type Phase string

const (
	PhasePlanning Phase = "planning"
	PhaseExecuting Phase = "executing"
	PhaseFixing   Phase = "fixing"
	PhaseCompleted Phase = "completed"
)

// TaskCounts tallies task records by status.
type TaskCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Total returns the sum of every bucket.
func (c TaskCounts) Total() int {
	return c.Pending + c.InProgress + c.Completed + c.Failed
}

// Heartbeat is the on-disk shape of workers/<name>/heartbeat.json.
type Heartbeat struct {
	WorkerName    string    `json:"workerName"`
	Status        string    `json:"status"`
	UpdatedAt     time.Time `json:"updatedAt"`
	CurrentTaskID *string   `json:"currentTaskId"`
}

// WorkerView is the monitor's per-worker report.
type WorkerView struct {
	WorkerName    string  `json:"workerName"`
	Alive         bool    `json:"alive"`
	PaneID        string  `json:"paneId"`
	CurrentTaskID *string `json:"currentTaskId,omitempty"`
	LastHeartbeat *time.Time `json:"lastHeartbeat,omitempty"`
	Stalled       bool    `json:"stalled"`
}

// Timing is the scan duration breakdown (spec §4.9).
type Timing struct {
	TaskScanMs   int64 `json:"taskScanMs"`
	WorkerScanMs int64 `json:"workerScanMs"`
	TotalMs      int64 `json:"totalMs"`
}

// Snapshot is the monitor's immutable view of team state at a moment in
// time.
type Snapshot struct {
	ID          string       `json:"id"`
	TeamName    string       `json:"teamName"`
	TakenAt     time.Time    `json:"takenAt"`
	TaskCounts  TaskCounts   `json:"taskCounts"`
	Workers     []WorkerView `json:"workers"`
	DeadWorkers []string     `json:"deadWorkers"`
	Phase       Phase        `json:"phase"`
	Timing      Timing       `json:"timing"`
}

// LivenessProbe is the subset of tmux the monitor needs to determine
// whether a worker's pane is alive; declared locally so tests can fake it
// without spawning tmux.
type LivenessProbe func(paneID string) bool

// WorkerPane pairs a worker name with the pane id the scheduler recorded
// for it, the minimal join key between task ownership and pane liveness.
type WorkerPane struct {
	WorkerName string
	PaneID     string
}

// Take scans the team's state tree under cwd and builds a Snapshot. ids is
// every task id the team was started with (1..N); workerPanes is the
// scheduler's current worker -> pane mapping (spec §3 "Active worker").
// alive may be nil, in which case every worker pane is assumed alive
// (used by callers, like the supervisor's status/wait path, that don't
// hold a live tmux handle).
func Take(teamName, cwd string, ids []string, workerPanes []WorkerPane, alive LivenessProbe) Snapshot {
	start := time.Now()

	store := tasks.NewStore(cwd, teamName)
	taskScanStart := time.Now()
	records := store.List(ids)
	taskScanMs := time.Since(taskScanStart).Milliseconds()

	var counts TaskCounts
	for _, rec := range records {
		switch rec.Status {
		case tasks.StatusPending:
			counts.Pending++
		case tasks.StatusInProgress:
			counts.InProgress++
		case tasks.StatusCompleted:
			counts.Completed++
		case tasks.StatusFailed:
			counts.Failed++
		}
	}

	ownerTask := make(map[string]string, len(records))
	for _, rec := range records {
		if rec.Owner != nil {
			ownerTask[*rec.Owner] = rec.ID
		}
	}

	workerScanStart := time.Now()
	workers := make([]WorkerView, 0, len(workerPanes))
	var dead []string
	for _, wp := range workerPanes {
		view := WorkerView{WorkerName: wp.WorkerName, PaneID: wp.PaneID}

		if alive != nil {
			view.Alive = alive(wp.PaneID)
		} else {
			view.Alive = true
		}
		if !view.Alive {
			dead = append(dead, wp.WorkerName)
		}

		if taskID, ok := ownerTask[wp.WorkerName]; ok {
			id := taskID
			view.CurrentTaskID = &id
		}

		if hb, ok := readHeartbeat(cwd, teamName, wp.WorkerName); ok {
			view.LastHeartbeat = &hb.UpdatedAt
			view.Stalled = time.Since(hb.UpdatedAt) > StaleAfter
		}

		workers = append(workers, view)
	}
	workerScanMs := time.Since(workerScanStart).Milliseconds()

	return Snapshot{
		ID:          uuid.NewString(),
		TeamName:    teamName,
		TakenAt:     start,
		TaskCounts:  counts,
		Workers:     workers,
		DeadWorkers: dead,
		Phase:       classifyPhase(counts),
		Timing: Timing{
			TaskScanMs:   taskScanMs,
			WorkerScanMs: workerScanMs,
			TotalMs:      time.Since(start).Milliseconds(),
		},
	}
}

// classifyPhase implements the phase table in spec §4.9 exactly.
func classifyPhase(c TaskCounts) Phase {
	switch {
	case c.Completed+c.Failed == c.Total() && c.Failed == 0:
		return PhaseCompleted
	case c.Pending == 0 && c.InProgress == 0 && c.Failed > 0:
		return PhaseFixing
	case c.InProgress == 0 && c.Completed == 0 && c.Pending > 0:
		return PhasePlanning
	default:
		return PhaseExecuting
	}
}

func readHeartbeat(cwd, teamName, workerName string) (Heartbeat, bool) {
	data, err := os.ReadFile(teamstate.WorkerHeartbeatPath(cwd, teamName, workerName))
	if err != nil {
		return Heartbeat{}, false
	}
	var hb Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return Heartbeat{}, false
	}
	return hb, true
}
