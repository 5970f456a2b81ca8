// Package scheduler is the team runtime (spec §4.7): it owns the set of
// active workers, dispatches pending tasks to free worker slots, and
// drives a periodic reconciliation watchdog that detects completion
// sentinels and dead panes. The orchestration loop itself is grounded on
// the teacher's internal/captain.Captain.Run ticker-driven cycle
// (time.NewTicker + an immediate first cycle + ctx.Done() to stop), with
// the in-flight guard and failure isolation the teacher's runCycle does
// not need because this scheduler's cycle talks to an external terminal
// multiplexer, not in-process state.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/omc/teamctl/internal/agentcontract"
	"github.com/omc/teamctl/internal/bootstrap"
	"github.com/omc/teamctl/internal/events"
	"github.com/omc/teamctl/internal/mailbox"
	"github.com/omc/teamctl/internal/notifications"
	"github.com/omc/teamctl/internal/submit"
	"github.com/omc/teamctl/internal/tasks"
	"github.com/omc/teamctl/internal/teamname"
	"github.com/omc/teamctl/internal/teamstate"
	"github.com/omc/teamctl/internal/tmux"
)

// Task is one task input within a team's start request.
type Task struct {
	Subject     string
	Description string
}

// Config is startTeam's input (spec §4.7).
type Config struct {
	TeamName       string
	WorkerCount    int // advisory only, per spec §9 Open Question; concurrency is capped by the number of distinct AgentTypes
	AgentTypes     []agentcontract.Type
	Tasks          []Task
	Cwd            string
	PollInterval   time.Duration
	SpawnDelay     time.Duration
	BootstrapExtra string
	DefaultModel   string
	ExtraFlags     []string

	// Bus and Notifier are both optional ambient observability hooks;
	// a nil Bus or Notifier is simply not published/notified to.
	Bus      *events.Bus
	Notifier Notifier
	Mailbox  *mailbox.Store

	// Validate probes one agent family for availability before Start
	// dispatches any worker of that type. Defaults to
	// agentcontract.ValidateOrFail (which execs "<binary> --version");
	// tests inject a stub so Start doesn't depend on a real CLI being
	// installed on the machine running them.
	Validate func(ctx context.Context, t agentcontract.Type) error
}

// Notifier is the subset of notifications.ToastNotifier the scheduler
// drives on terminal transitions; declared as an interface so tests don't
// need a real toast backend.
type Notifier interface {
	NotifyWorkerStalled(teamName, workerName string) error
	NotifyTeamFinished(teamName string, completed, failed int) error
}

var _ Notifier = (*notifications.ToastNotifier)(nil)

// activeWorker is the scheduler's in-memory record of a worker currently
// holding a task (spec §3 "Active worker").
type activeWorker struct {
	paneID    string
	taskID    string
	spawnedAt time.Time
}

// Scheduler runs one team's worker lifecycle to completion.
type Scheduler struct {
	cfg   Config
	tmux  Multiplexer
	store *tasks.Store
	sub   *submit.Submitter

	mu      sync.Mutex
	tickRunning bool

	workersMu       sync.Mutex
	workers         map[string]*activeWorker // workerName -> active worker
	panes           []string                 // live worker panes, in creation order
	stalledNotified map[string]bool

	finishedNotified bool

	sess *tmux.Session

	// watcher is the optional fsnotify accelerant (spec_full domain-stack
	// wiring): when non-nil, a worker's sentinel write wakes Run's poll
	// loop early instead of waiting out the remainder of PollInterval.
	// The 1 Hz poll remains the correctness backstop regardless.
	watcher *teamstate.Watcher

	taskIDs []string

	// panesChanged is called whenever the active worker-pane set changes,
	// so the scheduler runtime CLI can persist <jobId>-panes.json (spec §6).
	panesChanged func(paneIDs []string, leaderPaneID string)
}

// New constructs a Scheduler against the real tmux adapter. Callers must
// call Start before Run.
func New(cfg Config) *Scheduler {
	return NewWithMultiplexer(cfg, tmux.Get())
}

// NewWithMultiplexer constructs a Scheduler against an injected
// Multiplexer, letting tests supply a fake instead of spawning real tmux
// processes.
func NewWithMultiplexer(cfg Config, mux Multiplexer) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.SpawnDelay <= 0 {
		cfg.SpawnDelay = 4 * time.Second
	}
	if cfg.Validate == nil {
		cfg.Validate = agentcontract.ValidateOrFail
	}
	submitMux, _ := mux.(submit.Multiplexer)
	var sub *submit.Submitter
	if submitMux != nil {
		sub = submit.New(submitMux)
	}
	return &Scheduler{
		cfg:     cfg,
		tmux:    mux,
		store:   tasks.NewStore(cfg.Cwd, cfg.TeamName),
		sub:     sub,
		workers: make(map[string]*activeWorker),
	}
}

// OnPanesChanged registers a callback invoked with the current set of
// worker pane ids (plus the leader pane id) whenever it changes. Used by
// the scheduler runtime CLI to maintain <jobId>-panes.json.
func (s *Scheduler) OnPanesChanged(fn func(paneIDs []string, leaderPaneID string)) {
	s.panesChanged = fn
}

// Start performs the startup sequence (spec §4.7 steps 1-6): validates
// the team name, probes every distinct agent type, creates the team root
// and task records, writes worker overlays, creates the tmux session, and
// dispatches the first wave of workers. It does not start the watchdog;
// call Run for that.
func (s *Scheduler) Start(ctx context.Context) error {
	teamName, err := teamname.Validate(s.cfg.TeamName)
	if err != nil {
		return err
	}
	s.cfg.TeamName = teamName

	for _, t := range distinctAgentTypes(s.cfg.AgentTypes) {
		if err := s.cfg.Validate(ctx, t); err != nil {
			return err
		}
	}

	now := time.Now()
	s.taskIDs = make([]string, len(s.cfg.Tasks))
	for i, task := range s.cfg.Tasks {
		id := fmt.Sprintf("%d", i+1)
		s.taskIDs[i] = id
		if err := s.store.Create(id, task.Subject, task.Description, now); err != nil {
			return fmt.Errorf("create task %s: %w", id, err)
		}
	}

	if err := teamstate.WriteConfig(s.cfg.Cwd, teamstate.TeamConfig{
		TeamName:    teamName,
		AgentTypes:  agentTypeStrings(s.cfg.AgentTypes),
		WorkerCount: len(s.cfg.Tasks),
		TaskCount:   len(s.cfg.Tasks),
		Cwd:         s.cfg.Cwd,
		CreatedAt:   now,
	}); err != nil {
		return fmt.Errorf("write team config: %w", err)
	}

	allTasks := make([]bootstrap.TaskRef, len(s.cfg.Tasks))
	for i, task := range s.cfg.Tasks {
		allTasks[i] = bootstrap.TaskRef{ID: s.taskIDs[i], Subject: task.Subject}
	}
	for i := range s.cfg.Tasks {
		workerName := teamstate.WorkerName(i)
		overlay := bootstrap.RenderOverlay(bootstrap.OverlayParams{
			TeamName:       teamName,
			WorkerName:     workerName,
			AllTasks:       allTasks,
			BootstrapExtra: s.cfg.BootstrapExtra,
		})
		if err := writeFile(teamstate.WorkerOverlayPath(s.cfg.Cwd, teamName, workerName), overlay); err != nil {
			return fmt.Errorf("write overlay for %s: %w", workerName, err)
		}
	}

	sess, err := s.tmux.ResolveSession(ctx)
	if err != nil {
		return err
	}
	if err := s.tmux.EnableMouseAndFocus(ctx, sess); err != nil {
		return err
	}
	s.sess = sess

	if w, err := teamstate.NewWatcher(s.cfg.Cwd, teamName); err != nil {
		log.Printf("[scheduler] fsnotify unavailable, falling back to poll-only: %v", err)
	} else {
		s.watcher = w
		go w.Run(ctx)
	}

	concurrency := len(distinctAgentTypes(s.cfg.AgentTypes))
	if concurrency <= 0 {
		concurrency = 1
	}
	for i := 0; i < concurrency && i < len(s.taskIDs); i++ {
		workerName := teamstate.WorkerName(i)
		if err := s.spawnWorkerForTask(ctx, workerName, i); err != nil {
			log.Printf("[scheduler] initial dispatch of %s failed: %v", workerName, err)
		}
	}

	return nil
}

// distinctAgentTypes returns the unique agent types in order of first
// appearance.
func distinctAgentTypes(types []agentcontract.Type) []agentcontract.Type {
	seen := make(map[agentcontract.Type]bool)
	var out []agentcontract.Type
	for _, t := range types {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func agentTypeStrings(types []agentcontract.Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
