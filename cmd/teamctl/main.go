// Command teamctl is the scheduler runtime (spec §6): it reads one team
// start request as JSON on stdin, runs that team's worker lifecycle to
// completion against the attached tmux session, and prints the final
// outcome as JSON on stdout. It is the child process internal/jobs.Supervisor
// spawns for every background job, but it also runs standalone for
// interactive use from inside a tmux pane.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/omc/teamctl/internal/agentcontract"
	"github.com/omc/teamctl/internal/config"
	"github.com/omc/teamctl/internal/events"
	"github.com/omc/teamctl/internal/mailbox"
	"github.com/omc/teamctl/internal/monitor"
	"github.com/omc/teamctl/internal/monitor/httpapi"
	"github.com/omc/teamctl/internal/notifications"
	"github.com/omc/teamctl/internal/scheduler"
	"github.com/omc/teamctl/internal/shutdown"
	"github.com/omc/teamctl/internal/tmux"
)

// request is the JSON object read from stdin (spec §6 scheduler runtime
// CLI contract).
type request struct {
	TeamName       string   `json:"teamName"`
	AgentTypes     []string `json:"agentTypes"`
	Tasks          []task   `json:"tasks"`
	Cwd            string   `json:"cwd"`
	WorkerCount    int      `json:"workerCount,omitempty"`
	PollIntervalMs int      `json:"pollIntervalMs,omitempty"`
}

type task struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// panesFile mirrors internal/jobs.PanesFile; duplicated here rather than
// imported so this binary doesn't need to depend on the supervisor package
// just to write the one file it produces for it.
type panesFile struct {
	PaneIDs      []string `json:"paneIds"`
	LeaderPaneID string   `json:"leaderPaneId"`
}

func main() {
	req, err := readRequest(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "teamctl: %v\n", err)
		os.Exit(1)
	}

	defaults, err := config.Load(defaultsPath(req.Cwd))
	if err != nil {
		fmt.Fprintf(os.Stderr, "teamctl: load teamctl.yaml: %v\n", err)
		os.Exit(1)
	}

	cfg, err := buildConfig(req, defaults)
	if err != nil {
		fmt.Fprintf(os.Stderr, "teamctl: %v\n", err)
		os.Exit(1)
	}

	bus := events.NewBus()
	cfg.Bus = bus

	if toastNotifier := notifications.NewToastNotifier("teamctl"); toastNotifier.IsSupported() {
		cfg.Notifier = toastNotifier
	}

	if mboxStore, cleanup := setupMailbox(cfg.Cwd, cfg.TeamName); mboxStore != nil {
		cfg.Mailbox = mboxStore
		defer cleanup()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(cfg)

	jobID := os.Getenv("OMC_JOB_ID")
	jobsDir := os.Getenv("OMC_JOBS_DIR")
	if jobID != "" && jobsDir != "" {
		sched.OnPanesChanged(func(paneIDs []string, leaderPaneID string) {
			if err := writePanesFile(jobsDir, jobID, paneIDs, leaderPaneID); err != nil {
				log.Printf("[teamctl] write panes file: %v", err)
			}
		})
	}

	if addr := os.Getenv("OMC_HTTP_ADDR"); addr != "" {
		httpSrv := httpapi.New(addr, cfg.TeamName, func(teamName string) monitor.Snapshot {
			paneIDs, _ := sched.WorkerPaneIDs()
			workerPanes := make([]monitor.WorkerPane, 0, len(paneIDs))
			for i, p := range paneIDs {
				workerPanes = append(workerPanes, monitor.WorkerPane{WorkerName: fmt.Sprintf("worker-%d", i+1), PaneID: p})
			}
			ids := make([]string, len(cfg.Tasks))
			for i := range cfg.Tasks {
				ids[i] = strconv.Itoa(i + 1)
			}
			return monitor.Take(teamName, cfg.Cwd, ids, workerPanes, nil)
		}, bus)
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil {
				log.Printf("[teamctl] http snapshot server: %v", err)
			}
		}()
		defer httpSrv.Shutdown()
	}

	if err := sched.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "teamctl: start team %s: %v\n", cfg.TeamName, err)
		os.Exit(1)
	}

	go watchForShutdown(ctx, stop, sched, cfg)

	outcome := sched.Run(ctx)

	out, err := json.Marshal(outcome)
	if err != nil {
		fmt.Fprintf(os.Stderr, "teamctl: marshal outcome: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if outcome.Status != "completed" {
		os.Exit(1)
	}
}

// defaultsPath resolves the optional teamctl.yaml location: the team's
// working directory, the same place it would check in project config.
func defaultsPath(cwd string) string {
	return filepath.Join(cwd, "teamctl.yaml")
}

// setupMailbox optionally starts the embedded NATS server backing live
// mailbox fanout (spec_full MODULE EXPANSION "Mailbox fan-out"). Disabled
// unless OMC_MAILBOX_PORT is set, since most teams only need the durable
// JSONL log a mailbox.Store always writes regardless of fanout.
func setupMailbox(cwd, teamName string) (*mailbox.Store, func()) {
	noFanout := func() (*mailbox.Store, func()) {
		return mailbox.NewStore(cwd, teamName, nil), func() {}
	}

	portStr := os.Getenv("OMC_MAILBOX_PORT")
	if portStr == "" {
		return noFanout()
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Printf("[teamctl] invalid OMC_MAILBOX_PORT %q: %v", portStr, err)
		return noFanout()
	}
	srv, err := mailbox.NewEmbeddedServer(mailbox.EmbeddedServerConfig{Port: port})
	if err != nil {
		log.Printf("[teamctl] mailbox server config: %v", err)
		return noFanout()
	}
	if err := srv.Start(); err != nil {
		log.Printf("[teamctl] mailbox server start: %v", err)
		return noFanout()
	}
	client, err := mailbox.NewClient(srv.URL())
	if err != nil {
		log.Printf("[teamctl] mailbox client connect: %v", err)
		client = nil
	}
	return mailbox.NewStore(cwd, teamName, client), func() { srv.Shutdown() }
}

// watchForShutdown waits for ctx to be cancelled (by SIGINT/SIGTERM via
// signal.NotifyContext) and then runs the shutdown coordinator with a
// 2-second ack timeout; it does not call stop itself (spec §6: "on SIGINT/SIGTERM, attempt a 2-second graceful
// shutdown before exiting").
func watchForShutdown(ctx context.Context, stop context.CancelFunc, sched *scheduler.Scheduler, cfg scheduler.Config) {
	<-ctx.Done()
	// ctx is cancelled both by a received signal and, via the deferred
	// stop() in main, once Run has already returned normally; a shutdown
	// sweep against an already-finished run is harmless (every pane is
	// already gone or about to be reaped by the supervisor).
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	paneIDs, leaderPaneID := sched.WorkerPaneIDs()
	if _, err := shutdown.Shutdown(shutdownCtx, tmux.Get(), cfg.TeamName, sched.SessionName(), cfg.Cwd, 2*time.Second, paneIDs, leaderPaneID); err != nil {
		log.Printf("[teamctl] shutdown: %v", err)
	}
}

func readRequest(r io.Reader) (request, error) {
	var req request
	dec := json.NewDecoder(r)
	if err := dec.Decode(&req); err != nil {
		return request{}, fmt.Errorf("decode stdin request: %w", err)
	}
	if req.TeamName == "" {
		return request{}, fmt.Errorf("teamName is required")
	}
	if len(req.AgentTypes) == 0 {
		return request{}, fmt.Errorf("agentTypes must not be empty")
	}
	if len(req.Tasks) == 0 {
		return request{}, fmt.Errorf("tasks must not be empty")
	}
	if req.Cwd == "" {
		return request{}, fmt.Errorf("cwd is required")
	}
	return req, nil
}

// buildConfig merges the stdin request with teamctl.yaml defaults: the
// request's explicit fields always win, falling back to the project's
// defaults file and finally to config.DefaultDefaults.
func buildConfig(req request, defaults config.Defaults) (scheduler.Config, error) {
	agentTypes := make([]agentcontract.Type, len(req.AgentTypes))
	for i, s := range req.AgentTypes {
		t := agentcontract.Type(s)
		if _, err := agentcontract.Get(t); err != nil {
			return scheduler.Config{}, err
		}
		agentTypes[i] = t
	}

	tasks := make([]scheduler.Task, len(req.Tasks))
	for i, t := range req.Tasks {
		tasks[i] = scheduler.Task{Subject: t.Subject, Description: t.Description}
	}

	cfg := scheduler.Config{
		TeamName:     req.TeamName,
		WorkerCount:  req.WorkerCount,
		AgentTypes:   agentTypes,
		Tasks:        tasks,
		Cwd:          req.Cwd,
		PollInterval: defaults.PollInterval(),
		SpawnDelay:   defaults.WorkerSpawnDelay(),
		DefaultModel: defaults.DefaultModel,
	}
	if req.PollIntervalMs > 0 {
		cfg.PollInterval = time.Duration(req.PollIntervalMs) * time.Millisecond
	}
	return cfg, nil
}

// writePanesFile persists <jobsDir>/<jobID>-panes.json via write-temp-then-
// rename, the same atomicity pattern internal/jobs uses for job records.
func writePanesFile(jobsDir, jobID string, paneIDs []string, leaderPaneID string) error {
	if err := os.MkdirAll(jobsDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(panesFile{PaneIDs: paneIDs, LeaderPaneID: leaderPaneID}, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(jobsDir, jobID+"-panes.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
