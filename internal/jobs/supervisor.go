package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/omc/teamctl/internal/agentcontract"
	"github.com/omc/teamctl/internal/jobindex"
	"github.com/omc/teamctl/internal/stringutils"
	"github.com/omc/teamctl/internal/submit"
	"github.com/omc/teamctl/internal/teamname"
)

var jobIDPattern = regexp.MustCompile(`^omc-[a-z0-9]{1,12}$`)

// InvalidJobIDError is returned when a caller-supplied job id fails the
// `^omc-[a-z0-9]{1,12}$` pattern (spec §4.8 status).
type InvalidJobIDError struct{ JobID string }

func (e *InvalidJobIDError) Error() string {
	return fmt.Sprintf("invalid job id %q", e.JobID)
}

// NotFoundError is returned when a job id is well-formed but unknown, both
// in memory and on disk.
type NotFoundError struct{ JobID string }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("job %q not found", e.JobID)
}

// entry is the Supervisor's in-memory bookkeeping for one job: the
// persisted Record plus (while running) the live child process handle.
type entry struct {
	mu    sync.Mutex
	rec   Record
	child *childProcess
}

// Supervisor is the background job supervisor (C8): it runs the scheduler
// runtime as a child process, persists job metadata, and answers
// start/status/wait/cleanup.
type Supervisor struct {
	jobsDir string
	factory CommandFactory
	mux     submit.Multiplexer
	killer  PaneKiller
	index   *jobindex.Index

	mu      sync.Mutex
	jobs    map[string]*entry
	nudgers map[string]*idleNudger
}

// Config configures a Supervisor.
type Config struct {
	JobsDir string
	Factory CommandFactory
	Mux     submit.Multiplexer // optional: enables the idle nudger
	Killer  PaneKiller         // optional: enables Cleanup
	Index   *jobindex.Index    // optional: enables queryable job history across restarts
}

// New constructs a Supervisor. A zero-value JobsDir resolves to
// DefaultJobsDir(); a zero-value Factory uses DefaultCommandFactory against
// "teamctl" on PATH.
func New(cfg Config) (*Supervisor, error) {
	dir := cfg.JobsDir
	if dir == "" {
		var err error
		dir, err = DefaultJobsDir()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create jobs dir: %w", err)
	}
	factory := cfg.Factory
	if factory == nil {
		factory = DefaultCommandFactory("teamctl")
	}
	s := &Supervisor{
		jobsDir: dir,
		factory: factory,
		mux:     cfg.Mux,
		killer:  cfg.Killer,
		index:   cfg.Index,
		jobs:    make(map[string]*entry),
	}
	s.sweepOrphans()
	return s, nil
}

// sweepOrphans marks jobs the index still shows as "running" but whose
// pid died while no supervisor process was watching them (a restart
// between polls) as failed, per spec §9: "running jobs started by a
// previous process instance show up as failed via the orphan-pid check."
// A nil index or an empty in-memory job map (the normal case right after
// construction) makes this a no-op except for genuinely stale rows.
func (s *Supervisor) sweepOrphans() {
	if s.index == nil {
		return
	}
	rows, err := s.index.ListRunning()
	if err != nil {
		log.Printf("[jobs] orphan sweep: list running: %v", err)
		return
	}
	for _, row := range rows {
		if processAlive(row.PID) {
			continue
		}
		rec, err := s.updateRecord(row.JobID, func(r *Record) {
			r.Status = StatusFailed
			r.Result = "Process no longer alive"
		})
		if err != nil {
			log.Printf("[jobs] orphan sweep: update %s: %v", row.JobID, err)
			continue
		}
		log.Printf("[jobs] orphan sweep: %s marked failed (pid %d no longer alive)", rec.JobID, row.PID)
	}
}

// syncIndex best-effort mirrors rec into the optional SQLite job index; a
// nil index or a write failure never affects the canonical JSON record.
func (s *Supervisor) syncIndex(rec Record) {
	if s.index == nil {
		return
	}
	row := jobindex.Row{
		JobID:     rec.JobID,
		TeamName:  rec.TeamName,
		Status:    string(rec.Status),
		PID:       rec.PID,
		Cwd:       rec.Cwd,
		StartedAt: rec.StartedAt,
		Result:    rec.Result,
		Stderr:    rec.Stderr,
	}
	if rec.Status.IsTerminal() {
		now := time.Now()
		row.FinishedAt = &now
	}
	if err := s.index.Upsert(row); err != nil {
		log.Printf("[jobs] index upsert %s: %v", rec.JobID, err)
	}
}

// ListJobs returns the optional SQLite index's history for teamName, most
// recently started first. Returns an error if the supervisor wasn't
// configured with an Index.
func (s *Supervisor) ListJobs(teamName string) ([]jobindex.Row, error) {
	if s.index == nil {
		return nil, fmt.Errorf("job index not configured")
	}
	return s.index.ListByTeam(teamName)
}

func newJobID() string {
	return "omc-" + strconv.FormatInt(time.Now().UnixMilli(), 36)
}

// Start validates req, spawns the scheduler runtime child process with req
// piped to its stdin as JSON, and returns once the child has been started
// (not once it finishes) — spec §4.8 start.
func (s *Supervisor) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	if _, err := teamname.Validate(req.TeamName); err != nil {
		return StartResult{}, err
	}
	if len(req.AgentTypes) == 0 {
		return StartResult{}, fmt.Errorf("agentTypes must not be empty")
	}
	if len(req.Tasks) == 0 {
		return StartResult{}, fmt.Errorf("tasks must not be empty")
	}
	if stringutils.IsEmpty(req.Cwd) {
		return StartResult{}, fmt.Errorf("cwd must not be empty")
	}
	for i, t := range req.Tasks {
		if stringutils.IsEmpty(t.Subject) {
			return StartResult{}, fmt.Errorf("task %d: subject must not be blank", i+1)
		}
	}
	for _, t := range req.AgentTypes {
		if _, err := agentcontract.Get(agentcontract.Type(t)); err != nil {
			return StartResult{}, err
		}
	}

	jobID := newJobID()
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return StartResult{}, err
	}

	child, err := spawn(s.factory, context.Background(), reqJSON, map[string]string{
		"OMC_JOB_ID":   jobID,
		"OMC_JOBS_DIR": s.jobsDir,
	})
	if err != nil {
		return StartResult{}, err
	}

	rec := Record{
		JobID:     jobID,
		Status:    StatusRunning,
		StartedAt: time.Now(),
		PID:       child.cmd.Process.Pid,
		TeamName:  req.TeamName,
		Cwd:       req.Cwd,
	}
	e := &entry{rec: rec, child: child}

	s.mu.Lock()
	s.jobs[jobID] = e
	s.mu.Unlock()

	if err := writeJSONAtomic(recordPath(s.jobsDir, jobID), rec); err != nil {
		return StartResult{}, fmt.Errorf("persist job record: %w", err)
	}
	s.syncIndex(rec)

	go s.awaitChild(jobID, e)

	return StartResult{JobID: jobID, PID: rec.PID, Message: "started"}, nil
}

// awaitChild blocks until the child exits, then finalizes the job record.
func (s *Supervisor) awaitChild(jobID string, e *entry) {
	<-e.child.done
	status, result := e.child.resolveExit()

	e.mu.Lock()
	e.rec.Status = status
	e.rec.Result = result
	e.rec.Stderr = e.child.stderr.String()
	rec := e.rec
	e.mu.Unlock()

	if err := writeJSONAtomic(recordPath(s.jobsDir, jobID), rec); err != nil {
		// Best-effort: the in-memory record is already updated, and a
		// fresh process restarting would only learn a stale "running"
		// status from disk, which the orphan-pid check self-heals.
		_ = err
	}
	s.syncIndex(rec)
}

// record returns the freshest known record for jobID, preferring the
// in-memory copy and falling back to disk (spec §4.8 status: "read the
// in-memory record (falling back to disk)").
func (s *Supervisor) record(jobID string) (Record, error) {
	s.mu.Lock()
	e, ok := s.jobs[jobID]
	s.mu.Unlock()
	if ok {
		e.mu.Lock()
		rec := e.rec
		e.mu.Unlock()
		return rec, nil
	}

	var rec Record
	if err := readJSON(recordPath(s.jobsDir, jobID), &rec); err != nil {
		return Record{}, &NotFoundError{JobID: jobID}
	}
	return rec, nil
}

func (s *Supervisor) updateRecord(jobID string, mutate func(*Record)) (Record, error) {
	s.mu.Lock()
	e, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		rec, err := s.record(jobID)
		if err != nil {
			return Record{}, err
		}
		mutate(&rec)
		if err := writeJSONAtomic(recordPath(s.jobsDir, jobID), rec); err != nil {
			return Record{}, err
		}
		s.syncIndex(rec)
		return rec, nil
	}

	e.mu.Lock()
	mutate(&e.rec)
	rec := e.rec
	e.mu.Unlock()

	if err := writeJSONAtomic(recordPath(s.jobsDir, jobID), rec); err != nil {
		return Record{}, err
	}
	s.syncIndex(rec)
	return rec, nil
}

// Status validates jobID and returns its current snapshot (spec §4.8
// status).
func (s *Supervisor) Status(jobID string) (StatusResult, error) {
	if !jobIDPattern.MatchString(jobID) {
		return StatusResult{}, &InvalidJobIDError{JobID: jobID}
	}
	rec, err := s.record(jobID)
	if err != nil {
		return StatusResult{}, err
	}
	return StatusResult{
		JobID:          rec.JobID,
		Status:         rec.Status,
		ElapsedSeconds: time.Since(rec.StartedAt).Seconds(),
		Result:         rec.Result,
		Stderr:         rec.Stderr,
	}, nil
}
