package jobs

import (
	"context"
	"math"
	"time"
)

const (
	defaultWaitTimeout = 5 * time.Minute
	maxWaitTimeout     = time.Hour
	initialPollDelay   = 500 * time.Millisecond
	maxPollDelay       = 2000 * time.Millisecond
	pollBackoffFactor  = 1.5
)

// WaitOptions configures one Wait call (spec §4.8 wait / §6 supervisor
// tool interface).
type WaitOptions struct {
	TimeoutMs     int
	Nudge         NudgeOptions
}

func (o WaitOptions) timeout() time.Duration {
	if o.TimeoutMs <= 0 {
		return defaultWaitTimeout
	}
	d := time.Duration(o.TimeoutMs) * time.Millisecond
	if d > maxWaitTimeout {
		return maxWaitTimeout
	}
	return d
}

// nextPollDelay implements spec §8 testable property 9: successive poll
// intervals are min(ceil(500*1.5^k), 2000).
func nextPollDelay(current time.Duration) time.Duration {
	next := time.Duration(math.Ceil(float64(current.Milliseconds())*pollBackoffFactor)) * time.Millisecond
	if next > maxPollDelay {
		return maxPollDelay
	}
	return next
}

// Wait polls jobID's record until it reaches a terminal status or the
// timeout elapses, running the idle nudger against worker panes on every
// poll (spec §4.8 wait).
func (s *Supervisor) Wait(ctx context.Context, jobID string, opts WaitOptions) (WaitResult, error) {
	if !jobIDPattern.MatchString(jobID) {
		return WaitResult{}, &InvalidJobIDError{JobID: jobID}
	}

	deadline := time.Now().Add(opts.timeout())
	var summary NudgeSummary

	delay := initialPollDelay

	for {
		rec, err := s.record(jobID)
		if err != nil {
			return WaitResult{}, err
		}

		if rec.Status.IsTerminal() {
			return s.finishWait(rec, false, "", &summary), nil
		}

		if !processAlive(rec.PID) {
			const reason = "Process no longer alive"
			rec, _ = s.updateRecord(jobID, func(r *Record) {
				r.Status = StatusFailed
				r.Result = reason
			})
			return s.finishWait(rec, false, reason, &summary), nil
		}

		s.nudgePanes(ctx, jobID, opts.Nudge, &summary)

		now := time.Now()
		if !now.Before(deadline) {
			rec, _ = s.record(jobID)
			return s.finishWait(rec, true, "wait timed out", &summary), nil
		}

		sleep := delay
		if remaining := deadline.Sub(now); remaining < sleep {
			sleep = remaining
		}
		select {
		case <-ctx.Done():
			rec, _ = s.record(jobID)
			return s.finishWait(rec, true, ctx.Err().Error(), &summary), ctx.Err()
		case <-time.After(sleep):
		}
		delay = nextPollDelay(delay)
	}
}

func (s *Supervisor) finishWait(rec Record, timedOut bool, errMsg string, summary *NudgeSummary) WaitResult {
	res := WaitResult{
		JobID:          rec.JobID,
		Status:         rec.Status,
		TimedOut:       timedOut,
		ElapsedSeconds: time.Since(rec.StartedAt).Seconds(),
		Result:         rec.Result,
		Stderr:         rec.Stderr,
		Error:          errMsg,
	}
	if summary != nil && len(summary.Counts) > 0 {
		res.Nudges = summary
	}
	return res
}

func (s *Supervisor) nudgePanes(ctx context.Context, jobID string, opts NudgeOptions, summary *NudgeSummary) {
	var pf PanesFile
	if err := readJSON(panesPath(s.jobsDir, jobID), &pf); err != nil {
		return
	}
	workerPanes := make([]string, 0, len(pf.PaneIDs))
	for _, p := range pf.PaneIDs {
		if p != "" && p != pf.LeaderPaneID {
			workerPanes = append(workerPanes, p)
		}
	}
	if len(workerPanes) == 0 {
		return
	}

	s.mu.Lock()
	nudger, ok := s.nudgers[jobID]
	if !ok {
		nudger = newIdleNudger(s.mux)
		if s.nudgers == nil {
			s.nudgers = make(map[string]*idleNudger)
		}
		s.nudgers[jobID] = nudger
	}
	s.mu.Unlock()

	nudger.poll(ctx, workerPanes, opts, summary)
}
