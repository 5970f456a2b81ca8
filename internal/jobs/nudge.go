package jobs

import (
	"context"
	"time"

	"github.com/omc/teamctl/internal/submit"
)

const (
	defaultNudgeDelay    = 30 * time.Second
	defaultNudgeMaxCount = 3
	defaultNudgeMessage  = "Continue working on your assigned task."
)

// NudgeOptions configures one wait call's idle nudger (spec §4.8).
type NudgeOptions struct {
	DelayMs  int
	MaxCount int
	Message  string
}

func (o NudgeOptions) delay() time.Duration {
	if o.DelayMs <= 0 {
		return defaultNudgeDelay
	}
	return time.Duration(o.DelayMs) * time.Millisecond
}

func (o NudgeOptions) maxCount() int {
	if o.MaxCount <= 0 {
		return defaultNudgeMaxCount
	}
	return o.MaxCount
}

func (o NudgeOptions) message() string {
	if o.Message == "" {
		return defaultNudgeMessage
	}
	return o.Message
}

// NudgeSummary reports how many nudges were sent per pane during a wait.
type NudgeSummary struct {
	Counts map[string]int `json:"counts,omitempty"`
}

// paneActivity tracks the idle nudger's per-pane bookkeeping across polls
// within a single wait call: the last captured tail (to detect new output)
// and when that tail was first observed unchanged (the idle clock start).
type paneActivity struct {
	lastTail     string
	idleSince    time.Time
	nudgeCount   int
}

// idleNudger observes worker panes across successive wait polls and, once
// a pane has shown no new output for opts.DelayMs, submits a short nudge
// message through the pane-input submitter (spec §4.8: "Submissions go
// through C4 so all its safety rules apply").
type idleNudger struct {
	sub   *submit.Submitter
	state map[string]*paneActivity
}

func newIdleNudger(mux submit.Multiplexer) *idleNudger {
	if mux == nil {
		return nil
	}
	return &idleNudger{sub: submit.New(mux), state: make(map[string]*paneActivity)}
}

// poll observes every worker pane in paneIDs once. It is called on every
// wait iteration; nudge failures never fail the wait (spec §4.8).
func (n *idleNudger) poll(ctx context.Context, paneIDs []string, opts NudgeOptions, summary *NudgeSummary) {
	if n == nil || n.sub == nil {
		return
	}
	now := time.Now()
	for _, paneID := range paneIDs {
		tail, err := n.sub.Mux.CapturePane(ctx, paneID, 40)
		if err != nil {
			continue
		}
		act, ok := n.state[paneID]
		if !ok {
			n.state[paneID] = &paneActivity{lastTail: tail, idleSince: now}
			continue
		}
		if tail != act.lastTail {
			act.lastTail = tail
			act.idleSince = now
			continue
		}
		if now.Sub(act.idleSince) < opts.delay() {
			continue
		}
		if act.nudgeCount >= opts.maxCount() {
			continue
		}
		if n.sub.Submit(ctx, paneID, opts.message()) {
			act.nudgeCount++
			act.idleSince = now
			if summary != nil {
				if summary.Counts == nil {
					summary.Counts = make(map[string]int)
				}
				summary.Counts[paneID] = act.nudgeCount
			}
		}
	}
}
