package submit

import (
	"context"
	"time"
)

const (
	notifyRetries = 6
	notifyDelay   = 350 * time.Millisecond
)

// NotifyPaneWithRetry retries Submit up to 6 times with ~350ms between
// attempts. It is used for the initial task assignment, where a pane that
// is still booting its REPL needs more patience than the submitter's own
// internal rounds provide.
func (s *Submitter) NotifyPaneWithRetry(ctx context.Context, paneID, message string) bool {
	for attempt := 0; attempt < notifyRetries; attempt++ {
		if s.Submit(ctx, paneID, message) {
			return true
		}
		s.sleep(notifyDelay)
	}
	return false
}
