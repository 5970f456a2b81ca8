package scheduler

import (
	"context"

	"github.com/omc/teamctl/internal/tmux"
)

// Multiplexer is the subset of the tmux adapter the scheduler needs,
// declared locally (as submit.Multiplexer is in its own package) so
// tests can supply a fake instead of spawning real tmux processes. A
// *tmux.Ops satisfies this structurally.
type Multiplexer interface {
	ResolveSession(ctx context.Context) (*tmux.Session, error)
	EnableMouseAndFocus(ctx context.Context, sess *tmux.Session) error
	SplitPane(ctx context.Context, fromPaneID string, vertical bool, cwd string) (string, error)
	ApplyMainVerticalLayout(ctx context.Context, sess *tmux.Session) error
	SpawnWorkerInPane(ctx context.Context, paneID string, spec tmux.LaunchSpec) error
	IsPaneDead(ctx context.Context, paneID string) (bool, error)
	KillPane(ctx context.Context, paneID, leaderPaneID string) error
}
