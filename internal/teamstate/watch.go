package teamstate

import (
	"context"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// sentinelNames are the worker-written files whose appearance should wake
// the watchdog early; anything else under workers/<name>/ is ignored.
var sentinelNames = map[string]bool{
	"done.json":         true,
	"heartbeat.json":    true,
	"shutdown-ack.json": true,
	".ready":            true,
}

// Watcher accelerates sentinel detection by fsnotify-watching every
// worker directory under a team's state tree and feeding worker names
// onto Dirty as their sentinel files change, the way the teacher's
// internal/app.Notifier watches a signal file and falls back to poll-only
// when fsnotify can't be set up. The scheduler's 1 Hz poll remains the
// correctness backstop; a missed or coalesced fsnotify event only costs
// one extra tick of latency, never correctness.
type Watcher struct {
	watcher *fsnotify.Watcher
	dirty   chan string
	cwd     string
	teamName string
}

// NewWatcher creates a Watcher rooted at the team's workers/ directory.
// It returns (nil, err) when fsnotify can't be initialized; callers
// should fall back to poll-only, exactly as jaakkos-stringwork's
// internal/app.Notifier does.
func NewWatcher(cwd, teamName string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{watcher: w, dirty: make(chan string, 64), cwd: cwd, teamName: teamName}, nil
}

// AddWorker starts watching workerName's state directory. Workers are
// added incrementally as the scheduler spawns them rather than all
// up-front, since a worker's directory may not exist until Start writes
// its overlay.
func (w *Watcher) AddWorker(workerName string) {
	if w == nil {
		return
	}
	dir := WorkerDir(w.cwd, w.teamName, workerName)
	if err := w.watcher.Add(dir); err != nil {
		log.Printf("[teamstate] watch %s: %v", dir, err)
	}
}

// Dirty returns the channel of worker names whose sentinel files changed.
// Names may repeat; the watchdog tick dedupes naturally by re-reading
// current state.
func (w *Watcher) Dirty() <-chan string {
	if w == nil {
		return nil
	}
	return w.dirty
}

// Run drains fsnotify events until ctx is cancelled, translating each
// sentinel-file write into a worker name on Dirty. Call it in its own
// goroutine.
func (w *Watcher) Run(ctx context.Context) {
	if w == nil {
		return
	}
	defer close(w.dirty)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !sentinelNames[filepath.Base(ev.Name)] {
				continue
			}
			workerName := filepath.Base(filepath.Dir(ev.Name))
			select {
			case w.dirty <- workerName:
			default:
				// Channel full: the watchdog is already behind and will
				// catch this on its next poll sweep regardless.
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[teamstate] fsnotify error: %v", err)
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}
	return w.watcher.Close()
}
