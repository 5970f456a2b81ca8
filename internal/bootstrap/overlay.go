package bootstrap

import (
	"fmt"
	"strings"
)

// TaskRef is the minimal task identity needed to enumerate assignments in
// the overlay; the overlay lists every task id the team knows about, not
// just this worker's current one, since the worker may be redispatched.
type TaskRef struct {
	ID      string
	Subject string
}

// OverlayParams is everything needed to render a worker's AGENTS.md.
type OverlayParams struct {
	TeamName         string
	WorkerName       string
	AllTasks         []TaskRef
	BootstrapExtra   string // optional, appended verbatim after sanitizing
	SanitizeBound    int
}

// RenderOverlay produces the overlay document content. The overlay never
// changes after being written once; redispatch only rewrites inbox.md.
func RenderOverlay(p OverlayParams) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Worker Instructions: %s\n\n", p.WorkerName)
	fmt.Fprintf(&b, "You are **%s**, a member of team **%s**.\n\n", p.WorkerName, p.TeamName)

	b.WriteString("## First action\n\n")
	fmt.Fprintf(&b, "Before doing anything else, create the file `.ready` in your state directory (an empty file is fine). This tells the scheduler you have started.\n\n")

	b.WriteString("## Tasks in this team\n\n")
	if len(p.AllTasks) == 0 {
		b.WriteString("(none yet)\n\n")
	} else {
		for _, t := range p.AllTasks {
			fmt.Fprintf(&b, "- `%s`: %s\n", t.ID, Sanitize(t.Subject, p.SanitizeBound))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Claim / complete protocol\n\n")
	b.WriteString("Your assignment arrives in `inbox.md` in this same directory. For the task named there:\n\n")
	b.WriteString("1. Update the task record at `tasks/<id>.json` from `pending` to `in_progress`, setting `owner` to your worker name and `assignedAt` to now.\n")
	b.WriteString("2. Do the work described.\n")
	b.WriteString("3. Write `done.json` in your state directory: `{\"taskId\": \"<id>\", \"status\": \"completed\"|\"failed\", \"summary\": \"<one paragraph>\", \"completedAt\": \"<ISO time>\"}`.\n\n")

	b.WriteString("## Heartbeat\n\n")
	b.WriteString("Periodically write `heartbeat.json` in this directory: `{\"workerName\": \"" + p.WorkerName + "\", \"status\": \"<status>\", \"updatedAt\": \"<ISO time>\", \"currentTaskId\": \"<id>\"|null}`. A heartbeat older than 60 seconds is considered stale.\n\n")

	b.WriteString("## Shutdown protocol\n\n")
	b.WriteString("Watch for `shutdown.json` appearing at the team root. When it appears, stop what you are doing as soon as it is safe, write `shutdown-ack.json` (an empty JSON object is fine) in this directory, and exit.\n\n")

	if extra := strings.TrimSpace(p.BootstrapExtra); extra != "" {
		b.WriteString("## Additional instructions\n\n")
		b.WriteString(Sanitize(extra, p.SanitizeBound))
		b.WriteString("\n")
	}

	return b.String()
}
