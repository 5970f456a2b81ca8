package bootstrap

import (
	"fmt"
	"strings"
)

// InboxParams describes the single task assignment to render into
// inbox.md. The done-sentinel template is filled in so the worker can
// copy-paste its fields rather than recall the schema from the overlay.
type InboxParams struct {
	TaskID        string
	WorkerName    string
	Subject       string
	Description   string
	DoneSentinelPath string
	SanitizeBound int
}

// RenderInbox produces the initial task instruction written to inbox.md
// on every (re)dispatch. It forbids the worker from scanning the task
// directory or claiming other tasks: this worker executes only the task
// named here and exits after writing its sentinel.
func RenderInbox(p InboxParams) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Task %s\n\n", p.TaskID)
	fmt.Fprintf(&b, "**Worker**: %s\n\n", p.WorkerName)
	fmt.Fprintf(&b, "## %s\n\n", Sanitize(p.Subject, p.SanitizeBound))
	b.WriteString(Sanitize(p.Description, p.SanitizeBound))
	b.WriteString("\n\n")

	b.WriteString("## When you finish\n\n")
	fmt.Fprintf(&b, "Write the following to `%s` (single-line JSON):\n\n", p.DoneSentinelPath)
	fmt.Fprintf(&b, "```\n{\"taskId\": %q, \"status\": \"completed\", \"summary\": \"<what you did>\", \"completedAt\": \"<ISO time>\"}\n```\n\n", p.TaskID)
	b.WriteString("Use `\"status\": \"failed\"` instead if you could not complete the task, and explain why in `summary`.\n\n")

	b.WriteString("## Scope\n\n")
	b.WriteString("Execute only this task. Do not scan the task directory for other tasks, and do not claim any task other than this one. Exit immediately after writing your done sentinel.\n")

	return b.String()
}

// InitialInboxMessage is the short line sent into the pane via the
// notify-wrapper to point a freshly-spawned interactive worker at its
// inbox file.
func InitialInboxMessage(inboxPath string) string {
	return fmt.Sprintf("Read and execute your task from: %s", inboxPath)
}
