// Package teamstate centralizes the on-disk path layout for a team's
// state tree (.omc/state/team/<teamName>/...), the same way the teacher's
// internal/persistence package is the one place that knows its state
// file's location, so no other package hardcodes path segments
// independently.
package teamstate

import "path/filepath"

const stateRoot = ".omc/state/team"

// Root returns the team's root directory under cwd.
func Root(cwd, teamName string) string {
	return filepath.Join(cwd, stateRoot, teamName)
}

// ConfigPath returns the path to config.json.
func ConfigPath(cwd, teamName string) string {
	return filepath.Join(Root(cwd, teamName), "config.json")
}

// ShutdownPath returns the path to the team-level shutdown sentinel.
func ShutdownPath(cwd, teamName string) string {
	return filepath.Join(Root(cwd, teamName), "shutdown.json")
}

// TasksDir returns the tasks/ directory.
func TasksDir(cwd, teamName string) string {
	return filepath.Join(Root(cwd, teamName), "tasks")
}

// TaskPath returns the path to a specific task record.
func TaskPath(cwd, teamName, taskID string) string {
	return filepath.Join(TasksDir(cwd, teamName), taskID+".json")
}

// WorkersDir returns the workers/ directory.
func WorkersDir(cwd, teamName string) string {
	return filepath.Join(Root(cwd, teamName), "workers")
}

// WorkerDir returns a specific worker's state directory.
func WorkerDir(cwd, teamName, workerName string) string {
	return filepath.Join(WorkersDir(cwd, teamName), workerName)
}

// WorkerOverlayPath returns the path to a worker's AGENTS.md.
func WorkerOverlayPath(cwd, teamName, workerName string) string {
	return filepath.Join(WorkerDir(cwd, teamName, workerName), "AGENTS.md")
}

// WorkerInboxPath returns the path to a worker's inbox.md.
func WorkerInboxPath(cwd, teamName, workerName string) string {
	return filepath.Join(WorkerDir(cwd, teamName, workerName), "inbox.md")
}

// WorkerHeartbeatPath returns the path to a worker's heartbeat.json.
func WorkerHeartbeatPath(cwd, teamName, workerName string) string {
	return filepath.Join(WorkerDir(cwd, teamName, workerName), "heartbeat.json")
}

// WorkerDonePath returns the path to a worker's done.json.
func WorkerDonePath(cwd, teamName, workerName string) string {
	return filepath.Join(WorkerDir(cwd, teamName, workerName), "done.json")
}

// WorkerShutdownAckPath returns the path to a worker's shutdown-ack.json.
func WorkerShutdownAckPath(cwd, teamName, workerName string) string {
	return filepath.Join(WorkerDir(cwd, teamName, workerName), "shutdown-ack.json")
}

// WorkerReadyPath returns the path to a worker's .ready sentinel.
func WorkerReadyPath(cwd, teamName, workerName string) string {
	return filepath.Join(WorkerDir(cwd, teamName, workerName), ".ready")
}

// MailboxDir returns the mailbox/ directory.
func MailboxDir(cwd, teamName string) string {
	return filepath.Join(Root(cwd, teamName), "mailbox")
}

// MailboxPath returns a specific worker's mailbox log.
func MailboxPath(cwd, teamName, workerName string) string {
	return filepath.Join(MailboxDir(cwd, teamName), workerName+".jsonl")
}
