// Package events provides the in-memory publish/subscribe fanout used by
// internal/monitor/httpapi to push snapshot changes to connected websocket
// clients.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of change an Event carries.
type EventType string

const (
	// EventSnapshot signals that a fresh monitor snapshot is due; the
	// scheduler publishes one (with no payload) at the end of every
	// watchdog tick, and internal/monitor/httpapi answers it by pushing a
	// freshly taken snapshot to its websocket clients.
	EventSnapshot EventType = "snapshot"
	// EventTaskChanged carries a single task record transition.
	EventTaskChanged EventType = "task_changed"
	// EventWorkerChanged carries a single worker's liveness transition;
	// the scheduler publishes it when a worker's pane is found dead.
	EventWorkerChanged EventType = "worker_changed"
	// EventShutdown carries the team-level shutdown sentinel being
	// written.
	EventShutdown EventType = "shutdown"
)

// Priority constants, retained for subscribers that want to prioritize
// delivery order; the bus itself does not reorder on priority.
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityNormal   = 3
	PriorityLow      = 4
)

// Event is a single published change.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Target    string                 `json:"target"`
	Priority  int                    `json:"priority"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"createdAt"`
}

// NewEvent creates an event with an auto-generated ID and timestamp.
func NewEvent(eventType EventType, source, target string, priority int, payload map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Target:    target,
		Priority:  priority,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// AllEventTypes returns every defined event type.
func AllEventTypes() []EventType {
	return []EventType{EventSnapshot, EventTaskChanged, EventWorkerChanged, EventShutdown}
}
