package crew

import "time"

// EventType identifies an orchestration event.
type EventType string

const (
	EventTaskStarted         EventType = "task_started"
	EventTaskCompleted       EventType = "task_completed"
	EventTaskFailed          EventType = "task_failed"
	EventHandoff             EventType = "handoff"
	EventPermissionRequested EventType = "permission_requested"
	EventPermissionResolved  EventType = "permission_resolved"
	EventPhaseChanged        EventType = "phase_changed"
)

// Event is one entry in the ordered observability stream.
type Event struct {
	Type      EventType `json:"type"`
	TaskID    string    `json:"task_id,omitempty"`
	Role      string    `json:"role,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const eventBuffer = 64

// emit delivers an event without ever blocking the orchestration loop. When
// nobody drains the channel the oldest events are dropped.
func (o *Orchestrator) emit(e Event) {
	e.Timestamp = time.Now()
	for {
		select {
		case o.events <- e:
			return
		default:
		}
		select {
		case <-o.events:
		default:
		}
	}
}

// Events returns the orchestrator's event stream.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}
