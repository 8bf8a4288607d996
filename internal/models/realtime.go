package models

import "time"

// EventType names a lifecycle change broadcast to live subscribers.
type EventType string

const (
	EventCreated       EventType = "complaint.created"
	EventAssigned      EventType = "complaint.assigned"
	EventCleaned       EventType = "complaint.cleaned"
	EventStatusChanged EventType = "complaint.status_changed"
)

// ComplaintEvent is published on the event bus after a committed change.
type ComplaintEvent struct {
	Type          EventType `json:"type"`
	ComplaintID   string    `json:"complaint_id"`
	Status        Status    `json:"status"`
	Priority      Priority  `json:"priority"`
	SeverityScore int       `json:"severity_score"`
	AssignedTo    string    `json:"assigned_to,omitempty"`
	ActorID       string    `json:"actor_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}
