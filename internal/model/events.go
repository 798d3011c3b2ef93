package model

import (
	"time"
)

// EventType identifies the operation that produced a journey event
type EventType string

const (
	JourneyRegisteredEvent        EventType = "journey.registered"
	JourneyAdmittedAtGateEvent    EventType = "journey.gate"
	JourneyAdmittedInsideEvent    EventType = "journey.inside"
	JourneyCompletedEvent         EventType = "journey.completed"
	JourneyExitedEvent            EventType = "journey.exited"
	WeightReadingAddedEvent       EventType = "weight.reading"
	WeightInvoiceSetEvent         EventType = "weight.invoice"
	WeightApprovalResolvedEvent   EventType = "weight.approval"
	WeightProcessingCompleteEvent EventType = "weight.complete"
	TruckReplacedEvent            EventType = "journey.replaced"
	// JourneySnapshotEvent re-emits current state, e.g. when republishing
	JourneySnapshotEvent EventType = "journey.snapshot"
)

// JourneyEvent is published after every committed journey mutation
type JourneyEvent struct {
	EventID       string    `json:"event_id"`
	JourneyID     string    `json:"journey_id"`
	Type          EventType `json:"type"`
	Status        Status    `json:"status"`
	NextMilestone Milestone `json:"next_milestone,omitempty"`
	Operator      string    `json:"operator"`
	Version       int       `json:"version"`
	OccurredAt    time.Time `json:"occurred_at"`
}
