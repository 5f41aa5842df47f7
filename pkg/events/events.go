// Package events defines the progress and lifecycle events emitted by the
// import orchestrator, the drift reconciler, and the reset controller.
package events

import (
	"time"
)

type EventType string

// Kafka topic for all lifecycle events.
const Topic = "flowsync.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Bulk import progress events, emitted in stream order:
	// started → validated → phase(1) → workflow started/completed × N →
	// phase(2) → workflow started/completed × M → completed | failed.
	ImportStartedEvent           EventType = "import.started"
	ImportValidatedEvent         EventType = "import.validated"
	ImportPhaseChangedEvent      EventType = "import.phase_changed"
	ImportWorkflowStartedEvent   EventType = "import.workflow.started"
	ImportWorkflowCompletedEvent EventType = "import.workflow.completed"
	ImportCompletedEvent         EventType = "import.completed"
	ImportFailedEvent            EventType = "import.failed"

	// Drift and teardown lifecycle events.
	SyncCompletedEvent  EventType = "sync.completed"
	ResetCompletedEvent EventType = "reset.completed"
)

// Terminal reports whether the event ends a progress stream. Consumers must
// stop listening after a terminal event.
func (t EventType) Terminal() bool {
	return t == ImportCompletedEvent || t == ImportFailedEvent
}

// ImportProgress is one entry in an append-only import progress stream.
type ImportProgress struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Phase     int       `json:"phase,omitempty"` // 1 = create, 2 = activate
	Filename  string    `json:"filename,omitempty"`
	Name      string    `json:"name,omitempty"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	Total     int       `json:"total,omitempty"`
}

func (e ImportProgress) GetType() EventType {
	return e.Type
}

// SyncCompleted reports the counters of one finished reconciliation run.
type SyncCompleted struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Mode         string    `json:"mode"`
	Synced       int       `json:"synced"`
	Deleted      int       `json:"deleted"`
	StateChanged int       `json:"state_changed"`
	Pulled       int       `json:"pulled"`
	Orphans      int       `json:"orphans"`
}

func (e SyncCompleted) GetType() EventType {
	return SyncCompletedEvent
}

// ResetCompleted reports the bookkeeping of one finished reset run.
type ResetCompleted struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Mode           string    `json:"mode"`
	DeletedFromN8N int       `json:"deleted_from_n8n"`
	Cleared        int       `json:"cleared"`
	Errors         int       `json:"errors"`
}

func (e ResetCompleted) GetType() EventType {
	return ResetCompletedEvent
}
