// Package updates carries progress notifications from the research
// pipeline to anyone watching it. Every notification travels two ways:
// a best-effort in-process broadcast for live viewers, and a durable
// capped history list so late joiners can catch up.
package updates

import (
	"encoding/json"
	"time"
)

// EventType identifies what kind of change an event describes.
type EventType string

const (
	EventStatusUpdate EventType = "status_update"
	EventStepCreated  EventType = "step_created"
	EventStepUpdate   EventType = "step_update"
)

// Event is one progress notification for a research task.
// ResearchID routes the event; it is not part of the wire payload
// because the durable list is already keyed by it.
type Event struct {
	ResearchID string `json:"-"`

	Type      EventType `json:"type"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Data      any       `json:"data,omitempty"`
	StepID    string    `json:"stepId,omitempty"`
	StepType  string    `json:"stepType,omitempty"`
	StepOrder int       `json:"stepOrder,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Encode serializes the event to its JSON wire form.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses an event from its JSON wire form.
func Decode(payload []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(payload, &e)
	return e, err
}
