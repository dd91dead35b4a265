package api

import "time"

// EventType identifies a venture history event.
type EventType string

const (
	EventVentureCreated EventType = "venture.created"
	EventVentureReset   EventType = "venture.reset"
	EventVentureLive    EventType = "venture.live"

	EventStageStarted   EventType = "stage.started"
	EventStageSucceeded EventType = "stage.succeeded"
	EventStageFailed    EventType = "stage.failed"
)

// VentureEvent is a minimal append-only history record for audit/debugging.
// Keep Detail short: error strings, not payloads.
type VentureEvent struct {
	VentureID string    `json:"venture_id"`
	At        time.Time `json:"at"`
	Type      EventType `json:"type"`

	From State `json:"from,omitempty"`
	To   State `json:"to,omitempty"`

	Detail string `json:"detail,omitempty"`
}
