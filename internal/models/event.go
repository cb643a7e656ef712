package models

import "time"

type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventFailed   EventType = "failed"
)

// Progress phases.
const (
	PhaseData      = "data"
	PhaseAnalysis  = "analysis"
	PhaseSynthesis = "synthesis"
)

// Event is published to the notification sink, scoped to RunID.
type Event struct {
	Type  EventType `json:"type"`
	RunID string    `json:"run_id"`
	At    time.Time `json:"at"`

	Fraction float64 `json:"fraction,omitempty"`
	Phase    string  `json:"phase,omitempty"`
	Message  string  `json:"message,omitempty"`

	Plan     *Plan `json:"plan,omitempty"`
	Fallback bool  `json:"fallback,omitempty"`

	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventFailed
}
