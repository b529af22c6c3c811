package search

import "time"

// State is the generation loop state
type State int

const (
	StateIdle State = iota
	StateRefreshingData
	StateEvaluating
	StatePersisting
	StateEvolving
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshingData:
		return "refreshing_data"
	case StateEvaluating:
		return "evaluating"
	case StatePersisting:
		return "persisting"
	case StateEvolving:
		return "evolving"
	default:
		return "unknown"
	}
}

// EventType tags loop events
type EventType string

const (
	EventState         EventType = "state"
	EventGeneration    EventType = "generation"
	EventRefreshFailed EventType = "refresh_failed"
)

// Event is published to observers on every state change and finished generation
type Event struct {
	Type       EventType          `json:"type"`
	RunID      string             `json:"run_id"`
	Generation int                `json:"generation"`
	State      string             `json:"state"`
	Summary    *GenerationSummary `json:"summary,omitempty"`
	Error      string             `json:"error,omitempty"`
	Time       time.Time          `json:"time"`
}

// Observer receives loop events. Called from the loop goroutine; must not block.
type Observer interface {
	OnEvent(e Event)
}
