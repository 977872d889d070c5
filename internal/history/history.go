package history

import (
	"context"
	"time"
)

// ExecutionRecord is an immutable historical entry describing one finished
// launch attempt. The pool manager appends one after every terminal outcome.
type ExecutionRecord struct {
	GameID    string        `json:"game_id"`
	GameName  string        `json:"game_name"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration"`
	ExitCode  int           `json:"exit_code"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// EventType defines the kind of lifecycle event exported to sinks.
type EventType string

const (
	EventLaunch EventType = "launch"
	EventResult EventType = "result"
)

// Event represents a launch lifecycle event for external analytics systems.
type Event struct {
	Type       EventType       `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Record     ExecutionRecord `json:"record"`
}

// Sink is a destination for history events. Implementations must be safe
// for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
