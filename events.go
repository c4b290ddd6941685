package onixcheck

import (
	"time"
)

// EventKind identifies the type of event emitted during a pipeline run.
type EventKind string

const (
	// EventRunStarted is emitted when a pipeline run begins.
	EventRunStarted EventKind = "run_started"

	// EventStageStarted is emitted when a validation stage begins.
	EventStageStarted EventKind = "stage_started"

	// EventStageFinished is emitted when a stage completes, including when
	// it completes with findings.
	EventStageFinished EventKind = "stage_finished"

	// EventStageFailed is emitted when a stage could not evaluate at all.
	EventStageFailed EventKind = "stage_failed"

	// EventRunFinished is emitted when a pipeline run completes.
	EventRunFinished EventKind = "run_finished"
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Event is a structured record of what happened during a pipeline run.
// Events are kept small; the full results travel in the returned Result.
type Event struct {
	// Kind identifies the event type.
	Kind EventKind

	// RunID is the unique identifier for this run.
	RunID string

	// Stage is the stage that produced this event (empty for run-level events).
	Stage Stage

	// Time is when the event occurred.
	Time time.Time

	// Elapsed is the duration since the run or stage started.
	Elapsed time.Duration

	// Payload contains event-specific data (document name, finding counts).
	Payload map[string]any
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(kind EventKind, runID string) Event {
	return Event{
		Kind:    kind,
		RunID:   runID,
		Time:    time.Now(),
		Payload: make(map[string]any),
	}
}

// WithStage sets the stage on the event.
func (e Event) WithStage(stage Stage) Event {
	e.Stage = stage
	return e
}

// WithElapsed sets the elapsed duration on the event.
func (e Event) WithElapsed(elapsed time.Duration) Event {
	e.Elapsed = elapsed
	return e
}

// WithPayload adds a key-value pair to the event payload.
func (e Event) WithPayload(key string, value any) Event {
	if e.Payload == nil {
		e.Payload = make(map[string]any)
	}
	e.Payload[key] = value
	return e
}

// EventHandler is a function type for handling events.
// Implementations can log, store, or forward events as needed.
type EventHandler func(Event)

// MultiEventHandler combines multiple handlers into one.
func MultiEventHandler(handlers ...EventHandler) EventHandler {
	return func(e Event) {
		for _, h := range handlers {
			if h != nil {
				h(e)
			}
		}
	}
}

// ChannelEventHandler returns a handler that sends events to a channel.
// The channel should have sufficient buffer to avoid blocking.
// Events are dropped if the channel is full.
func ChannelEventHandler(ch chan<- Event) EventHandler {
	return func(e Event) {
		select {
		case ch <- e:
		default:
			// Drop event if channel is full
		}
	}
}
