package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the subject suffix for this event (e.g. "run.completed").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

const TypeRunCompleted = "run.completed"

// RunCompleted is emitted after every recorded pipeline run.
type RunCompleted struct {
	RunId     string
	Pipeline  string
	Trigger   string
	Status    string
	ErrorKind string
	Items     int
	At        time.Time
}

func (e RunCompleted) EventType() string {
	return TypeRunCompleted
}

func (e RunCompleted) Payload() map[string]interface{} {
	data := map[string]interface{}{
		"run_id":   e.RunId,
		"pipeline": e.Pipeline,
		"trigger":  e.Trigger,
		"status":   e.Status,
		"items":    e.Items,
	}
	if e.ErrorKind != "" {
		data["error_kind"] = e.ErrorKind
	}
	return data
}

func (e RunCompleted) Timestamp() time.Time {
	return e.At
}
