package events

// Record represents a structured state change emitted by the vault. Attributes
// are flat string pairs so downstream indexers can persist them without a
// schema migration per event type.
type Record struct {
	Type       string
	Attributes map[string]string
}

// Event is implemented by all typed vault events.
type Event interface {
	EventType() string
	Record() *Record
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
