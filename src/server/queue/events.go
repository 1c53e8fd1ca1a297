package queue

// EventKind identifies a queue operation
type EventKind int

const (
	EventEnqueue EventKind = iota
	EventDequeue
	EventDrainStart
	EventDrainComplete
)

// String returns the event kind name
func (k EventKind) String() string {
	switch k {
	case EventEnqueue:
		return "enqueue"
	case EventDequeue:
		return "dequeue"
	case EventDrainStart:
		return "drain-start"
	case EventDrainComplete:
		return "drain-complete"
	default:
		return "unknown"
	}
}

// Event describes one queue operation. Command is empty for drain events,
// ID is set for dequeue only.
type Event struct {
	Kind    EventKind
	Queue   string
	Command string
	ID      int
}

// EventSink receives queue events. Emit is called with the owner's lock held
// and must not block.
type EventSink interface {
	Emit(event Event)
}

// SinkFunc adapts a function to EventSink
type SinkFunc func(event Event)

// Emit calls f(event)
func (f SinkFunc) Emit(event Event) {
	f(event)
}

type nopSink struct{}

func (nopSink) Emit(Event) {}

// NopSink discards every event
var NopSink EventSink = nopSink{}
