package orchestrator

import (
	"log"
	"sync"
	"time"
)

// EventEmitter fans run events out to an optional consumer. Consuming the
// channel is optional: when the buffer is full, lifecycle events get a short
// grace period for the consumer to drain, while periodic progress snapshots
// are dropped immediately since the next tick supersedes them. Drops are
// accounted per event type so a laggy consumer can tell whether it lost
// progress noise or terminal task events.
type EventEmitter struct {
	events chan Event

	mu      sync.Mutex
	dropped map[EventType]uint64
	total   uint64
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events:  make(chan Event, bufferSize),
		dropped: make(map[EventType]uint64),
	}
}

// Emit sends an event to the events channel, stamping it if needed.
// If the channel is full, lifecycle events wait up to 100ms before being
// dropped; progress events are dropped at once.
func (e *EventEmitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case e.events <- event:
		return
	default:
	}

	// A stale progress snapshot is worthless once the next tick fires;
	// never stall the scheduler for one.
	if event.Type == EventProgress {
		e.drop(event.Type)
		return
	}

	// Give the receiver a chance to drain before dropping.
	select {
	case e.events <- event:
		return
	case <-time.After(100 * time.Millisecond):
		e.drop(event.Type)
	}
}

func (e *EventEmitter) drop(t EventType) {
	e.mu.Lock()
	e.dropped[t]++
	e.total++
	total := e.total
	e.mu.Unlock()

	if total%10 == 1 { // Log every 10th drop to avoid spam
		log.Printf("[orchestrator] WARNING: event channel full, dropped event (total dropped: %d): type=%s", total, t)
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total
}

// DroppedByType returns a snapshot of drop counts per event type.
func (e *EventEmitter) DroppedByType() map[EventType]uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[EventType]uint64, len(e.dropped))
	for t, n := range e.dropped {
		out[t] = n
	}
	return out
}

// Events returns a read-only channel of events.
// This is used by subscribers (e.g., the CLI) to receive updates.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel.
// This should be called when the run is finished.
func (e *EventEmitter) Close() {
	close(e.events)
}
