package events

import (
	"sync"

	"shade/core/types"
)

// Event represents a structured state change emitted by the contract.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter appends events to downstream subscribers (event log, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Log is an ordered, append-only event log. It is safe for concurrent use.
type Log struct {
	mu     sync.RWMutex
	events []Event
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Emit implements the Emitter interface.
func (l *Log) Emit(evt Event) {
	if evt == nil {
		return
	}
	l.mu.Lock()
	l.events = append(l.events, evt)
	l.mu.Unlock()
}

// All returns a copy of the recorded events in append order.
func (l *Log) All() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Event(nil), l.events...)
}

// Len reports the number of recorded events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Last returns the most recent event, or nil when the log is empty.
func (l *Log) Last() Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.events) == 0 {
		return nil
	}
	return l.events[len(l.events)-1]
}

// OfType returns the recorded events whose type matches.
func (l *Log) OfType(eventType string) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, 0)
	for _, evt := range l.events {
		if evt.EventType() == eventType {
			out = append(out, evt)
		}
	}
	return out
}

// Buffer holds the events of one in-flight call until the call commits.
// It is not safe for concurrent use.
type Buffer struct {
	pending []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.pending = append(b.pending, evt)
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int { return len(b.pending) }

// Flush forwards the buffered events to sink in emission order and empties
// the buffer. The flushed events are returned for bookkeeping.
func (b *Buffer) Flush(sink Emitter) []Event {
	flushed := b.pending
	b.pending = nil
	if sink == nil {
		return flushed
	}
	for _, evt := range flushed {
		sink.Emit(evt)
	}
	return flushed
}

// Reset drops the buffered events.
func (b *Buffer) Reset() {
	b.pending = nil
}
