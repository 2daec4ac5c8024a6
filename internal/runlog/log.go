// Package runlog provides the append-only progress log for a single run.
package runlog

import (
	"sync"

	"github.com/mhalvors/docchat/internal/domain"
)

// Log is an append-only, indexable sequence of progress events. It is
// written by exactly one goroutine at a time (the run's progress bridge)
// and read concurrently by any number of stream consumers. Readers take
// snapshot copies, so they never observe a partially appended entry and
// never block the writer.
type Log struct {
	mu     sync.RWMutex
	events []domain.Event
}

// New creates an empty log.
func New() *Log {
	return &Log{}
}

// Append adds an event at the next index. The event is visible to
// readers as soon as Append returns.
func (l *Log) Append(evt domain.Event) {
	l.mu.Lock()
	l.events = append(l.events, evt)
	l.mu.Unlock()
}

// Read returns a copy of all events with index >= from, in append order.
func (l *Log) Read(from int) []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if from < 0 {
		from = 0
	}
	if from >= len(l.events) {
		return nil
	}
	out := make([]domain.Event, len(l.events)-from)
	copy(out, l.events[from:])
	return out
}

// Len returns the number of events appended so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Snapshot returns a copy of the full event sequence.
func (l *Log) Snapshot() []domain.Event {
	return l.Read(0)
}
