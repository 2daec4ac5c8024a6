// Package stream implements incremental, resumable delivery of run
// progress events to a connected client.
package stream

import (
	"context"
	"time"

	"github.com/mhalvors/docchat/internal/domain"
	"github.com/mhalvors/docchat/internal/registry"
)

// Sink receives wire events in delivery order. Send is called from the
// coordinator's goroutine only.
type Sink interface {
	Send(evt domain.Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(evt domain.Event) error

// Send implements Sink.
func (f SinkFunc) Send(evt domain.Event) error {
	return f(evt)
}

// Config tunes the delivery loop.
type Config struct {
	// PollInterval is the wait between polls; the loop's only
	// suspension point.
	PollInterval time.Duration
	// HeartbeatPolls is the number of idle polls before a heartbeat.
	HeartbeatPolls int
	// MaxPolls bounds the stream's lifetime; reaching it emits a
	// timeout error event and closes the stream without touching the run.
	MaxPolls int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.HeartbeatPolls <= 0 {
		c.HeartbeatPolls = 30
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = 6000
	}
	return c
}

// Coordinator drives one client's view of one run. It polls the run's
// event log from a cursor, forwards new events, injects heartbeats
// while idle, and closes with a synthetic done event on the run's
// terminal condition. A client may resume a stream by reconnecting
// with its last cursor.
type Coordinator struct {
	run    *registry.RunState
	cursor int
	cfg    Config
}

// New creates a coordinator reading the run's log from the given cursor.
func New(run *registry.RunState, cursor int, cfg Config) *Coordinator {
	if cursor < 0 {
		cursor = 0
	}
	return &Coordinator{run: run, cursor: cursor, cfg: cfg.withDefaults()}
}

// Cursor returns the index of the next undelivered event.
func (c *Coordinator) Cursor() int {
	return c.cursor
}

// Stream runs the delivery loop until the run finishes, the stream
// times out, the context is cancelled, or the sink fails.
func (c *Coordinator) Stream(ctx context.Context, sink Sink) error {
	idle := 0
	for poll := 0; poll < c.cfg.MaxPolls; poll++ {
		events := c.run.Log.Read(c.cursor)
		for _, evt := range events {
			if err := sink.Send(evt); err != nil {
				return err
			}
			c.cursor++
			if evt.Type.IsTerminal() {
				return sink.Send(c.synthetic(domain.EventTypeDone, nil))
			}
		}

		// The run can be flagged completed slightly before its last
		// event is visible to this reader, and vice versa; close only
		// once both hold.
		if c.run.Completed() && c.run.Log.Len() == c.cursor {
			return sink.Send(c.synthetic(domain.EventTypeDone, nil))
		}

		if len(events) > 0 {
			idle = 0
		} else {
			idle++
			if idle >= c.cfg.HeartbeatPolls {
				if err := sink.Send(c.synthetic(domain.EventTypeHeartbeat, nil)); err != nil {
					return err
				}
				idle = 0
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}

	// Stream timeout is local to this client; the run keeps executing
	// and the client may reconnect with its cursor.
	return sink.Send(c.synthetic(domain.EventTypeError, map[string]interface{}{
		"message": "Stream timeout - inference took too long",
		"code":    "TIMEOUT",
	}))
}

func (c *Coordinator) synthetic(eventType domain.EventType, fields map[string]interface{}) domain.Event {
	return domain.Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		SessionID: c.run.SessionID,
		RunID:     c.run.RunID,
		Fields:    fields,
	}
}

// Replay delivers an already-archived event sequence from the cursor
// onward, followed by a single done event. A client replaying a
// finished run sees the same wire stream it would have seen live.
func Replay(sessionID, runID string, events []domain.Event, cursor int, sink Sink) error {
	if cursor < 0 {
		cursor = 0
	}
	for i := cursor; i < len(events); i++ {
		if err := sink.Send(events[i]); err != nil {
			return err
		}
	}
	return sink.Send(domain.Event{
		Type:      domain.EventTypeDone,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		RunID:     runID,
	})
}
