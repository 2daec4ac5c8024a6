package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is one structured progress record emitted during a run. Every
// event carries the common fields below; type-specific fields live in
// Fields and are flattened into the same JSON object on the wire.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	RunID     string
	Fields    map[string]interface{}
}

// MarshalJSON flattens the event into a single JSON object, with the
// timestamp in RFC 3339 form so persisted events round-trip losslessly.
func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(e.Fields)+4)
	for k, v := range e.Fields {
		m[k] = v
	}
	m["type"] = e.Type
	m["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	m["session_id"] = e.SessionID
	m["run_id"] = e.RunID
	return json.Marshal(m)
}

// UnmarshalJSON is the inverse of MarshalJSON: common fields are lifted
// out and everything else lands in Fields.
func (e *Event) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if v, ok := m["type"].(string); ok {
		e.Type = EventType(v)
	}
	if v, ok := m["timestamp"].(string); ok {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return fmt.Errorf("invalid event timestamp %q: %w", v, err)
		}
		e.Timestamp = ts
	}
	if v, ok := m["session_id"].(string); ok {
		e.SessionID = v
	}
	if v, ok := m["run_id"].(string); ok {
		e.RunID = v
	}
	delete(m, "type")
	delete(m, "timestamp")
	delete(m, "session_id")
	delete(m, "run_id")
	if len(m) > 0 {
		e.Fields = m
	} else {
		e.Fields = nil
	}
	return nil
}
