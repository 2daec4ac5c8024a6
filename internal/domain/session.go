package domain

import "time"

// Message is one chat message within a session.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
}

// ChatSession is the durable record of a conversation. It outlives any
// single run; per-run progress events are archived into ProgressEvents
// once a run finishes so history can be replayed later.
type ChatSession struct {
	SessionID      string             `json:"session_id"`
	ModelID        string             `json:"model_id"`
	DocumentIDs    []string           `json:"document_ids"`
	Title          string             `json:"title,omitempty"`
	Status         SessionStatus      `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	EndedAt        *time.Time         `json:"ended_at,omitempty"`
	Messages       []Message          `json:"messages"`
	ProgressEvents map[string][]Event `json:"progress_events"`
}

// ArchivedEvents returns the archived event sequence for a run, or nil.
func (s *ChatSession) ArchivedEvents(runID string) []Event {
	if s.ProgressEvents == nil {
		return nil
	}
	return s.ProgressEvents[runID]
}
