// Package domain defines the core domain models for the chat backend.
package domain

// SessionStatus represents the lifecycle state of a chat session.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnded  SessionStatus = "ended"
)

// EventType represents the type of a progress event.
type EventType string

const (
	EventTypeSessionStart    EventType = "session_start"
	EventTypeThinking        EventType = "thinking"
	EventTypeIterationStart  EventType = "iteration_start"
	EventTypeLLMResponse     EventType = "llm_response"
	EventTypeCodeStart       EventType = "code_start"
	EventTypeCodeResult      EventType = "code_result"
	EventTypeSubcallComplete EventType = "subcall_complete"
	EventTypeFinalAnswer     EventType = "final_answer"
	EventTypeUsageSummary    EventType = "usage_summary"
	EventTypeError           EventType = "error"

	// Synthesized by the stream coordinator, never written to a run log.
	EventTypeHeartbeat EventType = "heartbeat"
	EventTypeDone      EventType = "done"
)

// IsTerminal reports whether the event type ends a run's progress sequence.
func (t EventType) IsTerminal() bool {
	return t == EventTypeFinalAnswer || t == EventTypeError
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
