package domain

import "time"

// CreateSessionRequest is the request body for creating a session.
type CreateSessionRequest struct {
	ModelID     string   `json:"model_id"`
	DocumentIDs []string `json:"document_ids"`
}

// UpdateTitleRequest is the request body for renaming a session.
type UpdateTitleRequest struct {
	Title string `json:"title"`
}

// UpdateModelRequest is the request body for switching a session's model.
type UpdateModelRequest struct {
	ModelID string `json:"model_id"`
}

// SubmitMessageRequest is the request body for submitting a user message.
type SubmitMessageRequest struct {
	Message string `json:"message"`
}

// SubmitMessageResponse is returned after a message is accepted.
type SubmitMessageResponse struct {
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}

// SessionInfo is the client-facing summary of a session.
type SessionInfo struct {
	SessionID    string        `json:"session_id"`
	ModelID      string        `json:"model_id"`
	DocumentIDs  []string      `json:"document_ids"`
	Title        string        `json:"title,omitempty"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
	MessageCount int           `json:"message_count"`
}

// NewSessionInfo builds the summary view of a session.
func NewSessionInfo(s *ChatSession) SessionInfo {
	return SessionInfo{
		SessionID:    s.SessionID,
		ModelID:      s.ModelID,
		DocumentIDs:  s.DocumentIDs,
		Title:        s.Title,
		Status:       s.Status,
		CreatedAt:    s.CreatedAt,
		EndedAt:      s.EndedAt,
		MessageCount: len(s.Messages),
	}
}
