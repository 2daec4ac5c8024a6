// Package session owns chat sessions, their message history, and their
// durability. Sessions outlive runs; per-run progress events are
// archived here once a run finishes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mhalvors/docchat/internal/domain"
)

// ErrNotFound is returned for operations on an unknown session.
var ErrNotFound = errors.New("session not found")

// Repository is the durable storage for session records.
type Repository interface {
	SaveSession(ctx context.Context, session *domain.ChatSession) error
	DeleteSession(ctx context.Context, sessionID string) error
	LoadSessions(ctx context.Context) ([]*domain.ChatSession, error)
}

// WorkerHandle is a live reasoning-engine instance attached to a
// session for conversational continuity. It is owned exclusively by the
// session and is never persisted.
type WorkerHandle interface {
	Close() error
}

// Store manages the in-memory session table and its durable records.
// All access goes through the store's mutex: client requests against a
// session are usually sequential, but title or model updates can race
// with an in-flight run's completion callback.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*domain.ChatSession
	handles  map[string]WorkerHandle
	repo     Repository
}

// NewStore creates a store and loads every persisted session record.
func NewStore(ctx context.Context, repo Repository) (*Store, error) {
	s := &Store{
		sessions: make(map[string]*domain.ChatSession),
		handles:  make(map[string]WorkerHandle),
		repo:     repo,
	}
	persisted, err := repo.LoadSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted sessions: %w", err)
	}
	for _, session := range persisted {
		s.sessions[session.SessionID] = session
	}
	if len(persisted) > 0 {
		log.Printf("INFO: loaded %d persisted sessions", len(persisted))
	}
	return s, nil
}

// Create registers and persists a new active session.
func (s *Store) Create(ctx context.Context, modelID string, documentIDs []string) (*domain.ChatSession, error) {
	session := &domain.ChatSession{
		SessionID:      uuid.New().String(),
		ModelID:        modelID,
		DocumentIDs:    append([]string(nil), documentIDs...),
		Status:         domain.SessionStatusActive,
		CreatedAt:      time.Now().UTC(),
		ProgressEvents: make(map[string][]domain.Event),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.SessionID] = session
	if err := s.repo.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return cloneSession(session), nil
}

// Get returns a snapshot of the session, or nil if absent.
func (s *Store) Get(sessionID string) *domain.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	return cloneSession(session)
}

// List returns session snapshots, optionally filtered by status, sorted
// by creation time descending (newest first).
func (s *Store) List(status domain.SessionStatus) []*domain.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.ChatSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		if status != "" && session.Status != status {
			continue
		}
		out = append(out, cloneSession(session))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// End finishes a session. A session with no messages is deleted
// outright (history with no content has no value); otherwise it is
// marked ended and persisted. Either way the live worker handle is torn
// down.
func (s *Store) End(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.closeHandleLocked(sessionID)

	if len(session.Messages) == 0 {
		delete(s.sessions, sessionID)
		return s.repo.DeleteSession(ctx, sessionID)
	}

	now := time.Now().UTC()
	session.Status = domain.SessionStatusEnded
	session.EndedAt = &now
	return s.repo.SaveSession(ctx, session)
}

// Delete removes a session and its durable record unconditionally.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	s.closeHandleLocked(sessionID)
	delete(s.sessions, sessionID)
	return s.repo.DeleteSession(ctx, sessionID)
}

// UpdateTitle sets an explicit title and persists.
func (s *Store) UpdateTitle(ctx context.Context, sessionID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	session.Title = title
	return s.repo.SaveSession(ctx, session)
}

// UpdateModel switches the session's model. Conversational state held
// by the live worker is tied to the model configuration, so any
// attached handle is torn down.
func (s *Store) UpdateModel(ctx context.Context, sessionID, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	session.ModelID = modelID
	s.closeHandleLocked(sessionID)
	return s.repo.SaveSession(ctx, session)
}

// AddMessage appends a message and persists. The first user message
// derives the session title when none is set.
func (s *Store) AddMessage(ctx context.Context, sessionID, role, content, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	session.Messages = append(session.Messages, domain.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
	})
	if session.Title == "" && role == domain.RoleUser {
		session.Title = deriveTitle(content)
	}
	return s.repo.SaveSession(ctx, session)
}

// History returns a snapshot of the session's messages.
func (s *Store) History(sessionID string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	return append([]domain.Message(nil), session.Messages...)
}

// ArchiveRunEvents stores the full event sequence for a run and persists.
func (s *Store) ArchiveRunEvents(ctx context.Context, sessionID, runID string, events []domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if session.ProgressEvents == nil {
		session.ProgressEvents = make(map[string][]domain.Event)
	}
	session.ProgressEvents[runID] = append([]domain.Event(nil), events...)
	return s.repo.SaveSession(ctx, session)
}

// ArchivedEvents returns the archived event sequence for a run, or nil.
func (s *Store) ArchivedEvents(sessionID, runID string) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	return append([]domain.Event(nil), session.ProgressEvents[runID]...)
}

// AttachHandle attaches a live worker handle to the session, replacing
// (and tearing down) any previous one.
func (s *Store) AttachHandle(sessionID string, handle WorkerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeHandleLocked(sessionID)
	s.handles[sessionID] = handle
}

// Handle returns the session's live worker handle, or nil.
func (s *Store) Handle(sessionID string) WorkerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[sessionID]
}

// closeHandleLocked tears down the session's worker handle best-effort.
// Teardown errors are swallowed.
func (s *Store) closeHandleLocked(sessionID string) {
	if handle, ok := s.handles[sessionID]; ok {
		if err := handle.Close(); err != nil {
			log.Printf("WARN: worker handle teardown for session %s: %v", sessionID, err)
		}
		delete(s.handles, sessionID)
	}
}

func cloneSession(session *domain.ChatSession) *domain.ChatSession {
	out := *session
	out.DocumentIDs = append([]string(nil), session.DocumentIDs...)
	out.Messages = append([]domain.Message(nil), session.Messages...)
	if session.ProgressEvents != nil {
		out.ProgressEvents = make(map[string][]domain.Event, len(session.ProgressEvents))
		for runID, events := range session.ProgressEvents {
			out.ProgressEvents[runID] = append([]domain.Event(nil), events...)
		}
	}
	return &out
}
