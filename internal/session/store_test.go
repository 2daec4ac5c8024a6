package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mhalvors/docchat/internal/domain"
	"github.com/mhalvors/docchat/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	repo, err := repository.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store, err := NewStore(context.Background(), repo)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

type fakeHandle struct {
	closed bool
	err    error
}

func (h *fakeHandle) Close() error {
	h.closed = true
	return h.err
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	session, err := store.Create(ctx, "claude-opus-4-5-20251101", []string{"doc1"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if session.SessionID == "" {
		t.Fatal("expected generated session id")
	}
	if session.Status != domain.SessionStatusActive {
		t.Fatalf("expected active status, got %s", session.Status)
	}

	got := store.Get(session.SessionID)
	if got == nil || got.ModelID != "claude-opus-4-5-20251101" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if store.Get("missing") != nil {
		t.Fatal("expected nil for unknown session")
	}
}

func TestListSortedAndFiltered(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, _ := store.Create(ctx, "gpt-5-mini", nil)
	time.Sleep(2 * time.Millisecond)
	second, _ := store.Create(ctx, "gpt-5-mini", nil)

	// End the first session with a message so it survives as "ended".
	if err := store.AddMessage(ctx, first.SessionID, domain.RoleUser, "hi", ""); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	if err := store.End(ctx, first.SessionID); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	all := store.List("")
	if len(all) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(all))
	}
	if all[0].SessionID != second.SessionID {
		t.Fatal("expected newest session first")
	}

	active := store.List(domain.SessionStatusActive)
	if len(active) != 1 || active[0].SessionID != second.SessionID {
		t.Fatalf("unexpected active filter result: %+v", active)
	}
	ended := store.List(domain.SessionStatusEnded)
	if len(ended) != 1 || ended[0].SessionID != first.SessionID {
		t.Fatalf("unexpected ended filter result: %+v", ended)
	}
}

func TestEndEmptySessionDeletes(t *testing.T) {
	ctx := context.Background()
	repo, err := repository.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()
	store, err := NewStore(ctx, repo)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	session, _ := store.Create(ctx, "gpt-5-mini", nil)
	handle := &fakeHandle{err: errors.New("teardown boom")}
	store.AttachHandle(session.SessionID, handle)

	if err := store.End(ctx, session.SessionID); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if !handle.closed {
		t.Fatal("expected worker handle torn down")
	}
	if store.Get(session.SessionID) != nil {
		t.Fatal("empty ended session should be removed from memory")
	}

	// Durable record must be gone too: a fresh store over the same
	// repository must not resurrect it.
	reloaded, err := NewStore(ctx, repo)
	if err != nil {
		t.Fatalf("failed to reload store: %v", err)
	}
	if got := reloaded.List(""); len(got) != 0 {
		t.Fatalf("expected no sessions after reload, got %d", len(got))
	}
}

func TestEndSessionWithMessages(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	session, _ := store.Create(ctx, "gpt-5-mini", nil)
	if err := store.AddMessage(ctx, session.SessionID, domain.RoleUser, "keep me", ""); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	if err := store.End(ctx, session.SessionID); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	got := store.Get(session.SessionID)
	if got == nil {
		t.Fatal("session with messages should be preserved")
	}
	if got.Status != domain.SessionStatusEnded || got.EndedAt == nil {
		t.Fatalf("expected ended status with timestamp, got %+v", got)
	}

	if err := store.End(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTearsDownHandle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	session, _ := store.Create(ctx, "gpt-5-mini", nil)
	handle := &fakeHandle{}
	store.AttachHandle(session.SessionID, handle)

	if err := store.Delete(ctx, session.SessionID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !handle.closed {
		t.Fatal("expected handle closed")
	}
	if store.Handle(session.SessionID) != nil {
		t.Fatal("expected handle detached")
	}
	if err := store.Delete(ctx, session.SessionID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateModelInvalidatesHandle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	session, _ := store.Create(ctx, "gpt-5-mini", nil)
	handle := &fakeHandle{}
	store.AttachHandle(session.SessionID, handle)

	if err := store.UpdateModel(ctx, session.SessionID, "gpt-5-nano-2025-08-07"); err != nil {
		t.Fatalf("UpdateModel failed: %v", err)
	}
	if !handle.closed {
		t.Fatal("model change must tear down the worker handle")
	}
	if got := store.Get(session.SessionID); got.ModelID != "gpt-5-nano-2025-08-07" {
		t.Fatalf("model not updated: %s", got.ModelID)
	}
}

func TestTitleDerivation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	long := "Tell me about the quarterly earnings report for Q3 and its implications"
	session, _ := store.Create(ctx, "gpt-5-mini", nil)
	if err := store.AddMessage(ctx, session.SessionID, domain.RoleUser, long, ""); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}

	got := store.Get(session.SessionID)
	if len(got.Title) > 53 {
		t.Fatalf("title too long (%d): %q", len(got.Title), got.Title)
	}
	if !strings.HasSuffix(got.Title, "...") {
		t.Fatalf("expected ellipsis, got %q", got.Title)
	}
	trimmed := strings.TrimSuffix(got.Title, "...")
	if !strings.HasPrefix(long, trimmed) {
		t.Fatalf("title %q is not a prefix of the message", got.Title)
	}
	if strings.HasSuffix(trimmed, " ") || long[len(trimmed)] != ' ' {
		t.Fatalf("title %q not cut at a word boundary", got.Title)
	}

	// Subsequent user messages must not change the title.
	if err := store.AddMessage(ctx, session.SessionID, domain.RoleUser, "And for Q4?", ""); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	if store.Get(session.SessionID).Title != got.Title {
		t.Fatal("title changed on a later message")
	}
}

func TestTitleShortMessageVerbatim(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	session, _ := store.Create(ctx, "gpt-5-mini", nil)
	if err := store.AddMessage(ctx, session.SessionID, domain.RoleUser, "Summarize the report", ""); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	if got := store.Get(session.SessionID).Title; got != "Summarize the report" {
		t.Fatalf("expected verbatim title, got %q", got)
	}
}

func TestDeriveTitleHardCutFallback(t *testing.T) {
	// A long first word forces the word-boundary cut below the minimum,
	// so the hard cut applies.
	content := strings.Repeat("a", 10) + " " + strings.Repeat("b", 60)
	title := deriveTitle(content)
	if title != content[:50]+"..." {
		t.Fatalf("expected hard cut, got %q", title)
	}
}

func TestArchiveAndReload(t *testing.T) {
	ctx := context.Background()
	repo, err := repository.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	store, err := NewStore(ctx, repo)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	session, _ := store.Create(ctx, "gpt-5-mini", []string{"doc1"})
	if err := store.AddMessage(ctx, session.SessionID, domain.RoleUser, "question", ""); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	if err := store.AddMessage(ctx, session.SessionID, domain.RoleAssistant, "answer", "run_1"); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	events := []domain.Event{
		{
			Type:      domain.EventTypeFinalAnswer,
			Timestamp: time.Now().UTC(),
			SessionID: session.SessionID,
			RunID:     "run_1",
			Fields:    map[string]interface{}{"answer": "answer", "total_iterations": float64(1), "total_time_ms": float64(10)},
		},
	}
	if err := store.ArchiveRunEvents(ctx, session.SessionID, "run_1", events); err != nil {
		t.Fatalf("ArchiveRunEvents failed: %v", err)
	}

	// A second store over the same repository simulates a restart.
	reloaded, err := NewStore(ctx, repo)
	if err != nil {
		t.Fatalf("failed to reload store: %v", err)
	}
	got := reloaded.Get(session.SessionID)
	if got == nil {
		t.Fatal("session not reloaded")
	}
	if len(got.Messages) != 2 || got.Messages[1].RunID != "run_1" {
		t.Fatalf("messages did not round-trip: %+v", got.Messages)
	}
	archived := got.ArchivedEvents("run_1")
	if len(archived) != 1 || archived[0].Type != domain.EventTypeFinalAnswer {
		t.Fatalf("archived events did not round-trip: %+v", archived)
	}
	if archived[0].Fields["answer"] != "answer" {
		t.Fatalf("event fields did not round-trip: %+v", archived[0].Fields)
	}
	if !archived[0].Timestamp.Equal(events[0].Timestamp) {
		t.Fatal("event timestamp did not round-trip")
	}
}
