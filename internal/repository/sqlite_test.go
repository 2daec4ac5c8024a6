package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mhalvors/docchat/internal/domain"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testSession(id string) *domain.ChatSession {
	now := time.Date(2026, 3, 14, 9, 30, 0, 123456000, time.UTC)
	return &domain.ChatSession{
		SessionID:   id,
		ModelID:     "claude-opus-4-5-20251101",
		DocumentIDs: []string{"doc1", "doc2"},
		Title:       "Quarterly earnings",
		Status:      domain.SessionStatusActive,
		CreatedAt:   now,
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "What changed?", Timestamp: now},
			{Role: domain.RoleAssistant, Content: "Revenue grew.", Timestamp: now.Add(time.Minute), RunID: "run_1"},
		},
		ProgressEvents: map[string][]domain.Event{
			"run_1": {
				{
					Type:      domain.EventTypeFinalAnswer,
					Timestamp: now.Add(30 * time.Second),
					SessionID: id,
					RunID:     "run_1",
					Fields:    map[string]interface{}{"answer": "Revenue grew.", "total_iterations": float64(3), "total_time_ms": float64(4200)},
				},
			},
		},
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	want := testSession("s1")
	if err := repo.SaveSession(ctx, want); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	sessions, err := repo.LoadSessions(ctx)
	if err != nil {
		t.Fatalf("LoadSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}

	// Compare canonical JSON forms: map key order is stable under
	// json.Marshal, so equal records produce identical bytes.
	wantJSON, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal want: %v", err)
	}
	gotJSON, err := json.Marshal(sessions[0])
	if err != nil {
		t.Fatalf("marshal got: %v", err)
	}
	if string(wantJSON) != string(gotJSON) {
		t.Fatalf("round-trip mismatch:\nwant %s\ngot  %s", wantJSON, gotJSON)
	}
	if !sessions[0].Messages[0].Timestamp.Equal(want.Messages[0].Timestamp) {
		t.Fatal("message timestamp did not round-trip")
	}
}

func TestSaveIsUpsert(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	s := testSession("s1")
	if err := repo.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	s.Title = "Renamed"
	if err := repo.SaveSession(ctx, s); err != nil {
		t.Fatalf("second SaveSession failed: %v", err)
	}

	sessions, err := repo.LoadSessions(ctx)
	if err != nil {
		t.Fatalf("LoadSessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Title != "Renamed" {
		t.Fatalf("expected single updated record, got %+v", sessions)
	}
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.SaveSession(ctx, testSession("s1")); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := repo.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if err := repo.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("deleting an absent session should not fail: %v", err)
	}

	sessions, err := repo.LoadSessions(ctx)
	if err != nil {
		t.Fatalf("LoadSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions, got %d", len(sessions))
	}
}

func TestLoadSkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.SaveSession(ctx, testSession("good")); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if _, err := repo.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, record, created_at) VALUES (?, ?, ?)`,
		"bad", "{not json", time.Now()); err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}

	sessions, err := repo.LoadSessions(ctx)
	if err != nil {
		t.Fatalf("LoadSessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].SessionID != "good" {
		t.Fatalf("expected only the good session, got %+v", sessions)
	}
}
