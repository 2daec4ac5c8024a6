package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/mhalvors/docchat/internal/config"
	"github.com/mhalvors/docchat/internal/document"
	"github.com/mhalvors/docchat/internal/domain"
	"github.com/mhalvors/docchat/internal/engine"
	"github.com/mhalvors/docchat/internal/executor"
	"github.com/mhalvors/docchat/internal/registry"
	"github.com/mhalvors/docchat/internal/session"
)

type memoryRepo struct{}

func (memoryRepo) SaveSession(context.Context, *domain.ChatSession) error { return nil }
func (memoryRepo) DeleteSession(context.Context, string) error            { return nil }
func (memoryRepo) LoadSessions(context.Context) ([]*domain.ChatSession, error) {
	return nil, nil
}

type fixture struct {
	server   *httptest.Server
	sessions *session.Store
	registry *registry.Registry
	executor *executor.Executor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		AnthropicAPIKey:      "test-key",
		EngineTimeout:        5 * time.Second,
		EngineMaxIterations:  15,
		StreamPollInterval:   time.Millisecond,
		StreamHeartbeatPolls: 30,
		StreamMaxPolls:       2000,
	}
	sessions, err := session.NewStore(context.Background(), memoryRepo{})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	docs, err := document.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("document.NewStore failed: %v", err)
	}
	reg := registry.New()
	exec := executor.New(cfg, sessions, docs, reg, &engine.MockFactory{})

	e := echo.New()
	NewServer(cfg, sessions, reg).RegisterRoutes(e)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return &fixture{server: server, sessions: sessions, registry: reg, executor: exec}
}

func (f *fixture) wsURL(sessionID, runID, query string) string {
	url := strings.Replace(f.server.URL, "http://", "ws://", 1)
	return url + "/v1/sessions/" + sessionID + "/runs/" + runID + "/ws" + query
}

func readUntilClose(t *testing.T, conn *websocket.Conn) []domain.Event {
	t.Helper()
	var events []domain.Event
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var evt domain.Event
		if err := conn.ReadJSON(&evt); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return events
			}
			t.Fatalf("read failed after %d events: %v", len(events), err)
		}
		events = append(events, evt)
	}
}

func TestStreamDeliversRunOverWebSocket(t *testing.T) {
	f := newFixture(t)
	sess, err := f.sessions.Create(context.Background(), "claude-sonnet-4-5-20250929", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	run, err := f.executor.Submit(sess.SessionID, "hello")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(sess.SessionID, run.RunID, ""), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	events := readUntilClose(t, conn)
	if len(events) < 2 {
		t.Fatalf("expected events plus done, got %d", len(events))
	}
	if events[0].Type != domain.EventTypeSessionStart {
		t.Fatalf("expected session_start first, got %q", events[0].Type)
	}
	if events[len(events)-1].Type != domain.EventTypeDone {
		t.Fatalf("expected done last, got %q", events[len(events)-1].Type)
	}
}

func TestStreamResumesFromCursor(t *testing.T) {
	f := newFixture(t)
	sess, err := f.sessions.Create(context.Background(), "claude-sonnet-4-5-20250929", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	run, err := f.executor.Submit(sess.SessionID, "hello")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && !run.Completed() {
		time.Sleep(2 * time.Millisecond)
	}
	if !run.Completed() {
		t.Fatal("run did not complete")
	}
	total := run.Log.Len()

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(sess.SessionID, run.RunID, "?cursor=2"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	events := readUntilClose(t, conn)
	if len(events) != total-2+1 {
		t.Fatalf("expected %d events, got %d", total-1, len(events))
	}
}

func TestStreamRejectsUnknownRun(t *testing.T) {
	f := newFixture(t)
	sess, err := f.sessions.Create(context.Background(), "claude-sonnet-4-5-20250929", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	resp, err := http.Get(f.server.URL + "/v1/sessions/" + sess.SessionID + "/runs/run_missing/ws")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
