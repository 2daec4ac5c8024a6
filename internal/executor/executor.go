// Package executor runs reasoning completions in the background,
// bridging worker progress into run logs and recording outcomes.
package executor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mhalvors/docchat/internal/bridge"
	"github.com/mhalvors/docchat/internal/config"
	"github.com/mhalvors/docchat/internal/document"
	"github.com/mhalvors/docchat/internal/domain"
	"github.com/mhalvors/docchat/internal/engine"
	"github.com/mhalvors/docchat/internal/registry"
	"github.com/mhalvors/docchat/internal/session"
)

// historyMessageLimit caps each prior message's contribution to the
// conversation preamble.
const historyMessageLimit = 2000

// continuationPrompt replaces the document context on follow-up turns;
// the worker already holds the documents.
const continuationPrompt = "[Continuation of conversation - documents already in context_0]"

// Executor launches and tracks background runs. One run executes per
// run id; runs across sessions execute concurrently.
type Executor struct {
	cfg      *config.Config
	sessions *session.Store
	docs     *document.Store
	registry *registry.Registry
	factory  engine.Factory

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// New creates an executor.
func New(cfg *config.Config, sessions *session.Store, docs *document.Store, reg *registry.Registry, factory engine.Factory) *Executor {
	return &Executor{
		cfg:      cfg,
		sessions: sessions,
		docs:     docs,
		registry: reg,
		factory:  factory,
		active:   make(map[string]context.CancelFunc),
	}
}

// Submit validates the request, registers a run, and starts its
// background goroutine. It returns the run immediately; progress flows
// through the run's event log.
func (e *Executor) Submit(sessionID, message string) (*registry.RunState, error) {
	sess := e.sessions.Get(sessionID)
	if sess == nil {
		return nil, session.ErrNotFound
	}
	if sess.Status != domain.SessionStatusActive {
		return nil, fmt.Errorf("session %s has ended", sessionID)
	}

	// Missing credentials fail the request up front rather than as an
	// error event minutes into a stream.
	provider := config.ModelProvider(sess.ModelID)
	if !e.cfg.ValidateAPIKey(provider) {
		return nil, fmt.Errorf("no API key configured for provider %s", provider)
	}

	run := e.registry.Create(sessionID, message)
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.EngineTimeout)

	e.mu.Lock()
	e.active[run.RunID] = cancel
	e.mu.Unlock()

	go e.execute(ctx, run, sess)
	return run, nil
}

// Cancel aborts a running run best-effort. Returns false if the run is
// unknown or already finished.
func (e *Executor) Cancel(runID string) bool {
	e.mu.Lock()
	cancel, ok := e.active[runID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	if !e.registry.Complete(runID, "", "Cancelled by user") {
		return false
	}
	if run := e.registry.Get(runID); run != nil {
		b := bridge.New(run.SessionID, runID, run.Log)
		b.Emit(domain.EventTypeError, map[string]interface{}{
			"message": "Cancelled by user",
			"code":    "CANCELLED",
		})
	}
	cancel()
	return true
}

func (e *Executor) execute(ctx context.Context, run *registry.RunState, sess *domain.ChatSession) {
	defer func() {
		e.mu.Lock()
		if cancel, ok := e.active[run.RunID]; ok {
			cancel()
			delete(e.active, run.RunID)
		}
		e.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: run %s panicked: %v", run.RunID, r)
			e.fail(run, fmt.Sprintf("internal error: %v", r))
		}
	}()

	b := bridge.New(sess.SessionID, run.RunID, run.Log)
	b.Emit(domain.EventTypeSessionStart, map[string]interface{}{
		"model":          sess.ModelID,
		"document_count": len(sess.DocumentIDs),
		"total_chars":    e.docs.TotalChars(sess.DocumentIDs),
	})

	eng, firstTurn, err := e.engineFor(sess)
	if err != nil {
		e.fail(run, err.Error())
		return
	}

	req, err := e.buildRequest(sess, run.Message, firstTurn)
	if err != nil {
		e.fail(run, err.Error())
		return
	}

	started := time.Now()
	result, err := eng.Completion(ctx, req, b)
	if err != nil {
		if ctx.Err() != nil && e.registry.Get(run.RunID).Completed() {
			// Cancelled runs have already recorded their outcome.
			return
		}
		e.fail(run, err.Error())
		return
	}
	log.Printf("INFO: run %s finished in %s (%d iterations)", run.RunID, time.Since(started).Round(time.Millisecond), result.TotalIterations)

	e.registry.Complete(run.RunID, result.Response, "")

	// Record the exchange and archive the run's events so the session
	// can replay them after the run leaves the registry.
	bg := context.Background()
	if err := e.sessions.AddMessage(bg, sess.SessionID, domain.RoleUser, run.Message, ""); err != nil {
		log.Printf("WARN: failed to record user message for session %s: %v", sess.SessionID, err)
	}
	if err := e.sessions.AddMessage(bg, sess.SessionID, domain.RoleAssistant, result.Response, run.RunID); err != nil {
		log.Printf("WARN: failed to record assistant message for session %s: %v", sess.SessionID, err)
	}
	if err := e.sessions.ArchiveRunEvents(bg, sess.SessionID, run.RunID, run.Log.Snapshot()); err != nil {
		log.Printf("WARN: failed to archive events for run %s: %v", run.RunID, err)
	}
}

// engineFor returns the session's live engine, creating and attaching
// one on the session's first run. firstTurn reports whether a new
// engine was created and therefore needs the document context.
func (e *Executor) engineFor(sess *domain.ChatSession) (engine.Engine, bool, error) {
	if handle := e.sessions.Handle(sess.SessionID); handle != nil {
		if eng, ok := handle.(engine.Engine); ok {
			return eng, false, nil
		}
	}
	eng, err := e.factory.New(sess.ModelID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create reasoning engine: %w", err)
	}
	e.sessions.AttachHandle(sess.SessionID, eng)
	return eng, true, nil
}

func (e *Executor) buildRequest(sess *domain.ChatSession, message string, firstTurn bool) (engine.Request, error) {
	prompt := continuationPrompt
	if firstTurn {
		combined, err := e.docs.CombinedContext(sess.DocumentIDs)
		if err != nil {
			return engine.Request{}, fmt.Errorf("failed to assemble document context: %w", err)
		}
		prompt = combined
	}
	return engine.Request{
		Model:         sess.ModelID,
		Prompt:        prompt,
		RootPrompt:    buildRootPrompt(sess.Messages, message),
		MaxIterations: e.cfg.EngineMaxIterations,
		MaxDepth:      e.cfg.EngineMaxDepth,
	}, nil
}

func (e *Executor) fail(run *registry.RunState, message string) {
	if !e.registry.Complete(run.RunID, "", message) {
		return
	}
	b := bridge.New(run.SessionID, run.RunID, run.Log)
	b.Emit(domain.EventTypeError, map[string]interface{}{
		"message": message,
		"code":    "INFERENCE_ERROR",
	})
	bg := context.Background()
	if err := e.sessions.ArchiveRunEvents(bg, run.SessionID, run.RunID, run.Log.Snapshot()); err != nil {
		log.Printf("WARN: failed to archive events for run %s: %v", run.RunID, err)
	}
}

// buildRootPrompt prefixes the question with prior turns. Long messages
// are truncated so a deep conversation cannot blow up the prompt.
func buildRootPrompt(history []domain.Message, message string) string {
	if len(history) == 0 {
		return message
	}
	var b strings.Builder
	b.WriteString("CONVERSATION HISTORY (for context):\n\n")
	for _, msg := range history {
		role := "User"
		if msg.Role == domain.RoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n\n", role, truncateRunes(msg.Content, historyMessageLimit))
	}
	b.WriteString("CURRENT QUESTION: ")
	b.WriteString(message)
	return b.String()
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
