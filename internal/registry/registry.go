// Package registry tracks in-flight runs and their progress logs.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mhalvors/docchat/internal/runlog"
)

// RunState tracks one invocation of the reasoning worker. It belongs to
// exactly one session and carries the run's append-only event log.
type RunState struct {
	RunID     string
	SessionID string
	Message   string
	StartedAt time.Time
	Log       *runlog.Log

	mu        sync.Mutex
	completed bool
	result    string
	errMsg    string
}

// Completed reports whether the run has reached a terminal state.
func (r *RunState) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// Outcome returns the recorded result and error message. Both are empty
// until the run completes.
func (r *RunState) Outcome() (result, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.errMsg
}

// complete records the terminal outcome. The first caller wins; later
// calls are no-ops so a late worker cannot flip an already-recorded
// result or error.
func (r *RunState) complete(result, errMsg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completed {
		return false
	}
	r.completed = true
	r.result = result
	r.errMsg = errMsg
	return true
}

// Registry owns the table of in-flight runs. Runs are kept after
// completion so late-connecting clients can replay their logs.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*RunState
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{runs: make(map[string]*RunState)}
}

// Create registers a new run with a fresh id and an empty log.
func (g *Registry) Create(sessionID, message string) *RunState {
	run := &RunState{
		RunID:     "run_" + uuid.New().String(),
		SessionID: sessionID,
		Message:   message,
		StartedAt: time.Now().UTC(),
		Log:       runlog.New(),
	}
	g.mu.Lock()
	g.runs[run.RunID] = run
	g.mu.Unlock()
	return run
}

// Get returns the run with the given id, or nil if absent.
func (g *Registry) Get(runID string) *RunState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.runs[runID]
}

// Complete marks the run completed with the given outcome. It is
// idempotent: the first call records the outcome, later calls are
// ignored. Returns false if the run is unknown or already completed.
func (g *Registry) Complete(runID, result, errMsg string) bool {
	run := g.Get(runID)
	if run == nil {
		return false
	}
	return run.complete(result, errMsg)
}

// Remove drops a run from the registry, typically after its events have
// been archived into the owning session.
func (g *Registry) Remove(runID string) {
	g.mu.Lock()
	delete(g.runs, runID)
	g.mu.Unlock()
}

// StatusLabel reports the run state for client-facing responses.
func (r *RunState) StatusLabel() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case !r.completed:
		return "running"
	case r.errMsg != "":
		return "failed"
	default:
		return "done"
	}
}
