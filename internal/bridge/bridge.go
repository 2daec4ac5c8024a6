// Package bridge relays worker progress callbacks into a run's event
// log as canonical events.
package bridge

import (
	"sync"
	"time"

	"github.com/mhalvors/docchat/internal/domain"
	"github.com/mhalvors/docchat/internal/engine"
	"github.com/mhalvors/docchat/internal/runlog"
)

// previewLimit caps subcall response previews on the wire.
const previewLimit = 500

// Bridge is bound to one (session, run) pair. Each callback appends
// exactly one event to the run's log, synchronously, with a
// server-assigned timestamp. Timestamps are monotonically
// non-decreasing regardless of worker behavior. The bridge does no
// filtering or buffering.
type Bridge struct {
	sessionID string
	runID     string
	log       *runlog.Log

	mu   sync.Mutex
	last time.Time
}

// Ensure Bridge implements the worker's progress callback surface.
var _ engine.ProgressSink = (*Bridge)(nil)

// New creates a bridge writing to the given run log.
func New(sessionID, runID string, log *runlog.Log) *Bridge {
	return &Bridge{sessionID: sessionID, runID: runID, log: log}
}

// Emit appends one event of the given type. The caller-supplied
// timestamp, if any, is ignored in favor of the server clock.
func (b *Bridge) Emit(eventType domain.EventType, fields map[string]interface{}) {
	b.mu.Lock()
	now := time.Now().UTC()
	if now.Before(b.last) {
		now = b.last
	}
	b.last = now
	b.log.Append(domain.Event{
		Type:      eventType,
		Timestamp: now,
		SessionID: b.sessionID,
		RunID:     b.runID,
		Fields:    fields,
	})
	b.mu.Unlock()
}

// OnMetadata announces the worker's run configuration before the first
// iteration.
func (b *Bridge) OnMetadata(meta engine.Metadata) {
	b.Emit(domain.EventTypeThinking, map[string]interface{}{
		"message":        "Analyzing your documents...",
		"max_iterations": meta.MaxIterations,
	})
}

func (b *Bridge) OnIterationStart(iteration, maxIterations int) {
	b.Emit(domain.EventTypeIterationStart, map[string]interface{}{
		"iteration":      iteration,
		"max_iterations": maxIterations,
	})
}

func (b *Bridge) OnLLMResponse(iteration int, response string, timeMs int64) {
	b.Emit(domain.EventTypeLLMResponse, map[string]interface{}{
		"iteration": iteration,
		"response":  response,
		"time_ms":   timeMs,
	})
}

// OnCodeExecution emits the code_start/code_result pair for one
// executed block.
func (b *Bridge) OnCodeExecution(iteration int, exec engine.CodeExecution) {
	b.Emit(domain.EventTypeCodeStart, map[string]interface{}{
		"iteration": iteration,
		"code":      exec.Code,
	})
	b.Emit(domain.EventTypeCodeResult, map[string]interface{}{
		"iteration":     iteration,
		"stdout":        exec.Stdout,
		"stderr":        exec.Stderr,
		"time_ms":       exec.TimeMs,
		"subcall_count": exec.SubcallCount,
	})
}

func (b *Bridge) OnSubcall(iteration int, model, responsePreview string, timeMs int64) {
	if len(responsePreview) > previewLimit {
		responsePreview = responsePreview[:previewLimit]
	}
	b.Emit(domain.EventTypeSubcallComplete, map[string]interface{}{
		"iteration":        iteration,
		"model":            model,
		"response_preview": responsePreview,
		"time_ms":          timeMs,
	})
}

func (b *Bridge) OnFinalAnswer(answer string, totalIterations int, totalTimeMs int64) {
	b.Emit(domain.EventTypeFinalAnswer, map[string]interface{}{
		"answer":           answer,
		"total_iterations": totalIterations,
		"total_time_ms":    totalTimeMs,
	})
}

func (b *Bridge) OnUsageSummary(usage engine.UsageSummary) {
	b.Emit(domain.EventTypeUsageSummary, map[string]interface{}{
		"input_tokens":  usage.InputTokens,
		"output_tokens": usage.OutputTokens,
		"models_used":   usage.ModelsUsed,
	})
}
