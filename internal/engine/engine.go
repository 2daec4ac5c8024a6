// Package engine defines the boundary to the external reasoning worker
// and provides client implementations for it.
package engine

import "context"

// Metadata describes the run configuration announced by the worker
// before its first iteration.
type Metadata struct {
	Model         string
	MaxIterations int
	MaxDepth      int
}

// CodeExecution reports one executed code block and its result.
type CodeExecution struct {
	Code         string
	Stdout       string
	Stderr       string
	TimeMs       int64
	SubcallCount int
}

// UsageSummary aggregates token usage across all models in a run.
type UsageSummary struct {
	InputTokens  int
	OutputTokens int
	ModelsUsed   []string
}

// ProgressSink receives structured progress callbacks while a
// completion executes. Implementations must be safe to call from the
// worker's goroutine.
type ProgressSink interface {
	OnMetadata(meta Metadata)
	OnIterationStart(iteration, maxIterations int)
	OnLLMResponse(iteration int, response string, timeMs int64)
	OnCodeExecution(iteration int, exec CodeExecution)
	OnSubcall(iteration int, model, responsePreview string, timeMs int64)
	OnFinalAnswer(answer string, totalIterations int, totalTimeMs int64)
	OnUsageSummary(usage UsageSummary)
}

// Request carries one completion invocation. Prompt is the document
// context (first turn only); RootPrompt is the conversation-history-
// augmented question.
type Request struct {
	Model         string `json:"model"`
	Prompt        string `json:"prompt"`
	RootPrompt    string `json:"root_prompt"`
	MaxIterations int    `json:"max_iterations"`
	MaxDepth      int    `json:"max_depth"`
}

// Result is the terminal outcome of a completion.
type Result struct {
	Response        string
	TotalIterations int
	ExecutionTimeMs int64
	Usage           UsageSummary
}

// Engine is a live reasoning worker bound to one session. It keeps
// conversational state across completions, so a session owns exactly
// one instance until teardown.
type Engine interface {
	// Completion runs one reasoning pass, reporting progress through
	// the sink, and returns the terminal result or an error.
	Completion(ctx context.Context, req Request, sink ProgressSink) (*Result, error)

	// Close releases any conversational state held by the worker.
	Close() error
}

// Factory creates live engine instances for sessions.
type Factory interface {
	New(modelID string) (Engine, error)
}
