package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MockEngine is a deterministic in-process engine for tests and keyless
// local development. It walks through a fixed two-iteration run,
// invoking every progress callback, and keeps a turn counter so
// multi-turn behavior is observable.
type MockEngine struct {
	Model string
	// Delay is inserted before each progress callback so streaming
	// tests can observe events arriving over time.
	Delay time.Duration

	turns  int
	closed bool
}

// Ensure MockEngine implements Engine interface.
var _ Engine = (*MockEngine)(nil)

// NewMockEngine creates a mock engine for the given model.
func NewMockEngine(model string) *MockEngine {
	return &MockEngine{Model: model}
}

// Completion simulates a short reasoning run over the request.
func (m *MockEngine) Completion(ctx context.Context, req Request, sink ProgressSink) (*Result, error) {
	if m.closed {
		return nil, fmt.Errorf("engine is closed")
	}
	m.turns++
	start := time.Now()

	maxIterations := req.MaxIterations
	if maxIterations == 0 {
		maxIterations = 2
	}

	step := func(fn func()) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.Delay):
		}
		fn()
		return nil
	}

	if err := step(func() {
		sink.OnMetadata(Metadata{Model: m.Model, MaxIterations: maxIterations, MaxDepth: req.MaxDepth})
	}); err != nil {
		return nil, err
	}
	if err := step(func() { sink.OnIterationStart(1, maxIterations) }); err != nil {
		return nil, err
	}
	if err := step(func() {
		sink.OnLLMResponse(1, "Let me inspect the context.", 12)
	}); err != nil {
		return nil, err
	}
	if err := step(func() {
		sink.OnCodeExecution(1, CodeExecution{
			Code:   `print(len(context_0))`,
			Stdout: fmt.Sprintf("%d\n", len(req.Prompt)),
			TimeMs: 3,
		})
	}); err != nil {
		return nil, err
	}
	if err := step(func() { sink.OnIterationStart(2, maxIterations) }); err != nil {
		return nil, err
	}
	if err := step(func() {
		sink.OnSubcall(2, m.Model, "[MOCK] sub-answer", 8)
	}); err != nil {
		return nil, err
	}

	answer := m.answerFor(req.RootPrompt)
	totalMs := time.Since(start).Milliseconds()
	if err := step(func() { sink.OnFinalAnswer(answer, 2, totalMs) }); err != nil {
		return nil, err
	}

	usage := UsageSummary{
		InputTokens:  (len(req.Prompt) + len(req.RootPrompt)) / 4,
		OutputTokens: len(answer) / 4,
		ModelsUsed:   []string{m.Model},
	}
	if err := step(func() { sink.OnUsageSummary(usage) }); err != nil {
		return nil, err
	}

	return &Result{
		Response:        answer,
		TotalIterations: 2,
		ExecutionTimeMs: totalMs,
		Usage:           usage,
	}, nil
}

func (m *MockEngine) answerFor(rootPrompt string) string {
	question := rootPrompt
	if i := strings.LastIndex(rootPrompt, "CURRENT QUESTION: "); i >= 0 {
		question = rootPrompt[i+len("CURRENT QUESTION: "):]
	}
	return fmt.Sprintf("[MOCK] Answer %d to: %s", m.turns, truncate(question, 100))
}

// Close marks the engine unusable, mirroring a real worker teardown.
func (m *MockEngine) Close() error {
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockEngine) Closed() bool {
	return m.closed
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
