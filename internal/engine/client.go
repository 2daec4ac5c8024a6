package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client invokes a remote reasoning worker over HTTP and consumes its
// SSE progress stream, dispatching each frame to the progress sink.
type Client struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

// Ensure Client implements Engine interface.
var _ Engine = (*Client)(nil)

// NewClient creates a client for the worker at the given endpoint.
func NewClient(endpoint, model string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		model:    model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// frame is one JSON progress frame on the worker's SSE stream.
type frame struct {
	Type            string   `json:"type"`
	Model           string   `json:"model,omitempty"`
	MaxIterations   int      `json:"max_iterations,omitempty"`
	MaxDepth        int      `json:"max_depth,omitempty"`
	Iteration       int      `json:"iteration,omitempty"`
	Response        string   `json:"response,omitempty"`
	TimeMs          int64    `json:"time_ms,omitempty"`
	Code            string   `json:"code,omitempty"`
	Stdout          string   `json:"stdout,omitempty"`
	Stderr          string   `json:"stderr,omitempty"`
	SubcallCount    int      `json:"subcall_count,omitempty"`
	ResponsePreview string   `json:"response_preview,omitempty"`
	Answer          string   `json:"answer,omitempty"`
	TotalIterations int      `json:"total_iterations,omitempty"`
	TotalTimeMs     int64    `json:"total_time_ms,omitempty"`
	InputTokens     int      `json:"input_tokens,omitempty"`
	OutputTokens    int      `json:"output_tokens,omitempty"`
	ModelsUsed      []string `json:"models_used,omitempty"`
	Message         string   `json:"message,omitempty"`
	ErrorCode       string   `json:"error_code,omitempty"`
}

// Completion posts the request to the worker's /completion endpoint and
// streams progress until the final answer arrives.
func (c *Client) Completion(ctx context.Context, req Request, sink ProgressSink) (*Result, error) {
	req.Model = c.model
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.endpoint, "/") + "/completion"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke worker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("worker returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return c.consumeStream(resp.Body, sink)
}

// consumeStream parses the SSE stream and dispatches frames until the
// terminal frame.
func (c *Client) consumeStream(reader io.Reader, sink ProgressSink) (*Result, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var result *Result
	var usage *UsageSummary
	var data strings.Builder

	flush := func() error {
		if data.Len() == 0 {
			return nil
		}
		payload := data.String()
		data.Reset()

		var f frame
		if err := json.Unmarshal([]byte(payload), &f); err != nil {
			return fmt.Errorf("failed to parse progress frame: %w", err)
		}
		res, u, err := c.dispatch(f, sink)
		if err != nil {
			return err
		}
		if res != nil {
			result = res
		}
		if u != nil {
			usage = u
		}
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		if strings.HasPrefix(line, "data:") {
			chunk := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(chunk)
		}
		// Ignore comments (lines starting with :) and other fields.
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("worker stream failed: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("worker stream ended without a final answer")
	}
	// The usage summary frame arrives after the final answer.
	if usage != nil {
		result.Usage = *usage
	}
	return result, nil
}

// dispatch routes one frame to the sink. A final_answer frame produces
// the result; an error frame aborts the completion.
func (c *Client) dispatch(f frame, sink ProgressSink) (*Result, *UsageSummary, error) {
	switch f.Type {
	case "metadata":
		sink.OnMetadata(Metadata{
			Model:         f.Model,
			MaxIterations: f.MaxIterations,
			MaxDepth:      f.MaxDepth,
		})
	case "iteration_start":
		sink.OnIterationStart(f.Iteration, f.MaxIterations)
	case "llm_response":
		sink.OnLLMResponse(f.Iteration, f.Response, f.TimeMs)
	case "code_execution":
		sink.OnCodeExecution(f.Iteration, CodeExecution{
			Code:         f.Code,
			Stdout:       f.Stdout,
			Stderr:       f.Stderr,
			TimeMs:       f.TimeMs,
			SubcallCount: f.SubcallCount,
		})
	case "subcall":
		sink.OnSubcall(f.Iteration, f.Model, f.ResponsePreview, f.TimeMs)
	case "final_answer":
		sink.OnFinalAnswer(f.Answer, f.TotalIterations, f.TotalTimeMs)
		return &Result{
			Response:        f.Answer,
			TotalIterations: f.TotalIterations,
			ExecutionTimeMs: f.TotalTimeMs,
		}, nil, nil
	case "usage_summary":
		usage := UsageSummary{
			InputTokens:  f.InputTokens,
			OutputTokens: f.OutputTokens,
			ModelsUsed:   f.ModelsUsed,
		}
		sink.OnUsageSummary(usage)
		return nil, &usage, nil
	case "error":
		return nil, nil, fmt.Errorf("worker error: %s", f.Message)
	}
	return nil, nil, nil
}

// Close releases the remote worker's session state. The remote worker
// keeps no per-connection state on our side, so this is a no-op.
func (c *Client) Close() error {
	return nil
}
