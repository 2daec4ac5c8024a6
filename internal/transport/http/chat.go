package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mhalvors/docchat/internal/domain"
	"github.com/mhalvors/docchat/internal/stream"
)

// SubmitMessage accepts a user message and starts a background run.
// The response carries the run id; progress arrives on the stream
// endpoint.
// POST /v1/sessions/:session_id/messages
func (h *Handler) SubmitMessage(c echo.Context) error {
	sessionID := c.Param("session_id")

	var req domain.SubmitMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}

	if h.sessions.Get(sessionID) == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}

	run, err := h.executor.Submit(sessionID, req.Message)
	if err != nil {
		// Submit-time failures are client problems (ended session,
		// missing credentials), not server faults.
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, domain.SubmitMessageResponse{
		RunID:   run.RunID,
		Message: "Processing started",
	})
}

// StreamProgress streams a run's progress events via SSE. A client that
// lost its connection resumes with ?cursor=<n>, the count of events it
// already received. Finished runs whose logs were archived replay from
// the archive.
// GET /v1/sessions/:session_id/runs/:run_id/stream
func (h *Handler) StreamProgress(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")
	runID := c.Param("run_id")

	cursor := 0
	if raw := c.QueryParam("cursor"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid cursor"})
		}
		cursor = n
	}

	if h.sessions.Get(sessionID) == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}

	run := h.registry.Get(runID)
	if run != nil && run.SessionID != sessionID {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "run does not belong to session"})
	}

	var archived []domain.Event
	if run == nil {
		archived = h.sessions.ArchivedEvents(sessionID, runID)
		if archived == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
		}
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	sink := &sseSink{response: c.Response()}

	if run == nil {
		return stream.Replay(sessionID, runID, archived, cursor, sink)
	}

	coord := stream.New(run, cursor, stream.Config{
		PollInterval:   h.cfg.StreamPollInterval,
		HeartbeatPolls: h.cfg.StreamHeartbeatPolls,
		MaxPolls:       h.cfg.StreamMaxPolls,
	})
	if err := coord.Stream(ctx, sink); err != nil {
		if ctx.Err() != nil {
			// Client disconnected; it can resume with its cursor.
			log.Printf("INFO: stream for run %s closed at cursor %d", runID, coord.Cursor())
			return nil
		}
		return err
	}
	return nil
}

// GetRunEvents returns a run's recorded events as a JSON array, serving
// the archive once the run is finished and the live log before that.
// GET /v1/sessions/:session_id/runs/:run_id/events
func (h *Handler) GetRunEvents(c echo.Context) error {
	sessionID := c.Param("session_id")
	runID := c.Param("run_id")

	if h.sessions.Get(sessionID) == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}

	events := h.sessions.ArchivedEvents(sessionID, runID)
	status := "done"
	if events == nil {
		run := h.registry.Get(runID)
		if run == nil || run.SessionID != sessionID {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
		}
		events = run.Log.Snapshot()
		status = run.StatusLabel()
	}
	if events == nil {
		events = []domain.Event{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"run_id":     runID,
		"status":     status,
		"events":     events,
	})
}

// CancelRun aborts an in-flight run.
// POST /v1/sessions/:session_id/runs/:run_id/cancel
func (h *Handler) CancelRun(c echo.Context) error {
	sessionID := c.Param("session_id")
	runID := c.Param("run_id")

	run := h.registry.Get(runID)
	if run == nil || run.SessionID != sessionID {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	if !h.executor.Cancel(runID) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "run already finished"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// sseSink writes events as SSE data frames, flushing after each one.
type sseSink struct {
	response *echo.Response
}

func (s *sseSink) Send(evt domain.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.response.Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	s.response.Flush()
	return nil
}
