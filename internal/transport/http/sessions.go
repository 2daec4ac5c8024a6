package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mhalvors/docchat/internal/config"
	"github.com/mhalvors/docchat/internal/domain"
	"github.com/mhalvors/docchat/internal/session"
)

// CreateSession creates a new chat session over a set of documents.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.ModelID == "" {
		req.ModelID = h.cfg.DefaultModel
	}
	if !config.IsValidModel(req.ModelID) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown model: " + req.ModelID})
	}
	if missing, ok := h.docs.Exists(req.DocumentIDs); !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown document: " + missing})
	}

	sess, err := h.sessions.Create(ctx, req.ModelID, req.DocumentIDs)
	if err != nil {
		log.Printf("ERROR: failed to create session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
	}

	return c.JSON(http.StatusOK, domain.NewSessionInfo(sess))
}

// ListSessions lists sessions, optionally filtered by status.
// GET /v1/sessions?status=active
func (h *Handler) ListSessions(c echo.Context) error {
	status := domain.SessionStatus(c.QueryParam("status"))
	if status != "" && status != domain.SessionStatusActive && status != domain.SessionStatusEnded {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
	}

	sessions := h.sessions.List(status)
	infos := make([]domain.SessionInfo, len(sessions))
	for i, sess := range sessions {
		infos[i] = domain.NewSessionInfo(sess)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": infos,
	})
}

// GetSession returns one session summary.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	sess := h.sessions.Get(c.Param("session_id"))
	if sess == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	return c.JSON(http.StatusOK, domain.NewSessionInfo(sess))
}

// EndSession finishes a session. Sessions without any messages are
// deleted instead of kept.
// POST /v1/sessions/:session_id/end
func (h *Handler) EndSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	if err := h.sessions.End(ctx, sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		log.Printf("ERROR: failed to end session %s: %v", sessionID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to end session"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// DeleteSession removes a session and its history.
// DELETE /v1/sessions/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	if err := h.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		log.Printf("ERROR: failed to delete session %s: %v", sessionID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete session"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// UpdateTitle renames a session.
// PATCH /v1/sessions/:session_id/title
func (h *Handler) UpdateTitle(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	var req domain.UpdateTitleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "title is required"})
	}

	if err := h.sessions.UpdateTitle(ctx, sessionID, req.Title); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		log.Printf("ERROR: failed to update title for session %s: %v", sessionID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update title"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// UpdateModel switches the session's model. The session's live worker
// is discarded; the next run starts a fresh one.
// PATCH /v1/sessions/:session_id/model
func (h *Handler) UpdateModel(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	var req domain.UpdateModelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if !config.IsValidModel(req.ModelID) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown model: " + req.ModelID})
	}

	if err := h.sessions.UpdateModel(ctx, sessionID, req.ModelID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		log.Printf("ERROR: failed to update model for session %s: %v", sessionID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update model"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// GetHistory returns the session's message history.
// GET /v1/sessions/:session_id/history
func (h *Handler) GetHistory(c echo.Context) error {
	sessionID := c.Param("session_id")
	if h.sessions.Get(sessionID) == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}

	messages := h.sessions.History(sessionID)
	if messages == nil {
		messages = []domain.Message{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"messages":   messages,
	})
}
