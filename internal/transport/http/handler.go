// Package api provides the HTTP handlers for the chat backend.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mhalvors/docchat/internal/config"
	"github.com/mhalvors/docchat/internal/document"
	"github.com/mhalvors/docchat/internal/executor"
	"github.com/mhalvors/docchat/internal/registry"
	"github.com/mhalvors/docchat/internal/session"
)

// Handler handles HTTP requests.
type Handler struct {
	cfg      *config.Config
	sessions *session.Store
	docs     *document.Store
	registry *registry.Registry
	executor *executor.Executor
}

// NewHandler creates a new handler.
func NewHandler(cfg *config.Config, sessions *session.Store, docs *document.Store, reg *registry.Registry, exec *executor.Executor) *Handler {
	return &Handler{
		cfg:      cfg,
		sessions: sessions,
		docs:     docs,
		registry: reg,
		executor: exec,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Session lifecycle
	e.POST("/v1/sessions", h.CreateSession)
	e.GET("/v1/sessions", h.ListSessions)
	e.GET("/v1/sessions/:session_id", h.GetSession)
	e.POST("/v1/sessions/:session_id/end", h.EndSession)
	e.DELETE("/v1/sessions/:session_id", h.DeleteSession)
	e.PATCH("/v1/sessions/:session_id/title", h.UpdateTitle)
	e.PATCH("/v1/sessions/:session_id/model", h.UpdateModel)
	e.GET("/v1/sessions/:session_id/history", h.GetHistory)

	// Chat
	e.POST("/v1/sessions/:session_id/messages", h.SubmitMessage)
	e.GET("/v1/sessions/:session_id/runs/:run_id/stream", h.StreamProgress)
	e.GET("/v1/sessions/:session_id/runs/:run_id/events", h.GetRunEvents)
	e.POST("/v1/sessions/:session_id/runs/:run_id/cancel", h.CancelRun)

	// Documents
	e.POST("/v1/documents", h.UploadDocument)
	e.GET("/v1/documents", h.ListDocuments)
	e.GET("/v1/documents/:document_id", h.GetDocument)
	e.DELETE("/v1/documents/:document_id", h.DeleteDocument)

	// Models
	e.GET("/v1/models", h.ListModels)

	e.GET("/health", h.Health)
}

// Health returns health status.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"api_keys_configured": map[string]bool{
			config.ProviderAnthropic: h.cfg.ValidateAPIKey(config.ProviderAnthropic),
			config.ProviderOpenAI:    h.cfg.ValidateAPIKey(config.ProviderOpenAI),
		},
	})
}
