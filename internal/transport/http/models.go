package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mhalvors/docchat/internal/config"
)

// ListModels returns the model catalog with per-model availability
// based on which provider credentials are configured.
// GET /v1/models
func (h *Handler) ListModels(c echo.Context) error {
	models := make([]map[string]interface{}, len(config.AvailableModels))
	for i, m := range config.AvailableModels {
		models[i] = map[string]interface{}{
			"id":          m.ID,
			"name":        m.Name,
			"provider":    m.Provider,
			"description": m.Description,
			"available":   h.cfg.ValidateAPIKey(m.Provider),
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"models":  models,
		"default": h.cfg.DefaultModel,
	})
}
