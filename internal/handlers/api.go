package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/common"
)

type APIHandler struct {
	health HealthReporter
	logger arbor.ILogger
}

func NewAPIHandler(health HealthReporter, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		health: health,
		logger: logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.Version,
		"build":      common.Build,
		"git_commit": common.GitCommit,
	})
}

// HealthHandler returns service health and whether the AI providers are configured
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	response := map[string]interface{}{
		"status": "ok",
	}
	if h.health != nil {
		report := h.health.Health(r.Context())
		response["ai"] = report
		if !report.Ready {
			h.logger.Debug().Str("message", report.Message).Msg("AI engine not ready")
		}
	}

	WriteJSON(w, http.StatusOK, response)
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
