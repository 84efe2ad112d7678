package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/models"
	"github.com/kaitorecca/guardian-redact/internal/review"
	"github.com/kaitorecca/guardian-redact/internal/services/status"
)

// LogReader returns the recent run logs of a session
type LogReader interface {
	Recent(sessionID string, limit int) []models.LogEntry
	Forget(sessionID string)
}

// StatusHandler serves processing status, session reset and run logs
type StatusHandler struct {
	statusService *status.Service
	session       *review.Session
	resetter      SessionResetter
	logs          LogReader
	logger        arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(statusService *status.Service, session *review.Session, resetter SessionResetter, logs LogReader, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		statusService: statusService,
		session:       session,
		resetter:      resetter,
		logs:          logs,
		logger:        logger,
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	response := map[string]interface{}{
		"session_id": h.session.ID(),
		"processing": h.statusService.Get(),
		"updated_at": h.statusService.UpdatedAt().Format(time.RFC3339),
	}
	if doc, ok := h.session.Document(); ok {
		response["document"] = doc
	}
	if audio, ok := h.session.Audio(); ok {
		response["audio"] = audio
	}

	WriteJSON(w, http.StatusOK, response)
}

// ResetSessionHandler handles POST /api/session/reset.
// Every suggestion, detection, action and marker is discarded; a run in progress stops
// without publishing further status.
func (h *StatusHandler) ResetSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	previous := h.session.ID()
	h.resetter.ResetSession()
	if h.logs != nil {
		h.logs.Forget(previous)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"session_id": h.session.ID(),
	})
}

// LogsHandler handles GET /api/logs?limit=N for the current session
func (h *StatusHandler) LogsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	if h.logs == nil {
		WriteJSON(w, http.StatusOK, []models.LogEntry{})
		return
	}

	entries := h.logs.Recent(h.session.ID(), QueryInt(r, "limit", 100))
	if entries == nil {
		entries = []models.LogEntry{}
	}
	WriteJSON(w, http.StatusOK, entries)
}
