package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/common"
	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
	"github.com/kaitorecca/guardian-redact/internal/review"
	"github.com/kaitorecca/guardian-redact/internal/services/analysis"
	"github.com/kaitorecca/guardian-redact/internal/services/orchestrator"
	"github.com/kaitorecca/guardian-redact/internal/services/pdf"
)

// DocumentHandler serves document upload, suggestion review, viewport events and export
type DocumentHandler struct {
	session      *review.Session
	processor    DocumentProcessor
	transport    interfaces.FileTransport
	pages        PageCounter
	reports      ReportBuilder
	eventService interfaces.EventService
	config       *common.ReviewConfig
	logger       arbor.ILogger
}

func NewDocumentHandler(
	session *review.Session,
	processor DocumentProcessor,
	transport interfaces.FileTransport,
	pages PageCounter,
	reports ReportBuilder,
	eventService interfaces.EventService,
	config *common.ReviewConfig,
	logger arbor.ILogger,
) *DocumentHandler {
	return &DocumentHandler{
		session:      session,
		processor:    processor,
		transport:    transport,
		pages:        pages,
		reports:      reports,
		eventService: eventService,
		config:       config,
		logger:       logger,
	}
}

// UploadHandler handles POST /api/document - stores the PDF and starts page-by-page analysis
func (h *DocumentHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	if h.processor.Running() {
		WriteError(w, http.StatusConflict, "Processing already running")
		return
	}

	name, data, err := readUpload(w, r, uploadLimit(h.config.MaxUploadMB))
	if err != nil {
		h.logger.Warn().Err(err).Msg("Rejected document upload")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		WriteError(w, http.StatusBadRequest, "Only PDF documents are supported")
		return
	}

	profile := r.FormValue("profile")
	if profile == "" {
		profile = h.config.DefaultProfile
	}
	if profile != analysis.ProfileQuick && profile != analysis.ProfileDeep {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown profile '%s'", profile))
		return
	}

	path, err := h.transport.PersistTemporary(r.Context(), name, data)
	if err != nil {
		h.logger.Error().Err(err).Str("name", name).Msg("Failed to store document")
		WriteError(w, http.StatusInternalServerError, "Failed to store document")
		return
	}

	totalUnits, err := h.pages.PageCount(path)
	if err != nil {
		h.logger.Warn().Err(err).Str("name", name).Msg("Uploaded document is not a readable PDF")
		WriteError(w, http.StatusUnprocessableEntity, "Could not read PDF")
		return
	}

	src := review.Source{Path: path, Name: name, TotalUnits: totalUnits, Profile: profile}
	if err := h.processor.StartDocument(src); err != nil {
		if errors.Is(err, orchestrator.ErrAlreadyRunning) {
			WriteError(w, http.StatusConflict, "Processing already running")
			return
		}
		h.logger.Error().Err(err).Msg("Failed to start document processing")
		WriteError(w, http.StatusInternalServerError, "Failed to start processing")
		return
	}

	h.logger.Info().
		Str("name", name).
		Int("pages", totalUnits).
		Str("profile", profile).
		Msg("Document uploaded, analysis started")

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":     "started",
		"session_id": h.session.ID(),
		"document":   src,
	})
}

// SuggestionsHandler handles GET /api/document/suggestions?view=unit|category
func (h *DocumentHandler) SuggestionsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	store := h.session.Store()
	response := map[string]interface{}{
		"total":    store.Total(),
		"accepted": store.AcceptedCount(),
		"outcomes": store.Outcomes(),
	}

	switch view := r.URL.Query().Get("view"); view {
	case "", "unit":
		response["view"] = "unit"
		response["suggestions"] = store.SortedByUnit()
	case "category":
		response["view"] = "category"
		response["categories"] = store.ByCategory()
	default:
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown view '%s'", view))
		return
	}

	WriteJSON(w, http.StatusOK, response)
}

// ToggleHandler handles POST /api/document/suggestions/toggle {unit, id}.
// A stale target is not an error; the response reports whether anything changed.
func (h *DocumentHandler) ToggleHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Unit int    `json:"unit"`
		ID   string `json:"id"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	changed := h.session.ToggleSuggestion(req.Unit, req.ID)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"changed":  changed,
		"accepted": h.session.Store().AcceptedCount(),
	})
}

// AcceptAllHandler handles POST /api/document/suggestions/accept-all
func (h *DocumentHandler) AcceptAllHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	h.session.AcceptAllSuggestions()
	h.writeCounts(w)
}

// AcceptUnitHandler handles POST /api/document/suggestions/accept-unit {unit}
func (h *DocumentHandler) AcceptUnitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Unit int `json:"unit"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	h.session.AcceptUnitSuggestions(req.Unit)
	h.writeCounts(w)
}

// RejectAllHandler handles POST /api/document/suggestions/reject-all
func (h *DocumentHandler) RejectAllHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	h.session.RejectAllSuggestions()
	h.writeCounts(w)
}

func (h *DocumentHandler) writeCounts(w http.ResponseWriter) {
	store := h.session.Store()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total":    store.Total(),
		"accepted": store.AcceptedCount(),
	})
}

// ReprocessHandler handles POST /api/document/units/{n}/reprocess
func (h *DocumentHandler) ReprocessHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	if !strings.HasSuffix(r.URL.Path, "/reprocess") {
		WriteError(w, http.StatusNotFound, "Unknown unit action")
		return
	}
	unit, ok := PathInt(r.URL.Path, "/api/document/units/")
	if !ok {
		WriteError(w, http.StatusBadRequest, "Invalid unit number")
		return
	}

	err := h.processor.ReprocessUnit(r.Context(), unit)
	switch {
	case errors.Is(err, orchestrator.ErrNoDocument):
		WriteError(w, http.StatusConflict, "No document under review")
		return
	case errors.Is(err, orchestrator.ErrAlreadyRunning):
		WriteError(w, http.StatusConflict, "Processing already running")
		return
	}

	// A failed analysis is recorded as the unit's outcome rather than returned as an HTTP error
	outcome, recorded := h.session.Store().Outcome(unit)
	if err != nil && !recorded {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"outcome":     outcome,
		"suggestions": h.session.Store().UnitSuggestions(unit),
	})
}

// ViewportHandler handles POST /api/document/viewport/{loaded|rendered|scale|navigate|select}
func (h *DocumentHandler) ViewportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	viewport := h.session.Viewport()
	var err error

	switch PathSegment(r.URL.Path, "/api/document/viewport/") {
	case "loaded":
		var req struct {
			TotalUnits int `json:"total_units"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		viewport.UnitLoaded(req.TotalUnits)
	case "rendered":
		var req struct {
			NativeWidth    float64 `json:"native_width"`
			NativeHeight   float64 `json:"native_height"`
			RenderedWidth  float64 `json:"rendered_width"`
			RenderedHeight float64 `json:"rendered_height"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		err = viewport.UnitRendered(req.NativeWidth, req.NativeHeight, req.RenderedWidth, req.RenderedHeight)
	case "scale":
		var req struct {
			Factor float64 `json:"factor"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		err = viewport.SetScale(req.Factor)
	case "navigate":
		var req struct {
			Unit int `json:"unit"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		err = viewport.NavigateTo(req.Unit)
	case "select":
		var req struct {
			ID string `json:"id"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		if req.ID == "" {
			viewport.ClearSelection()
		} else {
			err = h.session.SelectSuggestion(req.ID)
		}
	default:
		WriteError(w, http.StatusNotFound, "Unknown viewport event")
		return
	}

	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"current_unit": viewport.CurrentUnit(),
		"total_units":  viewport.TotalUnits(),
		"scale":        viewport.Scale(),
		"selected_id":  viewport.SelectedID(),
	})
}

// OverlaysHandler handles GET /api/document/overlays.
// While geometry is unknown (after a zoom or navigation, before the next render) ready is false and no overlays are returned.
func (h *DocumentHandler) OverlaysHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	overlays, ready := h.session.Overlays()
	if overlays == nil {
		overlays = []models.Overlay{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ready":    ready,
		"unit":     h.session.Viewport().CurrentUnit(),
		"overlays": overlays,
	})
}

// ExportHandler handles POST /api/document/export {name}
func (h *DocumentHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if r.ContentLength != 0 && !DecodeJSON(w, r, &req) {
		return
	}

	doc, ok := h.session.Document()
	if !ok {
		WriteError(w, http.StatusConflict, "No document under review")
		return
	}

	accepted := h.session.Store().Accepted()
	outPath, err := h.transport.ExportDocument(r.Context(), doc.Path, accepted, req.Name)
	if err != nil {
		h.logger.Error().Err(err).Str("document", doc.Name).Msg("Document export failed")
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Export failed: %v", err))
		return
	}

	publishExport(h.eventService, h.session.ID(), "document", outPath, len(accepted))
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"path":       outPath,
		"redactions": len(accepted),
	})
}

// ReportHandler handles GET /api/document/report - a PDF summary of the review
func (h *DocumentHandler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	summary := BuildReviewSummary(h.session)
	data, err := h.reports.BuildReviewReport(summary)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to build report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="redaction_review.pdf"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// BuildReviewSummary snapshots the session for reporting
func BuildReviewSummary(session *review.Session) pdf.ReviewSummary {
	store := session.Store()
	engine := session.Engine()

	summary := pdf.ReviewSummary{
		Suggestions: store.SortedByUnit(),
		Outcomes:    store.Outcomes(),
		Detections:  engine.Detections(),
		Actions:     engine.ActionsSorted(),
		GeneratedAt: time.Now(),
	}
	if doc, ok := session.Document(); ok {
		summary.DocumentName = doc.Name
		summary.Profile = doc.Profile
		summary.TotalUnits = doc.TotalUnits
	}
	if audio, ok := session.Audio(); ok {
		summary.AudioName = audio.Name
	}
	return summary
}

func publishExport(eventService interfaces.EventService, sessionID, kind, path string, count int) {
	if eventService == nil {
		return
	}
	eventService.Publish(context.Background(), interfaces.Event{
		Type: interfaces.EventExportCompleted,
		Payload: map[string]interface{}{
			"session_id": sessionID,
			"kind":       kind,
			"path":       path,
			"redactions": count,
		},
	})
}
