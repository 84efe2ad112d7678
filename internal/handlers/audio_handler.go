package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/common"
	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
	"github.com/kaitorecca/guardian-redact/internal/review"
	"github.com/kaitorecca/guardian-redact/internal/services/analysis"
	"github.com/kaitorecca/guardian-redact/internal/services/orchestrator"
)

// AudioHandler serves audio upload, detection review, redaction editing, waveform events and export
type AudioHandler struct {
	session      *review.Session
	processor    AudioProcessor
	transport    interfaces.FileTransport
	eventService interfaces.EventService
	config       *common.ReviewConfig
	logger       arbor.ILogger
}

func NewAudioHandler(
	session *review.Session,
	processor AudioProcessor,
	transport interfaces.FileTransport,
	eventService interfaces.EventService,
	config *common.ReviewConfig,
	logger arbor.ILogger,
) *AudioHandler {
	return &AudioHandler{
		session:      session,
		processor:    processor,
		transport:    transport,
		eventService: eventService,
		config:       config,
		logger:       logger,
	}
}

// UploadHandler handles POST /api/audio - stores the recording and starts transcription
func (h *AudioHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	if h.processor.Running() {
		WriteError(w, http.StatusConflict, "Processing already running")
		return
	}

	name, data, err := readUpload(w, r, uploadLimit(h.config.MaxUploadMB))
	if err != nil {
		h.logger.Warn().Err(err).Msg("Rejected audio upload")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := analysis.AudioMIMEType(name); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := h.transport.PersistTemporary(r.Context(), name, data)
	if err != nil {
		h.logger.Error().Err(err).Str("name", name).Msg("Failed to store audio")
		WriteError(w, http.StatusInternalServerError, "Failed to store audio")
		return
	}

	src := review.Source{Path: path, Name: name}
	h.session.SetAudio(src)

	if err := h.processor.StartAudio(path); err != nil {
		h.writeStartError(w, err)
		return
	}

	h.logger.Info().Str("name", name).Int("bytes", len(data)).Msg("Audio uploaded, transcription started")
	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":     "started",
		"session_id": h.session.ID(),
		"audio":      src,
	})
}

// RetryHandler handles POST /api/audio/retry - restarts analysis of the last recording from scratch
func (h *AudioHandler) RetryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	if err := h.processor.StartRetryAudio(); err != nil {
		h.writeStartError(w, err)
		return
	}
	WriteStarted(w, "Audio analysis restarted")
}

func (h *AudioHandler) writeStartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrAlreadyRunning):
		WriteError(w, http.StatusConflict, "Processing already running")
	case errors.Is(err, orchestrator.ErrNoAudio):
		WriteError(w, http.StatusConflict, "No audio to retry")
	default:
		h.logger.Error().Err(err).Msg("Failed to start audio processing")
		WriteError(w, http.StatusInternalServerError, "Failed to start processing")
	}
}

// DetectionsHandler handles GET /api/audio/detections
func (h *AudioHandler) DetectionsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	words := h.session.Transcript()
	detections := h.session.Engine().Detections()
	if detections == nil {
		detections = []models.AudioDetection{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"detections": detections,
		"words":      words,
		"transcript": analysis.FormatTranscript(words),
	})
}

// ToggleDetectionHandler handles POST /api/audio/detections/toggle {id}
func (h *AudioHandler) ToggleDetectionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	changed := h.session.ToggleDetection(req.ID)
	response := map[string]interface{}{"changed": changed}
	if action, ok := h.session.Engine().BoundAction(req.ID); ok {
		response["redaction"] = action
	}
	WriteJSON(w, http.StatusOK, response)
}

// AcceptAllDetectionsHandler handles POST /api/audio/detections/accept-all
func (h *AudioHandler) AcceptAllDetectionsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	created := h.session.AcceptAllDetections()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"created":    created,
		"redactions": len(h.session.Engine().Actions()),
	})
}

// RedactionsHandler handles GET (list) and POST (manual add) on /api/audio/redactions
func (h *AudioHandler) RedactionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		actions := h.session.Engine().ActionsSorted()
		if actions == nil {
			actions = []models.RedactionAction{}
		}
		WriteJSON(w, http.StatusOK, actions)
	case http.MethodPost:
		var req struct {
			Start  float64          `json:"start"`
			End    float64          `json:"end"`
			Action models.Treatment `json:"action"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		if req.Action == "" {
			req.Action = models.DefaultTreatment
		}

		action, err := h.session.AddManualRedaction(req.Start, req.End, req.Action)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteJSON(w, http.StatusCreated, action)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// RedactionHandler handles PUT {action} and DELETE on /api/audio/redactions/{id}
func (h *AudioHandler) RedactionHandler(w http.ResponseWriter, r *http.Request) {
	id := PathSegment(r.URL.Path, "/api/audio/redactions/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Missing redaction id")
		return
	}

	switch r.Method {
	case http.MethodDelete:
		if !h.session.RemoveRedaction(id) {
			WriteError(w, http.StatusNotFound, "Redaction not found")
			return
		}
		WriteSuccess(w, "Redaction removed")
	case http.MethodPut:
		var req struct {
			Action models.Treatment `json:"action"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}

		err := h.session.SetRedactionTreatment(id, req.Action)
		switch {
		case errors.Is(err, review.ErrRedactionNotFound):
			WriteError(w, http.StatusNotFound, "Redaction not found")
		case err != nil:
			WriteError(w, http.StatusBadRequest, err.Error())
		default:
			WriteSuccess(w, "Redaction updated")
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// RegionHandler handles POST {start,end} (drag) and DELETE (cancel) on /api/audio/region
func (h *AudioHandler) RegionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		region := h.session.Player().RegionDragged(req.Start, req.End)
		WriteJSON(w, http.StatusOK, region)
	case http.MethodDelete:
		h.session.Regions().Cancel()
		WriteSuccess(w, "Region cleared")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// PromoteRegionHandler handles POST /api/audio/region/promote {action}
func (h *AudioHandler) PromoteRegionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Action models.Treatment `json:"action"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Action == "" {
		req.Action = models.DefaultTreatment
	}

	action, err := h.session.PromoteRegion(req.Action)
	switch {
	case errors.Is(err, review.ErrNoPendingRegion):
		WriteError(w, http.StatusConflict, "No region selected")
	case err != nil:
		WriteError(w, http.StatusBadRequest, err.Error())
	default:
		WriteJSON(w, http.StatusCreated, action)
	}
}

// PlayerHandler handles GET /api/audio/player and POST /api/audio/player/{ready|time|play|seek|volume}.
// ready, time and play report waveform events; seek and volume are commands sent back to the surface.
func (h *AudioHandler) PlayerHandler(w http.ResponseWriter, r *http.Request) {
	player := h.session.Player()

	if r.Method == http.MethodGet {
		WriteJSON(w, http.StatusOK, player.State())
		return
	}
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Duration float64 `json:"duration"`
		Time     float64 `json:"time"`
		Playing  bool    `json:"playing"`
		Volume   float64 `json:"volume"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	switch event := PathSegment(r.URL.Path, "/api/audio/player/"); event {
	case "ready":
		player.Ready(req.Duration)
	case "time":
		player.TimeUpdate(req.Time)
	case "play":
		player.PlayStateChanged(req.Playing)
	case "seek":
		player.Seek(req.Time)
	case "volume":
		player.SetVolume(req.Volume)
	default:
		WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown player event '%s'", event))
		return
	}

	WriteJSON(w, http.StatusOK, player.State())
}

// ExportHandler handles POST /api/audio/export {name}
func (h *AudioHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if r.ContentLength != 0 && !DecodeJSON(w, r, &req) {
		return
	}

	audio, ok := h.session.Audio()
	if !ok {
		WriteError(w, http.StatusConflict, "No audio under review")
		return
	}

	actions := h.session.Engine().ActionsSorted()
	outPath, err := h.transport.ExportAudio(r.Context(), audio.Path, actions, req.Name)
	if err != nil {
		h.logger.Error().Err(err).Str("audio", audio.Name).Msg("Audio export failed")
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Export failed: %v", err))
		return
	}

	publishExport(h.eventService, h.session.ID(), "audio", outPath, len(actions))
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"path":       outPath,
		"redactions": len(actions),
	})
}
