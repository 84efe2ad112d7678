package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/session/reset", s.app.StatusHandler.ResetSessionHandler)
	mux.HandleFunc("/api/logs", s.app.StatusHandler.LogsHandler)

	// API routes - Provider keys
	mux.HandleFunc("/api/keys", s.app.KVHandler.ListKVHandler)
	mux.HandleFunc("/api/keys/", s.handleKeyRoutes)

	// API routes - Document review
	doc := s.app.DocumentHandler
	mux.HandleFunc("/api/document", doc.UploadHandler)
	mux.HandleFunc("/api/document/suggestions", doc.SuggestionsHandler)
	mux.HandleFunc("/api/document/suggestions/toggle", doc.ToggleHandler)
	mux.HandleFunc("/api/document/suggestions/accept-all", doc.AcceptAllHandler)
	mux.HandleFunc("/api/document/suggestions/accept-unit", doc.AcceptUnitHandler)
	mux.HandleFunc("/api/document/suggestions/reject-all", doc.RejectAllHandler)
	mux.HandleFunc("/api/document/units/", s.handleUnitRoutes) // POST /{n}/reprocess
	mux.HandleFunc("/api/document/viewport/", doc.ViewportHandler)
	mux.HandleFunc("/api/document/overlays", doc.OverlaysHandler)
	mux.HandleFunc("/api/document/export", doc.ExportHandler)
	mux.HandleFunc("/api/document/report", doc.ReportHandler)

	// API routes - Audio review
	audio := s.app.AudioHandler
	mux.HandleFunc("/api/audio", audio.UploadHandler)
	mux.HandleFunc("/api/audio/retry", audio.RetryHandler)
	mux.HandleFunc("/api/audio/detections", audio.DetectionsHandler)
	mux.HandleFunc("/api/audio/detections/toggle", audio.ToggleDetectionHandler)
	mux.HandleFunc("/api/audio/detections/accept-all", audio.AcceptAllDetectionsHandler)
	mux.HandleFunc("/api/audio/redactions", audio.RedactionsHandler) // GET (list), POST (manual)
	mux.HandleFunc("/api/audio/redactions/", audio.RedactionHandler) // PUT/DELETE /{id}
	mux.HandleFunc("/api/audio/region", s.handleRegionRoute)
	mux.HandleFunc("/api/audio/region/promote", audio.PromoteRegionHandler)
	mux.HandleFunc("/api/audio/player", audio.PlayerHandler)  // GET state
	mux.HandleFunc("/api/audio/player/", audio.PlayerHandler) // POST /{ready|time|play|seek|volume}
	mux.HandleFunc("/api/audio/export", audio.ExportHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleUnitRoutes routes /api/document/units/{n}/... requests
func (s *Server) handleUnitRoutes(w http.ResponseWriter, r *http.Request) {
	routes := []PathSuffixRouter{
		{Suffix: "/reprocess", Handler: s.app.DocumentHandler.ReprocessHandler},
	}
	if !RouteByPathSuffix(w, r, "/api/document/units/", routes) {
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}

// handleRegionRoute routes /api/audio/region by method
func (s *Server) handleRegionRoute(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		http.MethodPost:   s.app.AudioHandler.RegionHandler,
		http.MethodDelete: s.app.AudioHandler.RegionHandler,
	})
}

// handleKeyRoutes routes /api/keys/{key} requests
func (s *Server) handleKeyRoutes(w http.ResponseWriter, r *http.Request) {
	RouteResourceItem(w, r, nil, s.app.KVHandler.KeyHandler, s.app.KVHandler.KeyHandler)
}
