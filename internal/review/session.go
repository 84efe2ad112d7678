package review

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/common"
	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
)

// Source describes the file under review
type Source struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	TotalUnits int    `json:"total_units,omitempty"`
	Profile    string `json:"profile,omitempty"`
}

// Session is the review state of one document and one audio recording.
// It is constructed and reset explicitly by its owner; components are never shared across resets.
type Session struct {
	mu       sync.RWMutex
	id       string
	docGen   uint64
	padding  float64
	store    *SuggestionStore
	engine   *RedactionEngine
	viewport *Viewport
	regions  *RegionSelector
	player   *AudioPlayer
	document *Source
	audio    *Source

	transcript []models.TranscriptWord

	renderSurface RenderSurface
	audioSurface  AudioSurface
	eventService  interfaces.EventService
	logger        arbor.ILogger
}

// NewSession creates an empty session
func NewSession(padding float64, eventService interfaces.EventService, logger arbor.ILogger) *Session {
	s := &Session{
		padding:      padding,
		eventService: eventService,
		logger:       logger,
	}
	s.build()
	return s
}

// build must be called with the lock held (or before the session is shared)
func (s *Session) build() {
	s.id = common.NewSessionID()
	s.docGen++
	s.store = NewSuggestionStore(s.logger)
	s.engine = NewRedactionEngine(s.logger)
	s.viewport = NewViewport(s.padding, s.logger)
	s.regions = NewRegionSelector(s.engine)
	s.player = NewAudioPlayer(s.regions)
	s.document = nil
	s.audio = nil
	s.transcript = nil

	regions := s.regions
	s.viewport.OnNavigate(regions.UnitChanged)
	if s.renderSurface != nil {
		s.viewport.SetSurface(s.renderSurface)
	}
	if s.audioSurface != nil {
		s.player.SetSurface(s.audioSurface)
	}
}

// Reset discards every suggestion, detection, action, marker and source
func (s *Session) Reset() {
	s.mu.Lock()
	old := s.id
	s.build()
	id := s.id
	s.mu.Unlock()

	s.logger.Info().Str("previous_session", old).Str("session_id", id).Msg("Session reset")
	s.publish(interfaces.EventSessionReset, map[string]interface{}{"session_id": id})
}

// AttachSurfaces sets the renderers that receive viewport and playback commands
func (s *Session) AttachSurfaces(render RenderSurface, audio AudioSurface) {
	s.mu.Lock()
	s.renderSurface = render
	s.audioSurface = audio
	s.viewport.SetSurface(render)
	s.player.SetSurface(audio)
	s.mu.Unlock()
}

// ID identifies the session; it changes on every Reset
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Store returns the suggestion store of the current document
func (s *Session) Store() *SuggestionStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// Engine returns the audio redaction engine
func (s *Session) Engine() *RedactionEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// Viewport returns the document viewport
func (s *Session) Viewport() *Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewport
}

// Regions returns the pending region selector
func (s *Session) Regions() *RegionSelector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regions
}

// Player returns the audio player
func (s *Session) Player() *AudioPlayer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.player
}

// SetDocument records the document under review
func (s *Session) SetDocument(src Source) {
	s.mu.Lock()
	s.document = &src
	viewport := s.viewport
	s.mu.Unlock()

	viewport.UnitLoaded(src.TotalUnits)
}

// LoadDocument starts review of a new document. Suggestions, unit markers and viewport state
// of the previous document are discarded; audio review state is kept.
// The returned generation identifies this document for CommitUnitSuggestions and CommitUnitFailure.
func (s *Session) LoadDocument(src Source) uint64 {
	s.mu.Lock()
	s.docGen++
	gen := s.docGen
	s.store = NewSuggestionStore(s.logger)
	s.viewport = NewViewport(s.padding, s.logger)
	s.viewport.OnNavigate(s.regions.UnitChanged)
	if s.renderSurface != nil {
		s.viewport.SetSurface(s.renderSurface)
	}
	s.document = &src
	viewport := s.viewport
	s.mu.Unlock()

	viewport.UnitLoaded(src.TotalUnits)
	s.publishSuggestions()
	return gen
}

// DocumentGeneration returns the generation of the current document.
// It changes on every LoadDocument and Reset.
func (s *Session) DocumentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docGen
}

// CommitUnitSuggestions records a unit's suggestions only while gen is still the current
// document generation. It reports whether the suggestions were recorded.
func (s *Session) CommitUnitSuggestions(gen uint64, unit int, suggestions []models.DocumentSuggestion) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.docGen != gen {
		return false
	}
	s.store.RecordUnitSuggestions(unit, suggestions)
	return true
}

// CommitUnitFailure marks a unit failed only while gen is still the current document generation
func (s *Session) CommitUnitFailure(gen uint64, unit int, reason string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.docGen != gen {
		return false
	}
	s.store.RecordUnitFailure(unit, reason)
	return true
}

// Document returns the document under review
func (s *Session) Document() (Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.document == nil {
		return Source{}, false
	}
	return *s.document, true
}

// SetAudio records the recording under review
func (s *Session) SetAudio(src Source) {
	s.mu.Lock()
	s.audio = &src
	s.mu.Unlock()
}

// Audio returns the recording under review
func (s *Session) Audio() (Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.audio == nil {
		return Source{}, false
	}
	return *s.audio, true
}

// SourcePaths returns the paths of the document and recording under review
func (s *Session) SourcePaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var paths []string
	if s.document != nil {
		paths = append(paths, s.document.Path)
	}
	if s.audio != nil {
		paths = append(paths, s.audio.Path)
	}
	return paths
}

// LoadAudioAnalysis replaces the transcript, every detection and every redaction action
func (s *Session) LoadAudioAnalysis(analysis models.AudioAnalysis) {
	s.mu.Lock()
	s.transcript = append([]models.TranscriptWord(nil), analysis.Words...)
	engine := s.engine
	s.mu.Unlock()

	engine.LoadDetections(analysis.Detections)
	s.redactionsChanged()
}

// Transcript returns the words of the last audio analysis
func (s *Session) Transcript() []models.TranscriptWord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.TranscriptWord(nil), s.transcript...)
}

// ToggleSuggestion flips one document suggestion
func (s *Session) ToggleSuggestion(unit int, id string) bool {
	changed := s.Store().ToggleAcceptance(unit, id)
	if changed {
		s.publishSuggestions()
	}
	return changed
}

// AcceptAllSuggestions accepts every document suggestion
func (s *Session) AcceptAllSuggestions() {
	s.Store().AcceptAll()
	s.publishSuggestions()
}

// AcceptUnitSuggestions accepts every suggestion on one unit
func (s *Session) AcceptUnitSuggestions(unit int) {
	s.Store().AcceptUnit(unit)
	s.publishSuggestions()
}

// RejectAllSuggestions clears acceptance on every document suggestion
func (s *Session) RejectAllSuggestions() {
	s.Store().RejectAll()
	s.publishSuggestions()
}

// SelectSuggestion inspects a suggestion, navigating to its unit
func (s *Session) SelectSuggestion(id string) error {
	sg, ok := s.Store().Find(id)
	if !ok {
		return nil
	}
	return s.Viewport().Select(sg)
}

// Overlays returns the overlays for the displayed unit, false while geometry is unknown
func (s *Session) Overlays() ([]models.Overlay, bool) {
	viewport := s.Viewport()
	return viewport.Overlays(s.Store().UnitSuggestions(viewport.CurrentUnit()))
}

// ToggleDetection flips one audio detection with its bound redaction
func (s *Session) ToggleDetection(id string) bool {
	changed := s.Engine().ToggleDetectionAcceptance(id)
	if changed {
		s.redactionsChanged()
	}
	return changed
}

// AcceptAllDetections accepts every audio detection
func (s *Session) AcceptAllDetections() int {
	created := s.Engine().AcceptAllDetections()
	s.redactionsChanged()
	return created
}

// AddManualRedaction adds a redaction not bound to a detection
func (s *Session) AddManualRedaction(start, end float64, action models.Treatment) (models.RedactionAction, error) {
	a, err := s.Engine().AddManualRedaction(start, end, action)
	if err != nil {
		return a, err
	}
	s.redactionsChanged()
	return a, nil
}

// RemoveRedaction removes any redaction by id
func (s *Session) RemoveRedaction(id string) bool {
	removed := s.Engine().RemoveRedaction(id)
	if removed {
		s.redactionsChanged()
	}
	return removed
}

// SetRedactionTreatment changes a redaction's treatment
func (s *Session) SetRedactionTreatment(id string, action models.Treatment) error {
	if err := s.Engine().SetRedactionTreatment(id, action); err != nil {
		return err
	}
	s.redactionsChanged()
	return nil
}

// PromoteRegion turns the pending region into a manual redaction
func (s *Session) PromoteRegion(action models.Treatment) (models.RedactionAction, error) {
	a, err := s.Regions().Promote(action)
	if err != nil {
		return a, err
	}
	s.redactionsChanged()
	return a, nil
}

func (s *Session) redactionsChanged() {
	actions := s.Engine().ActionsSorted()
	s.Player().RenderRegions(actions)
	s.publish(interfaces.EventRedactionsChanged, map[string]interface{}{
		"session_id": s.ID(),
		"count":      len(actions),
	})
}

func (s *Session) publishSuggestions() {
	store := s.Store()
	s.publish(interfaces.EventSuggestionsChanged, map[string]interface{}{
		"session_id": s.ID(),
		"total":      store.Total(),
		"accepted":   store.AcceptedCount(),
	})
}

func (s *Session) publish(eventType interfaces.EventType, payload map[string]interface{}) {
	if s.eventService == nil {
		return
	}
	s.eventService.Publish(context.Background(), interfaces.Event{
		Type:    eventType,
		Payload: payload,
	})
}
