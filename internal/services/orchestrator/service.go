package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/common"
	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
	"github.com/kaitorecca/guardian-redact/internal/review"
	"github.com/kaitorecca/guardian-redact/internal/services/analysis"
	"github.com/kaitorecca/guardian-redact/internal/services/status"
)

var (
	// ErrAlreadyRunning is returned when a run is started while another is active
	ErrAlreadyRunning = errors.New("processing already running")
	// ErrNoAudio is returned by RetryAudio before any audio has been processed
	ErrNoAudio = errors.New("no audio to retry")
	// ErrNoDocument is returned by ReprocessUnit when no document is under review
	ErrNoDocument = errors.New("no document under review")
	// ErrSessionReset ends a run whose session was reset underneath it
	ErrSessionReset = errors.New("session was reset")
	// ErrDocumentReplaced ends a run whose document was replaced underneath it
	ErrDocumentReplaced = errors.New("document was replaced")
)

// Service runs document and audio analysis and commits results to the session.
// Units of a document are analyzed strictly in order; a failed unit is recorded
// and the sequence continues.
type Service struct {
	session     *review.Session
	status      *status.Service
	documents   interfaces.UnitAnalyzer
	audio       interfaces.AudioAnalyzer
	events      interfaces.EventService
	unitTimeout time.Duration
	logger      arbor.ILogger

	mu        sync.Mutex
	running   bool
	lastAudio string

	// serializes status writes of runs with ResetSession
	statusMu sync.Mutex

	// cancelled on Close; background runs derive from it
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates an orchestrator for one session
func NewService(
	session *review.Session,
	statusService *status.Service,
	documents interfaces.UnitAnalyzer,
	audio interfaces.AudioAnalyzer,
	eventService interfaces.EventService,
	unitTimeout time.Duration,
	logger arbor.ILogger,
) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		session:     session,
		status:      statusService,
		documents:   documents,
		audio:       audio,
		events:      eventService,
		unitTimeout: unitTimeout,
		logger:      logger,
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// Running reports whether a run is active
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Service) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// ProcessDocument loads src into the session, analyzes units 1..TotalUnits in order
// and blocks until done
func (s *Service) ProcessDocument(ctx context.Context, src review.Source) error {
	if !s.acquire() {
		return ErrAlreadyRunning
	}
	defer s.release()
	return s.runDocument(ctx, s.loadDocument(src), src)
}

// StartDocument claims the run slot, loads src into the session and runs the analysis
// in the background. A rejected start leaves the document under review untouched.
func (s *Service) StartDocument(src review.Source) error {
	if !s.acquire() {
		return ErrAlreadyRunning
	}
	f := s.loadDocument(src)

	s.wg.Add(1)
	common.SafeGo(s.logger, "processDocument", func() {
		defer s.wg.Done()
		defer s.release()
		if err := s.runDocument(s.baseCtx, f, src); err != nil {
			s.logger.Warn().Err(err).Str("source", src.Path).Msg("Document processing ended with error")
		}
	})
	return nil
}

// fence identifies the session state a run commits into
type fence struct {
	sessionID  string
	generation uint64 // document generation, zero for audio runs
}

func (s *Service) loadDocument(src review.Source) fence {
	sessionID := s.session.ID()
	return fence{sessionID: sessionID, generation: s.session.LoadDocument(src)}
}

// stale reports why f no longer matches the session, or nil while it does
func (s *Service) stale(f fence) error {
	if s.session.ID() != f.sessionID {
		return ErrSessionReset
	}
	if f.generation != 0 && s.session.DocumentGeneration() != f.generation {
		return ErrDocumentReplaced
	}
	return nil
}

// commit runs fn only while f is current. ResetSession cannot interleave with fn.
func (s *Service) commit(f fence, fn func()) error {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if err := s.stale(f); err != nil {
		return err
	}
	fn()
	return nil
}

// setStatus publishes st only while f is current
func (s *Service) setStatus(f fence, st models.ProcessingStatus) error {
	return s.commit(f, func() { s.status.Set(st) })
}

// ResetSession discards the session and returns status to idle in one step.
// Runs still in flight see a stale fence and stop without publishing status.
func (s *Service) ResetSession() {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.session.Reset()
	s.status.Reset()
}

func isStale(err error) bool {
	return errors.Is(err, ErrSessionReset) || errors.Is(err, ErrDocumentReplaced)
}

func (s *Service) runDocument(ctx context.Context, f fence, src review.Source) error {
	totalUnits := src.TotalUnits
	if totalUnits < 1 {
		s.fail(f, 0, totalUnits, "Document has no pages")
		return fmt.Errorf("document has no pages")
	}

	started := time.Now()
	runLogger := s.logger.WithCorrelationId(f.sessionID)
	superseded := func(err error) error {
		runLogger.Info().Err(err).Str("session_id", f.sessionID).Msg("Document run superseded, stopping")
		return err
	}

	if err := s.setStatus(f, models.ProcessingStatus{
		Status:     models.StatusProcessing,
		TotalUnits: totalUnits,
		Message:    fmt.Sprintf("Starting analysis of %d pages", totalUnits),
	}); err != nil {
		return superseded(err)
	}
	runLogger.Info().
		Str("session_id", f.sessionID).
		Int("total_units", totalUnits).
		Str("profile", src.Profile).
		Msg("Document processing started")

	failed := 0
	for unit := 1; unit <= totalUnits; unit++ {
		if err := ctx.Err(); err != nil {
			s.fail(f, unit, totalUnits, fmt.Sprintf("Processing cancelled at page %d", unit))
			return err
		}

		if err := s.setStatus(f, models.ProcessingStatus{
			Status:      models.StatusProcessing,
			CurrentUnit: unit,
			TotalUnits:  totalUnits,
			Message:     fmt.Sprintf("Analyzing page %d of %d", unit, totalUnits),
			Progress:    float64(unit-1) / float64(totalUnits),
		}); err != nil {
			return superseded(err)
		}

		if err := s.processUnit(ctx, f, src.Path, unit, src.Profile); err != nil {
			if isStale(err) {
				return superseded(err)
			}
			failed++
			if ctx.Err() != nil {
				s.fail(f, unit, totalUnits, fmt.Sprintf("Processing cancelled at page %d", unit))
				return ctx.Err()
			}
			if err := s.setStatus(f, models.ProcessingStatus{
				Status:      models.StatusProcessing,
				CurrentUnit: unit,
				TotalUnits:  totalUnits,
				Message:     fmt.Sprintf("Page %d could not be analyzed: %v", unit, err),
				Progress:    float64(unit) / float64(totalUnits),
			}); err != nil {
				return superseded(err)
			}
		}
	}

	store := s.session.Store()
	message := fmt.Sprintf("Analysis complete: %d suggestions", store.Total())
	if failed > 0 {
		message += fmt.Sprintf(", %d of %d pages failed", failed, totalUnits)
	}
	if err := s.setStatus(f, models.ProcessingStatus{
		Status:      models.StatusCompleted,
		CurrentUnit: totalUnits,
		TotalUnits:  totalUnits,
		Message:     message,
		Progress:    1,
	}); err != nil {
		return superseded(err)
	}

	runLogger.Info().
		Int("total_units", totalUnits).
		Int("failed_units", failed).
		Int("suggestions", store.Total()).
		Dur("duration", time.Since(started)).
		Msg("Document processing completed")
	return nil
}

// processUnit analyzes one unit and commits either its suggestions or a failure marker
// into the document f was taken for. The returned error is informational once the
// outcome is recorded; ErrSessionReset or ErrDocumentReplaced mean nothing was recorded.
func (s *Service) processUnit(ctx context.Context, f fence, sourceRef string, unit int, profile string) error {
	unitCtx := ctx
	if s.unitTimeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, s.unitTimeout)
		defer cancel()
	}

	suggestions, err := s.documents.AnalyzeUnit(unitCtx, sourceRef, unit, profile)
	if err != nil {
		if !s.session.CommitUnitFailure(f.generation, unit, err.Error()) {
			return s.staleOrReplaced(f)
		}
		s.logger.Warn().Err(err).Int("unit", unit).Msg("Unit analysis failed")
		s.publish(interfaces.EventUnitFailed, map[string]interface{}{
			"unit":  unit,
			"error": err.Error(),
		})
		return err
	}

	if !s.session.CommitUnitSuggestions(f.generation, unit, suggestions) {
		return s.staleOrReplaced(f)
	}
	s.logger.Debug().Int("unit", unit).Int("suggestions", len(suggestions)).Msg("Unit analyzed")
	s.publish(interfaces.EventUnitAnalyzed, map[string]interface{}{
		"unit":        unit,
		"suggestions": len(suggestions),
	})
	return nil
}

func (s *Service) staleOrReplaced(f fence) error {
	if err := s.stale(f); err != nil {
		return err
	}
	return ErrDocumentReplaced
}

// ReprocessUnit re-runs analysis of one unit of the current document
func (s *Service) ReprocessUnit(ctx context.Context, unit int) error {
	if !s.acquire() {
		return ErrAlreadyRunning
	}
	defer s.release()

	f := fence{sessionID: s.session.ID(), generation: s.session.DocumentGeneration()}
	doc, ok := s.session.Document()
	if !ok {
		return ErrNoDocument
	}
	if unit < 1 || unit > doc.TotalUnits {
		return fmt.Errorf("page %d out of range 1-%d", unit, doc.TotalUnits)
	}

	if err := s.setStatus(f, models.ProcessingStatus{
		Status:      models.StatusProcessing,
		CurrentUnit: unit,
		TotalUnits:  doc.TotalUnits,
		Message:     fmt.Sprintf("Re-analyzing page %d", unit),
	}); err != nil {
		return err
	}

	err := s.processUnit(ctx, f, doc.Path, unit, doc.Profile)
	if isStale(err) {
		return err
	}
	message := fmt.Sprintf("Page %d re-analyzed", unit)
	if err != nil {
		message = fmt.Sprintf("Page %d could not be analyzed: %v", unit, err)
	}
	if serr := s.setStatus(f, models.ProcessingStatus{
		Status:      models.StatusCompleted,
		CurrentUnit: unit,
		TotalUnits:  doc.TotalUnits,
		Message:     message,
		Progress:    1,
	}); serr != nil {
		return serr
	}
	return err
}

// ProcessAudio transcribes and analyzes a recording, loading the detections into the session
func (s *Service) ProcessAudio(ctx context.Context, audioRef string) (*models.AudioAnalysis, error) {
	if !s.acquire() {
		return nil, ErrAlreadyRunning
	}
	defer s.release()
	return s.runAudio(ctx, audioRef)
}

// StartAudio runs ProcessAudio in the background
func (s *Service) StartAudio(audioRef string) error {
	if !s.acquire() {
		return ErrAlreadyRunning
	}

	s.wg.Add(1)
	common.SafeGo(s.logger, "processAudio", func() {
		defer s.wg.Done()
		defer s.release()
		if _, err := s.runAudio(s.baseCtx, audioRef); err != nil {
			s.logger.Warn().Err(err).Str("source", audioRef).Msg("Audio processing ended with error")
		}
	})
	return nil
}

// RetryAudio restarts audio processing from scratch with the last recording
func (s *Service) RetryAudio(ctx context.Context) (*models.AudioAnalysis, error) {
	audioRef := s.lastAudioRef()
	if audioRef == "" {
		return nil, ErrNoAudio
	}
	return s.ProcessAudio(ctx, audioRef)
}

// StartRetryAudio runs RetryAudio in the background
func (s *Service) StartRetryAudio() error {
	audioRef := s.lastAudioRef()
	if audioRef == "" {
		return ErrNoAudio
	}
	return s.StartAudio(audioRef)
}

func (s *Service) lastAudioRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAudio
}

func (s *Service) runAudio(ctx context.Context, audioRef string) (*models.AudioAnalysis, error) {
	s.mu.Lock()
	s.lastAudio = audioRef
	s.mu.Unlock()

	f := fence{sessionID: s.session.ID()}
	started := time.Now()
	runLogger := s.logger.WithCorrelationId(f.sessionID)
	superseded := func(err error) error {
		runLogger.Info().Err(err).Str("session_id", f.sessionID).Msg("Audio run superseded, discarding result")
		return err
	}

	// No partial resume: previous detections and actions are discarded first
	if err := s.commit(f, func() {
		s.session.LoadAudioAnalysis(models.AudioAnalysis{})
		s.status.Set(models.ProcessingStatus{
			Status:   models.StatusTranscribing,
			Message:  "Transcribing audio",
			Progress: 0.1,
		})
	}); err != nil {
		return nil, superseded(err)
	}

	words, err := s.audio.Transcribe(ctx, audioRef)
	if err != nil {
		if serr := s.failAudio(f, fmt.Sprintf("Transcription failed: %v", err)); serr != nil {
			return nil, superseded(serr)
		}
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	if err := s.setStatus(f, models.ProcessingStatus{
		Status:   models.StatusAnalyzing,
		Message:  fmt.Sprintf("Analyzing transcript of %d words", len(words)),
		Progress: 0.5,
	}); err != nil {
		return nil, superseded(err)
	}

	detections, err := s.audio.AnalyzeTranscript(ctx, words)
	if err != nil {
		if serr := s.failAudio(f, fmt.Sprintf("Analysis failed: %v", err)); serr != nil {
			return nil, superseded(serr)
		}
		return nil, fmt.Errorf("transcript analysis failed: %w", err)
	}

	result := &models.AudioAnalysis{
		Transcript: analysis.FormatTranscript(words),
		Words:      words,
		Detections: detections,
	}
	if err := s.commit(f, func() {
		s.session.LoadAudioAnalysis(*result)
		s.status.Set(models.ProcessingStatus{
			Status:   models.StatusCompleted,
			Message:  fmt.Sprintf("Found %d potential PII items", len(detections)),
			Progress: 1,
		})
	}); err != nil {
		return nil, superseded(err)
	}

	runLogger.Info().
		Int("words", len(words)).
		Int("detections", len(detections)).
		Dur("duration", time.Since(started)).
		Msg("Audio processing completed")
	return result, nil
}

func (s *Service) fail(f fence, unit, totalUnits int, message string) error {
	return s.setStatus(f, models.ProcessingStatus{
		Status:      models.StatusError,
		CurrentUnit: unit,
		TotalUnits:  totalUnits,
		Message:     message,
	})
}

func (s *Service) failAudio(f fence, message string) error {
	return s.setStatus(f, models.ProcessingStatus{
		Status:  models.StatusError,
		Message: message,
	})
}

func (s *Service) publish(eventType interfaces.EventType, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	payload["session_id"] = s.session.ID()
	s.events.Publish(context.Background(), interfaces.Event{
		Type:    eventType,
		Payload: payload,
	})
}

// Close cancels background runs and waits for them to stop
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}
