package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
	"github.com/kaitorecca/guardian-redact/internal/review"
	"github.com/kaitorecca/guardian-redact/internal/services/status"
)

type recordingEvents struct {
	mu     sync.Mutex
	events []interfaces.Event
}

func (r *recordingEvents) Subscribe(interfaces.EventType, interfaces.EventHandler) error { return nil }

func (r *recordingEvents) Publish(_ context.Context, event interfaces.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	return r.Publish(ctx, event)
}

func (r *recordingEvents) Close() error { return nil }

// statuses returns the status values published, in order
func (r *recordingEvents) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Type != interfaces.EventProcessingStatus && e.Type != interfaces.EventUnitProgress {
			continue
		}
		out = append(out, e.Payload.(map[string]interface{})["status"].(string))
	}
	return out
}

func (r *recordingEvents) count(eventType interfaces.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type unitResult struct {
	suggestions []models.DocumentSuggestion
	err         error
}

type fakeDocuments struct {
	mu      sync.Mutex
	session *review.Session
	results map[int]unitResult
	calls   []int
	// committed records, per call, whether the previous unit already had an outcome
	committed []bool
	hook      func(ctx context.Context, unit int) error
}

func (f *fakeDocuments) AnalyzeUnit(ctx context.Context, sourceRef string, unit int, profile string) ([]models.DocumentSuggestion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, unit)
	if unit > 1 {
		_, ok := f.session.Store().Outcome(unit - 1)
		f.committed = append(f.committed, ok)
	}
	hook := f.hook
	result := f.results[unit]
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, unit); err != nil {
			return nil, err
		}
	}
	return result.suggestions, result.err
}

type fakeAudio struct {
	words         []models.TranscriptWord
	detections    []models.AudioDetection
	transcribeErr error
	analyzeErr    error
	transcribed   int
	hook          func()
}

func (f *fakeAudio) Transcribe(ctx context.Context, audioRef string) ([]models.TranscriptWord, error) {
	f.transcribed++
	if f.hook != nil {
		f.hook()
	}
	if f.transcribeErr != nil {
		return nil, f.transcribeErr
	}
	return f.words, nil
}

func (f *fakeAudio) AnalyzeTranscript(ctx context.Context, words []models.TranscriptWord) ([]models.AudioDetection, error) {
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return f.detections, nil
}

type fixture struct {
	service   *Service
	session   *review.Session
	status    *status.Service
	events    *recordingEvents
	documents *fakeDocuments
	audio     *fakeAudio
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := arbor.NewNoOpLogger()
	events := &recordingEvents{}
	session := review.NewSession(0, events, logger)
	statusService := status.NewService(events, logger)
	documents := &fakeDocuments{session: session, results: map[int]unitResult{}}
	audio := &fakeAudio{}

	service := NewService(session, statusService, documents, audio, events, time.Second, logger)
	t.Cleanup(service.Close)

	return &fixture{
		service:   service,
		session:   session,
		status:    statusService,
		events:    events,
		documents: documents,
		audio:     audio,
	}
}

func source(totalUnits int, profile string) review.Source {
	return review.Source{Path: "/tmp/doc.pdf", Name: "doc.pdf", TotalUnits: totalUnits, Profile: profile}
}

func suggestion(unit, index int) models.DocumentSuggestion {
	return models.DocumentSuggestion{
		ID:          models.NewSuggestionID(unit, index),
		Text:        "John Smith",
		Confidence:  0.9,
		Category:    models.CategoryPII,
		Coordinates: models.Coordinates{Unit: unit, X: 10, Y: 10, Width: 50, Height: 12},
	}
}

func TestProcessDocument_UnitFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.documents.results[1] = unitResult{suggestions: []models.DocumentSuggestion{suggestion(1, 0), suggestion(1, 1)}}
	f.documents.results[2] = unitResult{err: errors.New("model unavailable")}
	f.documents.results[3] = unitResult{suggestions: []models.DocumentSuggestion{}}

	err := f.service.ProcessDocument(context.Background(), source(3, "quick"))
	require.NoError(t, err)

	final := f.status.Get()
	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.Equal(t, 1.0, final.Progress)
	assert.Contains(t, final.Message, "1 of 3 pages failed")

	store := f.session.Store()
	assert.Equal(t, 2, store.Total())
	assert.Len(t, store.UnitSuggestions(1), 2)

	outcome, ok := store.Outcome(2)
	require.True(t, ok)
	assert.Equal(t, models.UnitFailed, outcome.State)
	assert.Equal(t, "model unavailable", outcome.Error)
	assert.Empty(t, store.UnitSuggestions(2))

	outcome, ok = store.Outcome(3)
	require.True(t, ok)
	assert.Equal(t, models.UnitAnalyzed, outcome.State)
	assert.Equal(t, 0, outcome.SuggestionCount)
	assert.Empty(t, store.UnitSuggestions(3))

	assert.Equal(t, 1, f.events.count(interfaces.EventUnitFailed))
	assert.Equal(t, 2, f.events.count(interfaces.EventUnitAnalyzed))
}

func TestProcessDocument_Sequential(t *testing.T) {
	f := newFixture(t)
	f.documents.results[2] = unitResult{err: errors.New("boom")}

	require.NoError(t, f.service.ProcessDocument(context.Background(), source(4, "deep")))

	assert.Equal(t, []int{1, 2, 3, 4}, f.documents.calls)
	assert.Equal(t, []bool{true, true, true}, f.documents.committed)

	statuses := f.events.statuses()
	require.NotEmpty(t, statuses)
	assert.Equal(t, "processing", statuses[0])
	assert.Equal(t, "completed", statuses[len(statuses)-1])
}

func TestProcessDocument_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.documents.hook = func(_ context.Context, unit int) error {
		if unit == 2 {
			cancel()
		}
		return nil
	}

	err := f.service.ProcessDocument(ctx, source(3, "quick"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.StatusError, f.status.Get().Status)
	assert.Equal(t, []int{1, 2}, f.documents.calls)
	assert.False(t, f.service.Running())
}

func TestProcessDocument_NoPages(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.service.ProcessDocument(context.Background(), source(0, "quick")))
	assert.Equal(t, models.StatusError, f.status.Get().Status)
}

func TestProcessUnit_Timeout(t *testing.T) {
	f := newFixture(t)
	f.service.unitTimeout = 10 * time.Millisecond
	f.documents.hook = func(ctx context.Context, unit int) error {
		<-ctx.Done()
		return ctx.Err()
	}

	gen := f.session.LoadDocument(source(1, "quick"))
	err := f.service.processUnit(context.Background(), fence{sessionID: f.session.ID(), generation: gen}, "/tmp/doc.pdf", 1, "quick")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	outcome, ok := f.session.Store().Outcome(1)
	require.True(t, ok)
	assert.Equal(t, models.UnitFailed, outcome.State)
}

func TestProcessDocument_StopsOnSessionReset(t *testing.T) {
	f := newFixture(t)
	f.documents.hook = func(_ context.Context, unit int) error {
		if unit == 1 {
			f.service.ResetSession()
		}
		return nil
	}

	err := f.service.ProcessDocument(context.Background(), source(3, "quick"))
	assert.ErrorIs(t, err, ErrSessionReset)
	assert.Equal(t, []int{1}, f.documents.calls)
	assert.Equal(t, models.StatusIdle, f.status.Get().Status)
	_, ok := f.session.Store().Outcome(1)
	assert.False(t, ok)
}

func TestProcessDocument_ResetDuringFailedUnitLeavesStatusIdle(t *testing.T) {
	f := newFixture(t)
	f.documents.hook = func(_ context.Context, unit int) error {
		if unit == 2 {
			f.service.ResetSession()
			return errors.New("model unavailable")
		}
		return nil
	}

	err := f.service.ProcessDocument(context.Background(), source(3, "quick"))
	assert.ErrorIs(t, err, ErrSessionReset)
	assert.Equal(t, []int{1, 2}, f.documents.calls)

	assert.Equal(t, models.StatusIdle, f.status.Get().Status)
	statuses := f.events.statuses()
	assert.Equal(t, "idle", statuses[len(statuses)-1])
	assert.Equal(t, 0, f.events.count(interfaces.EventUnitFailed))
	assert.Empty(t, f.session.Store().Outcomes())
	assert.False(t, f.service.Running())
}

func TestStartDocument_RejectsConcurrentRun(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.documents.hook = func(ctx context.Context, unit int) error {
		<-release
		return nil
	}

	first := source(2, "quick")
	require.NoError(t, f.service.StartDocument(first))

	second := review.Source{Path: "/tmp/other.pdf", Name: "other.pdf", TotalUnits: 5, Profile: "deep"}
	assert.ErrorIs(t, f.service.StartDocument(second), ErrAlreadyRunning)
	assert.ErrorIs(t, f.service.StartAudio("/tmp/call.mp3"), ErrAlreadyRunning)

	// a rejected start leaves the document under review untouched
	doc, ok := f.session.Document()
	require.True(t, ok)
	assert.Equal(t, first, doc)

	close(release)
	require.Eventually(t, func() bool { return !f.service.Running() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.StatusCompleted, f.status.Get().Status)
}

func TestProcessDocument_ReplacedDocumentKeepsEarlierPagesOut(t *testing.T) {
	f := newFixture(t)
	f.documents.results[1] = unitResult{suggestions: []models.DocumentSuggestion{suggestion(1, 0)}}
	f.documents.results[2] = unitResult{suggestions: []models.DocumentSuggestion{suggestion(2, 0)}}
	replacement := review.Source{Path: "/tmp/other.pdf", Name: "other.pdf", TotalUnits: 4, Profile: "deep"}
	f.documents.hook = func(_ context.Context, unit int) error {
		if unit == 2 {
			f.session.LoadDocument(replacement)
		}
		return nil
	}

	err := f.service.ProcessDocument(context.Background(), source(3, "quick"))
	assert.ErrorIs(t, err, ErrDocumentReplaced)
	assert.Equal(t, []int{1, 2}, f.documents.calls)

	store := f.session.Store()
	assert.Equal(t, 0, store.Total())
	_, ok := store.Outcome(2)
	assert.False(t, ok)

	doc, ok := f.session.Document()
	require.True(t, ok)
	assert.Equal(t, replacement, doc)
	assert.NotEqual(t, models.StatusCompleted, f.status.Get().Status)
}

func TestReprocessUnit(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.service.ReprocessUnit(context.Background(), 1), ErrNoDocument)

	f.documents.results[2] = unitResult{err: errors.New("flaky")}
	require.NoError(t, f.service.ProcessDocument(context.Background(), source(2, "quick")))

	f.documents.results[2] = unitResult{suggestions: []models.DocumentSuggestion{suggestion(2, 0)}}
	require.NoError(t, f.service.ReprocessUnit(context.Background(), 2))

	outcome, ok := f.session.Store().Outcome(2)
	require.True(t, ok)
	assert.Equal(t, models.UnitAnalyzed, outcome.State)
	assert.Len(t, f.session.Store().UnitSuggestions(2), 1)

	// idempotent: reprocessing again replaces rather than appends
	require.NoError(t, f.service.ReprocessUnit(context.Background(), 2))
	assert.Len(t, f.session.Store().UnitSuggestions(2), 1)

	assert.Error(t, f.service.ReprocessUnit(context.Background(), 3))
}

func TestProcessAudio(t *testing.T) {
	f := newFixture(t)
	f.audio.words = []models.TranscriptWord{{Text: "John", Start: 1, End: 1.5}, {Text: "Smith", Start: 1.5, End: 2}}
	f.audio.detections = []models.AudioDetection{
		{ID: "pii_0", Text: "John Smith", Category: models.AudioCategoryName, StartTime: 1, EndTime: 2, Confidence: 0.9},
	}

	result, err := f.service.ProcessAudio(context.Background(), "/tmp/call.mp3")
	require.NoError(t, err)
	assert.Contains(t, result.Transcript, "John")
	assert.Len(t, result.Detections, 1)

	assert.Equal(t, []string{"transcribing", "analyzing", "completed"}, f.events.statuses())
	assert.Len(t, f.session.Engine().Detections(), 1)
	assert.Empty(t, f.session.Engine().Actions())
	assert.Len(t, f.session.Transcript(), 2)
}

func TestProcessAudio_FailureAndRetry(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.RetryAudio(context.Background())
	assert.ErrorIs(t, err, ErrNoAudio)

	f.audio.transcribeErr = errors.New("quota exceeded")
	_, err = f.service.ProcessAudio(context.Background(), "/tmp/call.mp3")
	require.Error(t, err)
	assert.Equal(t, models.StatusError, f.status.Get().Status)
	assert.Contains(t, f.status.Get().Message, "quota exceeded")

	f.audio.transcribeErr = nil
	f.audio.words = []models.TranscriptWord{{Text: "hello", Start: 0, End: 1}}
	f.audio.detections = []models.AudioDetection{{ID: "pii_0", Text: "hello", StartTime: 0, EndTime: 1}}

	// a retry starts from scratch: accepted state from the previous run is discarded
	f.session.Engine().LoadDetections([]models.AudioDetection{{ID: "stale", StartTime: 3, EndTime: 4}})
	f.session.ToggleDetection("stale")
	require.Len(t, f.session.Engine().Actions(), 1)

	_, err = f.service.RetryAudio(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.audio.transcribed)
	assert.Equal(t, models.StatusCompleted, f.status.Get().Status)
	assert.Empty(t, f.session.Engine().Actions())
	detections := f.session.Engine().Detections()
	require.Len(t, detections, 1)
	assert.Equal(t, "pii_0", detections[0].ID)
}

func TestProcessAudio_AnalysisFailure(t *testing.T) {
	f := newFixture(t)
	f.audio.words = []models.TranscriptWord{{Text: "hello", Start: 0, End: 1}}
	f.audio.analyzeErr = errors.New("bad json")

	_, err := f.service.ProcessAudio(context.Background(), "/tmp/call.mp3")
	require.Error(t, err)
	assert.Equal(t, []string{"transcribing", "analyzing", "error"}, f.events.statuses())
}

func TestProcessAudio_ResetDuringTranscriptionLeavesStatusIdle(t *testing.T) {
	f := newFixture(t)
	f.audio.words = []models.TranscriptWord{{Text: "John", Start: 1, End: 1.5}}
	f.audio.detections = []models.AudioDetection{{ID: "pii_0", Text: "John", StartTime: 1, EndTime: 1.5}}
	f.audio.hook = f.service.ResetSession

	_, err := f.service.ProcessAudio(context.Background(), "/tmp/call.mp3")
	assert.ErrorIs(t, err, ErrSessionReset)

	assert.Equal(t, models.StatusIdle, f.status.Get().Status)
	assert.Equal(t, []string{"transcribing", "idle"}, f.events.statuses())
	assert.Empty(t, f.session.Engine().Detections())
	assert.Empty(t, f.session.Transcript())
}

func TestProcessAudio_ResetDuringFailedTranscriptionLeavesStatusIdle(t *testing.T) {
	f := newFixture(t)
	f.audio.transcribeErr = errors.New("quota exceeded")
	f.audio.hook = f.service.ResetSession

	_, err := f.service.ProcessAudio(context.Background(), "/tmp/call.mp3")
	assert.ErrorIs(t, err, ErrSessionReset)
	assert.Equal(t, models.StatusIdle, f.status.Get().Status)
}

func TestStartRetryAudio(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.service.StartRetryAudio(), ErrNoAudio)

	require.NoError(t, f.service.StartAudio("/tmp/call.mp3"))
	require.Eventually(t, func() bool { return !f.service.Running() }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.service.StartRetryAudio())
	require.Eventually(t, func() bool { return !f.service.Running() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, f.audio.transcribed)
}
