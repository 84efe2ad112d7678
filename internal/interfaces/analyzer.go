package interfaces

import (
	"context"

	"github.com/kaitorecca/guardian-redact/internal/models"
)

// UnitAnalyzer proposes redactions for one page of a document
type UnitAnalyzer interface {
	AnalyzeUnit(ctx context.Context, sourceRef string, unit int, profile string) ([]models.DocumentSuggestion, error)
}

// AudioAnalyzer transcribes a recording and finds PII in the transcript.
// The two stages are separate so callers can report progress between them.
type AudioAnalyzer interface {
	Transcribe(ctx context.Context, audioRef string) ([]models.TranscriptWord, error)
	AnalyzeTranscript(ctx context.Context, words []models.TranscriptWord) ([]models.AudioDetection, error)
}
