package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
)

// ErrUnsupportedAudio is returned for a file extension with no known audio MIME type
var ErrUnsupportedAudio = errors.New("unsupported audio format")

var audioMIMETypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".webm": "audio/webm",
}

// AudioMIMEType returns the MIME type for an audio file by extension
func AudioMIMEType(path string) (string, error) {
	mimeType, ok := audioMIMETypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAudio, filepath.Ext(path))
	}
	return mimeType, nil
}

type rawWord struct {
	Text  string    `json:"text"`
	Start timestamp `json:"start"`
	End   timestamp `json:"end"`
}

type rawDetection struct {
	Text        string     `json:"text"`
	Category    string     `json:"category"`
	StartTime   timestamp  `json:"start_time"`
	EndTime     timestamp  `json:"end_time"`
	Explanation string     `json:"explanation"`
	Confidence  *flexFloat `json:"confidence"`
}

type detectionItem struct {
	Text       string  `validate:"required"`
	Category   string  `validate:"oneof=Name Age Location Address Phone Email Date ID Other"`
	StartTime  float64 `validate:"gte=0"`
	EndTime    float64 `validate:"gtfield=StartTime"`
	Confidence float64 `validate:"gte=0,lte=1"`
}

// AudioAnalyzer transcribes recordings with an audio-capable model and finds PII in the transcript
type AudioAnalyzer struct {
	generator          interfaces.ContentGenerator
	transcriptionModel string
	analysisModel      string
	validate           *validator.Validate
	logger             arbor.ILogger
}

var _ interfaces.AudioAnalyzer = (*AudioAnalyzer)(nil)

// NewAudioAnalyzer creates an analyzer. transcriptionModel must accept audio input.
func NewAudioAnalyzer(generator interfaces.ContentGenerator, transcriptionModel, analysisModel string, logger arbor.ILogger) *AudioAnalyzer {
	return &AudioAnalyzer{
		generator:          generator,
		transcriptionModel: transcriptionModel,
		analysisModel:      analysisModel,
		validate:           validator.New(),
		logger:             logger,
	}
}

// Transcribe returns the words of a recording in time order
func (a *AudioAnalyzer) Transcribe(ctx context.Context, audioRef string) ([]models.TranscriptWord, error) {
	mimeType, err := AudioMIMEType(audioRef)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(audioRef)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}

	response, err := a.generator.Generate(ctx, &interfaces.GenerateRequest{
		Model:       a.transcriptionModel,
		Messages:    []interfaces.Message{{Role: "user", Content: transcriptionPrompt}},
		Attachments: []interfaces.Attachment{{MIMEType: mimeType, Data: data}},
		JSONOutput:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	cleaned, err := CleanJSONArray(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transcription: %w", err)
	}

	var raw []rawWord
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse transcription: %w", err)
	}

	words := make([]models.TranscriptWord, 0, len(raw))
	for _, r := range raw {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		start, end := float64(r.Start), float64(r.End)
		if end < start {
			start, end = end, start
		}
		words = append(words, models.TranscriptWord{Text: text, Start: start, End: end})
	}
	sort.SliceStable(words, func(i, j int) bool { return words[i].Start < words[j].Start })

	a.logger.Info().
		Str("audio", filepath.Base(audioRef)).
		Int("words", len(words)).
		Msg("Audio transcribed")

	return words, nil
}

// AnalyzeTranscript finds PII in a transcript. An empty transcript yields no detections.
func (a *AudioAnalyzer) AnalyzeTranscript(ctx context.Context, words []models.TranscriptWord) ([]models.AudioDetection, error) {
	if len(words) == 0 {
		return []models.AudioDetection{}, nil
	}

	response, err := a.generator.Generate(ctx, &interfaces.GenerateRequest{
		Model: a.analysisModel,
		Messages: []interfaces.Message{
			{Role: "system", Content: "You are a JSON-only API. You respond with raw JSON and nothing else."},
			{Role: "user", Content: fmt.Sprintf(transcriptPrompt, FormatTranscript(words))},
		},
		JSONOutput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("transcript analysis failed: %w", err)
	}

	cleaned, err := CleanJSONArray(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transcript analysis: %w", err)
	}

	var raw []rawDetection
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse transcript analysis: %w", err)
	}

	detections := make([]models.AudioDetection, 0, len(raw))
	for i, r := range raw {
		item := detectionItem{
			Text:       strings.TrimSpace(r.Text),
			Category:   normalizeAudioCategory(r.Category),
			StartTime:  float64(r.StartTime),
			EndTime:    float64(r.EndTime),
			Confidence: confidenceOrDefault(r.Confidence),
		}
		if item.EndTime < item.StartTime {
			item.StartTime, item.EndTime = item.EndTime, item.StartTime
		}
		if item.EndTime == item.StartTime {
			item.EndTime = item.StartTime + 1
		}

		if err := a.validate.Struct(item); err != nil {
			a.logger.Warn().Int("index", i).Err(err).Msg("Skipping invalid detection")
			continue
		}

		detections = append(detections, models.AudioDetection{
			ID:          models.NewDetectionID(len(detections)),
			Text:        item.Text,
			Category:    models.AudioCategory(item.Category),
			StartTime:   item.StartTime,
			EndTime:     item.EndTime,
			Explanation: r.Explanation,
			Confidence:  item.Confidence,
		})
	}

	a.logger.Info().Int("words", len(words)).Int("detections", len(detections)).Msg("Transcript analyzed")
	return detections, nil
}

// AnalyzeAudio transcribes a recording and analyzes the transcript
func (a *AudioAnalyzer) AnalyzeAudio(ctx context.Context, audioRef string) (*models.AudioAnalysis, error) {
	words, err := a.Transcribe(ctx, audioRef)
	if err != nil {
		return nil, err
	}

	detections, err := a.AnalyzeTranscript(ctx, words)
	if err != nil {
		return nil, err
	}

	return &models.AudioAnalysis{
		Transcript: FormatTranscript(words),
		Words:      words,
		Detections: detections,
	}, nil
}

func normalizeAudioCategory(category string) string {
	category = strings.TrimSpace(category)
	for _, known := range []models.AudioCategory{
		models.AudioCategoryName,
		models.AudioCategoryAge,
		models.AudioCategoryLocation,
		models.AudioCategoryAddress,
		models.AudioCategoryPhone,
		models.AudioCategoryEmail,
		models.AudioCategoryDate,
		models.AudioCategoryID,
	} {
		if strings.EqualFold(category, string(known)) {
			return string(known)
		}
	}
	return string(models.AudioCategoryOther)
}
