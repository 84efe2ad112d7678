package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
)

type rawSuggestion struct {
	Text       string     `json:"text"`
	Category   string     `json:"category"`
	Confidence *flexFloat `json:"confidence"`
	Reason     string     `json:"reason"`
}

type suggestionItem struct {
	Text       string  `validate:"required"`
	Category   string  `validate:"required,oneof=PII FINANCIAL MEDICAL LEGAL CONTACT FACES"`
	Confidence float64 `validate:"gte=0,lte=1"`
	Reason     string
}

// DocumentAnalyzer proposes redactions for a PDF page
type DocumentAnalyzer struct {
	inspector interfaces.PDFInspector
	generator interfaces.ContentGenerator
	model     string
	validate  *validator.Validate
	logger    arbor.ILogger
}

var _ interfaces.UnitAnalyzer = (*DocumentAnalyzer)(nil)

// NewDocumentAnalyzer creates an analyzer. An empty model uses the generator's default provider.
func NewDocumentAnalyzer(inspector interfaces.PDFInspector, generator interfaces.ContentGenerator, model string, logger arbor.ILogger) *DocumentAnalyzer {
	return &DocumentAnalyzer{
		inspector: inspector,
		generator: generator,
		model:     model,
		validate:  validator.New(),
		logger:    logger,
	}
}

// AnalyzeUnit returns located suggestions for one page.
// A page without text yields no suggestions; items that cannot be found on the page are dropped.
func (a *DocumentAnalyzer) AnalyzeUnit(ctx context.Context, sourceRef string, unit int, profile string) ([]models.DocumentSuggestion, error) {
	runs, err := a.inspector.PageText(sourceRef, unit)
	if err != nil {
		return nil, fmt.Errorf("failed to read text of page %d: %w", unit, err)
	}

	pageText := joinRuns(runs)
	if strings.TrimSpace(pageText) == "" {
		a.logger.Debug().Int("unit", unit).Msg("No text on page")
		return []models.DocumentSuggestion{}, nil
	}

	prompt, err := DocumentPrompt(profile, pageText)
	if err != nil {
		return nil, err
	}

	response, err := a.generator.Generate(ctx, &interfaces.GenerateRequest{
		Model:             a.model,
		SystemInstruction: documentSystemInstruction,
		Messages:          []interfaces.Message{{Role: "user", Content: prompt}},
		JSONOutput:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis of page %d failed: %w", unit, err)
	}

	items, err := a.parseSuggestions(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse analysis of page %d: %w", unit, err)
	}

	suggestions := make([]models.DocumentSuggestion, 0, len(items))
	for _, item := range items {
		coords, found := Locate(item.Text, runs)
		if !found {
			a.logger.Debug().
				Int("unit", unit).
				Str("category", item.Category).
				Msg("Suggested text not found on page, skipping")
			continue
		}
		coords.Unit = unit

		suggestions = append(suggestions, models.DocumentSuggestion{
			ID:          models.NewSuggestionID(unit, len(suggestions)),
			Text:        item.Text,
			Confidence:  item.Confidence,
			Category:    models.Category(item.Category),
			Coordinates: coords,
			Reason:      item.Reason,
		})
	}

	a.logger.Info().
		Int("unit", unit).
		Str("profile", profile).
		Int("proposed", len(items)).
		Int("located", len(suggestions)).
		Msg("Page analyzed")

	return suggestions, nil
}

func (a *DocumentAnalyzer) parseSuggestions(response string) ([]suggestionItem, error) {
	cleaned, err := CleanJSONArray(response)
	if err != nil {
		return nil, err
	}

	var raw []rawSuggestion
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	items := make([]suggestionItem, 0, len(raw))
	for i, r := range raw {
		item := suggestionItem{
			Text:       strings.TrimSpace(r.Text),
			Category:   strings.ToUpper(strings.TrimSpace(r.Category)),
			Confidence: confidenceOrDefault(r.Confidence),
			Reason:     r.Reason,
		}
		if err := a.validate.Struct(item); err != nil {
			a.logger.Warn().Int("index", i).Err(err).Msg("Skipping invalid suggestion")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func joinRuns(runs []interfaces.TextRun) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text)
		b.WriteString("\n")
	}
	return b.String()
}
