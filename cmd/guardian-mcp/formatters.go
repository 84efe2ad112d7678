package main

import (
	"fmt"
	"strings"

	"github.com/kaitorecca/guardian-redact/internal/models"
	"github.com/kaitorecca/guardian-redact/internal/review"
)

const transcriptPreview = 500

// formatDocumentScan formats per-page suggestions as markdown
func formatDocumentScan(src review.Source, suggestions []models.DocumentSuggestion, outcomes []models.UnitOutcome) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## PII Scan: %s (%d pages, %s profile)\n\n", src.Name, src.TotalUnits, src.Profile))
	sb.WriteString(fmt.Sprintf("**Suggestions:** %d\n\n", len(suggestions)))

	byUnit := make(map[int][]models.DocumentSuggestion)
	for _, sg := range suggestions {
		byUnit[sg.Coordinates.Unit] = append(byUnit[sg.Coordinates.Unit], sg)
	}

	for _, outcome := range outcomes {
		sb.WriteString(fmt.Sprintf("### Page %d\n", outcome.Unit))
		if outcome.State == models.UnitFailed {
			sb.WriteString(fmt.Sprintf("Analysis failed: %s\n\n", outcome.Error))
			continue
		}

		unitSuggestions := byUnit[outcome.Unit]
		if len(unitSuggestions) == 0 {
			sb.WriteString("No PII found.\n\n")
			continue
		}
		sb.WriteString("| ID | Category | Text | Confidence | Reason |\n")
		sb.WriteString("|----|----------|------|------------|--------|\n")
		for _, sg := range unitSuggestions {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.2f | %s |\n",
				sg.ID, sg.Category, escapeCell(sg.Text), sg.Confidence, escapeCell(sg.Reason)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatAudioScan formats a transcript preview and its detections as markdown
func formatAudioScan(name, transcript string, detections []models.AudioDetection) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## PII Scan: %s (%d detections)\n\n", name, len(detections)))

	if transcript != "" {
		preview := transcript
		if len(preview) > transcriptPreview {
			preview = preview[:transcriptPreview] + "..."
		}
		sb.WriteString("#### Transcript:\n")
		sb.WriteString(preview)
		sb.WriteString("\n\n")
	}

	if len(detections) == 0 {
		sb.WriteString("No PII detected.\n")
		return sb.String()
	}

	sb.WriteString("| ID | Category | Text | Start | End | Confidence |\n")
	sb.WriteString("|----|----------|------|-------|-----|------------|\n")
	for _, d := range detections {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %.2f |\n",
			d.ID, d.Category, escapeCell(d.Text), formatTimestamp(d.StartTime), formatTimestamp(d.EndTime), d.Confidence))
	}
	return sb.String()
}

// formatExport summarizes a redacted export as markdown
func formatExport(src review.Source, outPath string, minConfidence float64, applied []models.DocumentSuggestion, total int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Redacted Export: %s\n\n", src.Name))
	sb.WriteString(fmt.Sprintf("**Output:** %s\n", outPath))
	sb.WriteString(fmt.Sprintf("**Applied:** %d of %d suggestions (confidence >= %.2f)\n\n", len(applied), total, minConfidence))

	counts := make(map[models.Category]int)
	var order []models.Category
	for _, sg := range applied {
		if counts[sg.Category] == 0 {
			order = append(order, sg.Category)
		}
		counts[sg.Category]++
	}
	for _, category := range order {
		sb.WriteString(fmt.Sprintf("- %s: %d\n", category, counts[category]))
	}
	return sb.String()
}

// formatTimestamp renders seconds as m:ss.s
func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	minutes := int(seconds) / 60
	return fmt.Sprintf("%d:%04.1f", minutes, seconds-float64(minutes*60))
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
