package handlers

import (
	"context"

	"github.com/kaitorecca/guardian-redact/internal/review"
	"github.com/kaitorecca/guardian-redact/internal/services/analysis"
	"github.com/kaitorecca/guardian-redact/internal/services/pdf"
)

// DocumentProcessor loads documents into the session and runs their analysis
type DocumentProcessor interface {
	StartDocument(src review.Source) error
	ReprocessUnit(ctx context.Context, unit int) error
	Running() bool
}

// AudioProcessor starts and retries audio analysis
type AudioProcessor interface {
	StartAudio(audioRef string) error
	StartRetryAudio() error
	Running() bool
}

// SessionResetter discards the session together with its processing status
type SessionResetter interface {
	ResetSession()
}

// PageCounter counts the pages of an uploaded PDF
type PageCounter interface {
	PageCount(path string) (int, error)
}

// ReportBuilder renders a review summary as PDF
type ReportBuilder interface {
	BuildReviewReport(summary pdf.ReviewSummary) ([]byte, error)
}

// HealthReporter reports AI provider readiness
type HealthReporter interface {
	Health(ctx context.Context) analysis.HealthReport
}
